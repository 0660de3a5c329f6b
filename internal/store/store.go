// Package store abstracts the shared key-value/queue backend (spec §4.1).
// Every other component depends only on the Store interface; RedisStore is
// the production backend and MemoryStore is an in-process test double.
package store

import (
	"context"
	"time"
)

// ScoredMember is one entry of a sorted set, paired with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the contract every repository in this module builds on.
// Methods mirror the Redis primitives the spec calls for: string get/set
// with TTL, sorted-set add/range/remove/cardinality, hash field get/set,
// and atomic set-if-absent with TTL for the platform lock.
type Store interface {
	// Get returns the string value of key, or ("", false, nil) if absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value at key with the given TTL (0 means no expiration).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX atomically sets key to value with ttl only if key is absent,
	// returning whether this call was the one that set it.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining time-to-live of key, or 0 if it has none
	// or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ZAdd adds member with score to the sorted set at key.
	ZAdd(ctx context.Context, key string, member string, score float64) error
	// ZRevRangeByScore returns members ordered by descending score, limited
	// to limit entries (0 means unlimited).
	ZRevRangeByScore(ctx context.Context, key string, limit int) ([]ScoredMember, error)
	// ZRem atomically removes member from the sorted set at key and reports
	// whether it was actually present (guards the dequeue race).
	ZRem(ctx context.Context, key, member string) (bool, error)
	// ZCard returns the cardinality of the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// HSet sets field to value in the hash at key.
	HSet(ctx context.Context, key, field, value string) error
	// HGet returns the value of field in the hash at key.
	HGet(ctx context.Context, key, field string) (string, bool, error)
	// Expire refreshes the TTL of an existing key (used after HSet, since
	// hash field writes don't carry their own TTL).
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
