package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by repository and engine tests,
// mirroring the teacher's MemoryQueue fake: a mutex-guarded map standing in
// for the real backend so unit tests don't need a live Redis.
type MemoryStore struct {
	mu      sync.Mutex
	strings map[string]stringEntry
	sets    map[string]map[string]float64
	hashes  map[string]map[string]string
}

type stringEntry struct {
	value   string
	expires time.Time // zero means no expiration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strings: make(map[string]stringEntry),
		sets:    make(map[string]map[string]float64),
		hashes:  make(map[string]map[string]string),
	}
}

func (m *MemoryStore) expired(e stringEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.strings[key]
	if !ok || m.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.strings[key] = stringEntry{value: value, expires: exp}
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.strings[key]; ok && !m.expired(e) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.strings[key] = stringEntry{value: value, expires: exp}
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.strings, key)
	delete(m.sets, key)
	delete(m.hashes, key)
	return nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.strings[key]
	if !ok || e.expires.IsZero() || m.expired(e) {
		return 0, nil
	}
	return time.Until(e.expires), nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]float64)
		m.sets[key] = set
	}
	set[member] = score
	return nil
}

func (m *MemoryStore) ZRevRangeByScore(_ context.Context, key string, limit int) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[key]
	out := make([]ScoredMember, 0, len(set))
	for member, score := range set {
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ZRem(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	if _, present := set[member]; !present {
		return false, nil
	}
	delete(set, member)
	return true, nil
}

func (m *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.sets[key])), nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	// The memory store's hashes/sets never expire on their own (no test
	// relies on hash/set TTL expiry); this is a no-op satisfying the
	// interface for parity with RedisStore.
	return nil
}
