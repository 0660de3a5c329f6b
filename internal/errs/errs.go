// Package errs declares the job-orchestration error taxonomy (spec §7).
package errs

import (
	"errors"
	"fmt"
)

// Sentinel error classes. Use errors.Is against these, and errors.As against
// NodeError for node-level detail.
var (
	// ErrTransport marks a retryable failure of the shared state store.
	ErrTransport = errors.New("transport error")
	// ErrValidation marks a malformed node config or job param.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a business not-found outcome (e.g. missing product).
	ErrNotFound = errors.New("not found")
	// ErrScraper marks a site-scraper failure (timeout, HTTP status, parse).
	ErrScraper = errors.New("scraper error")
	// ErrDeadlock marks a DAG that cannot make further progress.
	ErrDeadlock = errors.New("workflow deadlock")
	// ErrLockBusy marks a normal (non-error) platform lock contention.
	ErrLockBusy = errors.New("platform lock busy")
	// ErrKilled marks a worker that exited because of a kill-flag.
	ErrKilled = errors.New("worker killed")
)

// NodeError carries a failed node's message and node id, plus the
// underlying cause. It has no timestamp field.
type NodeError struct {
	Message string
	NodeID  string
	Cause   error
}

func (e *NodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Message, e.Cause)
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// NewNodeError wraps cause with the failing node id and a human message.
func NewNodeError(nodeID, message string, cause error) *NodeError {
	return &NodeError{Message: message, NodeID: nodeID, Cause: cause}
}
