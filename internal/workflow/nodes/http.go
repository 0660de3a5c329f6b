package nodes

import "net/http"

// Doer is satisfied by *http.Client; strategies depend on this instead
// of the concrete client so tests can substitute a fake transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
