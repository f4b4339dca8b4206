package server

import "sync"

// refreshCoordinator guards against out-of-order fetch resolution. Every
// display-state request carries a client-assigned monotonic sequence number;
// a response computed for a sequence older than the newest one seen for the
// same scope is marked stale so the client discards it instead of
// overwriting fresher state.
type refreshCoordinator struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func newRefreshCoordinator() *refreshCoordinator {
	return &refreshCoordinator{latest: make(map[string]uint64)}
}

// Begin records a request's sequence number. Sequences only move forward;
// an older number than the recorded latest leaves state untouched.
func (c *refreshCoordinator) Begin(scope string, seq uint64) {
	if seq == 0 {
		return // client did not opt in to sequencing
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.latest[scope] {
		c.latest[scope] = seq
	}
}

// IsStale reports whether a newer sequence was issued for the scope since
// this request began.
func (c *refreshCoordinator) IsStale(scope string, seq uint64) bool {
	if seq == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq < c.latest[scope]
}
