package client

import (
	"fmt"
	"sync"
)

// correlator hands out request ids: monotonic integers starting at 1,
// never reused within a session. It also enforces the single outstanding
// request rule: exchanges are strictly sequential on both transports, so
// a second begin before finish is a programming error.
type correlator struct {
	mu          sync.Mutex
	next        int64
	outstanding int64 // 0 when no request is in flight
}

func newCorrelator() *correlator {
	return &correlator{next: 1}
}

// begin reserves the next id and marks it outstanding.
func (c *correlator) begin() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding != 0 {
		return 0, fmt.Errorf("request %d is still outstanding", c.outstanding)
	}
	id := c.next
	c.next++
	c.outstanding = id
	return id, nil
}

// finish releases the outstanding id. The id itself is retired for good.
func (c *correlator) finish(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding == id {
		c.outstanding = 0
	}
}
