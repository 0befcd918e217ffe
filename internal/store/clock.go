package store

import (
	"sync"
	"time"
)

// Clock hands out write timestamps that never go backwards within a process.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a Clock backed by now. A nil now uses time.Now in UTC.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Clock{now: now}
}

// Next returns the next write timestamp.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// Resolve returns a copy of doc with every ServerTimestamp sentinel replaced
// by a single value drawn from the clock. The id key is dropped.
func (c *Clock) Resolve(doc Document) Document {
	out := doc.Clone()
	var stamp time.Time
	for k, v := range out {
		if v != ServerTimestamp {
			continue
		}
		if stamp.IsZero() {
			stamp = c.Next()
		}
		out[k] = stamp
	}
	return out
}
