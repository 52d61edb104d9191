package ids

import "sync/atomic"

// Counter hands out request ids. The first id is 1 and ids are never reused
// for the lifetime of the counter.
type Counter struct {
	last atomic.Uint64
}

// Next allocates the next id.
func (c *Counter) Next() uint64 {
	return c.last.Add(1)
}

// Last reports the most recently allocated id, or 0 when none was allocated.
func (c *Counter) Last() uint64 {
	return c.last.Load()
}
