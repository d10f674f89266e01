package turn

import "sync/atomic"

// Clock hands out monotonically increasing turn ids for a single domain.
type Clock struct {
	next atomic.Uint64
}

// Next returns the next turn id. Ids start at 1 so the zero value never
// collides with an unset id.
func (c *Clock) Next() uint64 {
	return c.next.Add(1)
}
