// Package pool wraps golang.org/x/sync/errgroup as the worker pool the
// parallel engines (toposort-parallel, pulsecount, subtree) dispatch
// same-level/same-wave node ticks onto, grounded on birdayz-kstreams'
// App.Run (errgroup.Group{}; grp.Go(...); grp.Wait()) and SPEC_FULL.md §6.
package pool

import (
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Pool runs a bounded or unbounded batch of tick functions concurrently and
// joins their errors, matching the teacher's "one errgroup per batch" usage
// rather than a long-lived worker pool.
type Pool struct {
	limit int
}

// New returns a Pool that caps concurrent goroutines at limit. A limit <= 0
// means unbounded, matching errgroup's default.
func New(limit int) *Pool {
	return &Pool{limit: limit}
}

// Run executes fns concurrently, waits for all to complete (every fn always
// runs; one failing does not cancel the rest, §7 "parallel tick errors are
// collected, not short-circuited mid-batch"), and returns every non-nil
// error combined with multierr.
func (p *Pool) Run(fns ...func() error) error {
	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	var mu sync.Mutex
	var combined error

	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			if err := fn(); err != nil {
				mu.Lock()
				combined = multierr.Append(combined, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return combined
}
