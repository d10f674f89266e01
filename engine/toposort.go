package engine

import (
	"go.uber.org/multierr"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/internal/pool"
	"github.com/AnatoleLucet/reactor/turn"
)

// Toposort is the level-ordered propagation engine (§4.D), adapted from the
// teacher's PriorityHeap-driven scheduler (internal/scheduler.go +
// internal/heap.go): dirty inputs seed a level-bucketed queue; each batch of
// nodes sharing the current minimum level is ticked — sequentially, or in
// parallel via internal/pool when Parallel is set — before the queue
// advances to the next level. A node reporting Rewired is re-leveled and
// re-enqueued at its new level rather than re-ticked in place, so it is
// ticked again only once its turn in level order comes back around. A batch
// that returns a tick error ends propagation: later levels are not ticked.
type Toposort struct {
	Parallel    bool
	Concurrency int // max goroutines per batch when Parallel; <= 0 is unbounded
	Hooks       *Hooks
}

func (e *Toposort) Propagate(t *turn.Turn, dirtyInputs []graph.Input) error {
	e.Hooks.propagate(t)

	q := newLevelQueue(16)
	for _, in := range dirtyInputs {
		in.ApplyInput(t)
		q.Insert(in)
	}

	var combined error
	for {
		batch := q.NextBatch()
		if batch == nil {
			break
		}

		successors, err := e.tickBatch(batch, t)
		combined = multierr.Append(combined, err)
		if err != nil {
			break
		}
		for _, n := range successors {
			q.Insert(n)
		}
	}
	return combined
}

// tickBatch ticks every node in batch (all at the same level, hence
// independent of one another) and returns the union of nodes to enqueue
// next: successors of every Pulsed node, plus any Rewired node itself
// (re-leveled, to be ticked again at its new position).
func (e *Toposort) tickBatch(batch []graph.Node, t *turn.Turn) ([]graph.Node, error) {
	next := make([][]graph.Node, len(batch))

	tickAt := func(i int) error {
		n := batch[i]
		result, err := tickOnce(n, t, e.Hooks)
		if err != nil {
			return err
		}
		switch result {
		case graph.Pulsed:
			next[i] = n.Successors()
		case graph.Rewired:
			rewire(n, t)
			next[i] = []graph.Node{n}
		}
		return nil
	}

	if e.Parallel && len(batch) > 1 {
		fns := make([]func() error, len(batch))
		for i := range batch {
			i := i
			fns[i] = func() error { return tickAt(i) }
		}
		p := pool.New(e.Concurrency)
		if err := p.Run(fns...); err != nil {
			return flatten(next), err
		}
	} else {
		var combined error
		for i := range batch {
			combined = multierr.Append(combined, tickAt(i))
		}
		return flatten(next), combined
	}

	return flatten(next), nil
}

func flatten(groups [][]graph.Node) []graph.Node {
	var out []graph.Node
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
