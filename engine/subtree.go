package engine

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/internal/pool"
	"github.com/AnatoleLucet/reactor/turn"
)

// Subtree is the dirty-subtree-scoped propagation engine (§4.F). Like
// Pulsecount it only ever visits nodes reachable from the dirty inputs, but
// instead of a global mark phase followed by wave-synchronized counting, it
// dispatches per dirty-input recursively: each node is ticked only once
// every one of its *marked* predecessors has been ticked (ensureTicked,
// below), guarded by a once-per-node join so that a node reachable from
// several dirty inputs is still ticked exactly once. Clean subtrees — any
// region with no marked predecessor at all — are never entered, and
// disjoint dirty subtrees (no shared descendant) require no synchronization
// with one another at all, unlike pulsecount's global per-wave barrier.
type Subtree struct {
	Parallel    bool
	Concurrency int
	Hooks       *Hooks
}

type subtreeRun struct {
	marked map[graph.Node]bool
	once   map[graph.Node]*sync.Once
	mu     sync.Mutex

	errMu sync.Mutex
	err   error

	pool *pool.Pool
}

func (e *Subtree) Propagate(t *turn.Turn, dirtyInputs []graph.Input) error {
	e.Hooks.propagate(t)

	run := &subtreeRun{
		marked: make(map[graph.Node]bool),
		once:   make(map[graph.Node]*sync.Once),
	}
	if e.Parallel {
		run.pool = pool.New(e.Concurrency)
	}

	for _, in := range dirtyInputs {
		e.mark(graph.Node(in), run.marked)
	}
	for n := range run.marked {
		run.once[n] = &sync.Once{}
	}

	for _, in := range dirtyInputs {
		in.ApplyInput(t)
	}

	if e.Parallel && len(dirtyInputs) > 1 {
		fns := make([]func() error, len(dirtyInputs))
		for i, in := range dirtyInputs {
			n := graph.Node(in)
			fns[i] = func() error { e.ensureTicked(n, t, run, e.Hooks); return nil }
		}
		run.pool.Run(fns...)
	} else {
		for _, in := range dirtyInputs {
			e.ensureTicked(graph.Node(in), t, run, e.Hooks)
		}
	}

	for n := range run.marked {
		n.Core().SetMark(false)
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.err
}

// mark walks forward from n over Successors, visiting the reachable set
// exactly once (same traversal as Pulsecount.mark, without the pending
// counters — subtree completion is tracked per node via sync.Once instead).
func (e *Subtree) mark(n graph.Node, marked map[graph.Node]bool) {
	if marked[n] {
		return
	}
	marked[n] = true
	n.Core().SetMark(true)
	for _, succ := range n.Successors() {
		e.mark(succ, marked)
	}
}

// ensureTicked guarantees n has been ticked exactly once this turn: it
// first recursively ensures every marked predecessor of n has been ticked
// (concurrently, when Parallel), then ticks n under a sync.Once so a node
// reached from multiple dirty inputs (a join) still runs only once. A
// Rewired result re-levels n and re-ensures its (possibly new) marked
// predecessors before ticking again.
func (e *Subtree) ensureTicked(n graph.Node, t *turn.Turn, run *subtreeRun, hooks *Hooks) {
	once := run.once[n]
	if once == nil {
		// n was never reached by the mark walk (e.g. a static node a
		// Rewired predecessor just attached to); nothing to ensure.
		return
	}

	once.Do(func() {
		e.ensurePredecessors(n, t, run, hooks)
		e.tickAndRewireLoop(n, t, run, hooks)
	})
}

func (e *Subtree) ensurePredecessors(n graph.Node, t *turn.Turn, run *subtreeRun, hooks *Hooks) {
	var marked []graph.Node
	for _, p := range n.Predecessors() {
		run.mu.Lock()
		isMarked := run.marked[p]
		run.mu.Unlock()
		if isMarked {
			marked = append(marked, p)
		}
	}

	if e.Parallel && len(marked) > 1 {
		fns := make([]func() error, len(marked))
		for i, p := range marked {
			p := p
			fns[i] = func() error { e.ensureTicked(p, t, run, hooks); return nil }
		}
		run.pool.Run(fns...)
		return
	}

	for _, p := range marked {
		e.ensureTicked(p, t, run, hooks)
	}
}

func (e *Subtree) tickAndRewireLoop(n graph.Node, t *turn.Turn, run *subtreeRun, hooks *Hooks) {
	result, err := tickOnce(n, t, hooks)
	if err != nil {
		run.errMu.Lock()
		run.err = multierr.Append(run.err, err)
		run.errMu.Unlock()
		return
	}

	for result == graph.Rewired {
		rewire(n, t)

		run.mu.Lock()
		for _, p := range n.Predecessors() {
			if !run.marked[p] {
				run.marked[p] = true
				if run.once[p] == nil {
					run.once[p] = &sync.Once{}
				}
			}
		}
		run.mu.Unlock()

		e.ensurePredecessors(n, t, run, hooks)

		result, err = tickOnce(n, t, hooks)
		if err != nil {
			run.errMu.Lock()
			run.err = multierr.Append(run.err, err)
			run.errMu.Unlock()
			return
		}
	}

	var ready []graph.Node
	for _, succ := range n.Successors() {
		run.mu.Lock()
		isMarked := run.marked[succ]
		run.mu.Unlock()
		if isMarked {
			ready = append(ready, succ)
		}
	}

	if e.Parallel && len(ready) > 1 {
		fns := make([]func() error, len(ready))
		for i, succ := range ready {
			succ := succ
			fns[i] = func() error { e.ensureTicked(succ, t, run, hooks); return nil }
		}
		run.pool.Run(fns...)
		return
	}

	for _, succ := range ready {
		e.ensureTicked(succ, t, run, hooks)
	}
}
