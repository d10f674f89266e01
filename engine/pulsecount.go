package engine

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/internal/pool"
	"github.com/AnatoleLucet/reactor/turn"
)

// Pulsecount is the mark-and-count propagation engine (§4.E): a mark phase
// walks forward from the dirty inputs, marking every reachable node exactly
// once and, for each marked edge, incrementing the successor's pending
// count; a propagate phase ticks any node whose pending count has reached
// zero (i.e. every one of its marked predecessors has already reported),
// decrementing its own successors' counts in turn. Nodes reaching zero in
// the same wave are independent of one another by construction and are
// dispatched together, concurrently when Parallel is set — this is what
// gives pulsecount its glitch-free guarantee without a global level sweep.
type Pulsecount struct {
	Parallel    bool
	Concurrency int
	Hooks       *Hooks
}

func (e *Pulsecount) Propagate(t *turn.Turn, dirtyInputs []graph.Input) error {
	e.Hooks.propagate(t)

	marked := e.mark(dirtyInputs)
	defer func() {
		for _, n := range marked {
			n.Core().SetMark(false)
			n.Core().SetPending(0)
		}
	}()

	for _, in := range dirtyInputs {
		in.ApplyInput(t)
	}

	run := &pulsecountRun{reported: make(map[graph.Node]bool)}
	return e.propagate(dirtyInputs, t, run)
}

// pulsecountRun tracks, for the duration of one Propagate call, which
// marked nodes have already reported (decremented their successors'
// pending counts) — needed to classify a dynamic node's newly attached
// predecessors on a Rewired result: a predecessor that has already
// reported this turn will never decrement again, so waiting on it would
// deadlock; one that is unmarked (outside this turn's dirty subgraph)
// holds an already-settled value and likewise needs no wait.
type pulsecountRun struct {
	mu       sync.Mutex
	reported map[graph.Node]bool
}

func (r *pulsecountRun) markReported(n graph.Node) {
	r.mu.Lock()
	r.reported[n] = true
	r.mu.Unlock()
}

func (r *pulsecountRun) isReported(n graph.Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reported[n]
}

// mark walks forward from dirtyInputs over Successors, visiting each
// reachable node exactly once and incrementing every visited successor's
// pending count once per marked predecessor edge. Returns every node
// visited, for the pending/mark reset in Propagate.
func (e *Pulsecount) mark(dirtyInputs []graph.Input) []graph.Node {
	var visited []graph.Node

	var walk func(n graph.Node)
	walk = func(n graph.Node) {
		for _, succ := range n.Successors() {
			succ.Core().IncPending()
			if !succ.Core().Mark() {
				succ.Core().SetMark(true)
				visited = append(visited, succ)
				walk(succ)
			}
		}
	}

	for _, in := range dirtyInputs {
		n := graph.Node(in)
		if !n.Core().Mark() {
			n.Core().SetMark(true)
			visited = append(visited, n)
		}
		walk(n)
	}

	return visited
}

// propagate ticks every dirty input (pending is always zero for a true
// source node, since nothing upstream of it was marked), then drains
// readiness waves: whenever ticking a node decrements a successor's pending
// to zero, that successor joins the next wave. A wave that returns a tick
// error is the last one ticked.
func (e *Pulsecount) propagate(dirtyInputs []graph.Input, t *turn.Turn, run *pulsecountRun) error {
	wave := make([]graph.Node, 0, len(dirtyInputs))
	for _, in := range dirtyInputs {
		wave = append(wave, in)
	}

	var combined error
	for len(wave) > 0 {
		next, err := e.tickWave(wave, t, run)
		combined = multierr.Append(combined, err)
		if err != nil {
			break
		}
		wave = next
	}
	return combined
}

// tickWave ticks every node in wave (already known independent: each became
// ready only once all of its marked predecessors had reported) and returns
// the next wave: successors whose pending count hits zero as a result,
// plus any Rewired node whose newly attached predecessors have all already
// settled (and so is immediately ready again).
func (e *Pulsecount) tickWave(wave []graph.Node, t *turn.Turn, run *pulsecountRun) ([]graph.Node, error) {
	var mu sync.Mutex
	var next []graph.Node
	var combined error

	tickAt := func(n graph.Node) error {
		oldPreds := n.Predecessors()

		result, err := tickOnce(n, t, e.Hooks)
		if err != nil {
			return err
		}

		if result == graph.Rewired {
			e.rewireAndRemark(n, t, oldPreds, run)
			if n.Core().Pending() == 0 {
				mu.Lock()
				next = append(next, n)
				mu.Unlock()
			}
			return nil
		}

		run.markReported(n)
		for _, succ := range n.Successors() {
			if succ.Core().DecPending() == 0 {
				mu.Lock()
				next = append(next, succ)
				mu.Unlock()
			}
		}
		return nil
	}

	if e.Parallel && len(wave) > 1 {
		fns := make([]func() error, len(wave))
		for i, n := range wave {
			n := n
			fns[i] = func() error { return tickAt(n) }
		}
		p := pool.New(e.Concurrency)
		combined = p.Run(fns...)
	} else {
		for _, n := range wave {
			combined = multierr.Append(combined, tickAt(n))
		}
	}

	return next, combined
}

// rewireAndRemark commits a Rewired node's new predecessor set and, per
// §4.E, re-marks any newly added predecessor path: a new predecessor that
// is itself marked and has not yet reported this turn is a genuine new
// dependency, so n's pending count is incremented to await it — it will be
// decremented in turn once that predecessor ticks, since Rewire's
// graph.Attach already added n to its Successors(). A new predecessor that
// is unmarked (outside this turn's dirty subgraph, so its value is already
// settled) or has already reported needs no wait at all.
func (e *Pulsecount) rewireAndRemark(n graph.Node, t *turn.Turn, oldPreds []graph.Node, run *pulsecountRun) {
	old := make(map[graph.Node]bool, len(oldPreds))
	for _, p := range oldPreds {
		old[p] = true
	}

	rewire(n, t)

	for _, p := range n.Predecessors() {
		if old[p] {
			continue
		}
		if !p.Core().Mark() || run.isReported(p) {
			continue
		}
		n.Core().IncPending()
	}
}
