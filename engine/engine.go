// Package engine implements the three interchangeable propagation engines
// (§4.D/E/F): level-ordered toposort, mark-and-count pulsecount, and
// dirty-subtree-scoped subtree. All three share the same observable
// semantics (glitch-free, single-tick-per-input-set) but trade off
// concurrency strategy and per-turn bookkeeping cost differently.
package engine

import (
	"fmt"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/reactorerr"
	"github.com/AnatoleLucet/reactor/turn"
)

// Kind selects which propagation strategy a domain instantiates.
type Kind int

const (
	ToposortSequential Kind = iota
	ToposortParallel
	PulsecountKind
	SubtreeKind
)

func (k Kind) String() string {
	switch k {
	case ToposortSequential:
		return "toposort_seq"
	case ToposortParallel:
		return "toposort_par"
	case PulsecountKind:
		return "pulsecount"
	case SubtreeKind:
		return "subtree"
	default:
		return "unknown"
	}
}

// Engine propagates a turn's changes through the reachable graph in
// dependency order, firing observers along the way (§4.D/E/F, §6).
type Engine interface {
	// Propagate drives dirtyInputs' ApplyInput, then ticks every
	// transitively reachable node at most once per input set, honoring
	// dynamic rewiring (§3, §4.A). Returns the combined tick error, if any
	// (§7 UserTickError), after the current batch completes.
	Propagate(t *turn.Turn, dirtyInputs []graph.Input) error
}

// Hooks are the lifecycle/diagnostic callbacks for nodes and turns (§6
// "Provided to nodes / combinator layer"). A nil Hooks is valid; every field
// is optional. The engines invoke OnNodePulse, OnIdlePulse and
// OnTurnPropagate; package domain invokes OnTurnAdmissionStart,
// OnTurnAdmissionEnd and OnTurnEnd. OnNodeCreate, OnNodeDestroy,
// OnNodeAttach, OnNodeDetach, OnNodeShift and OnTurnInputChange are not
// invoked anywhere in this module.
type Hooks struct {
	OnNodeCreate  func(n graph.Node)
	OnNodeDestroy func(n graph.Node)
	OnNodeAttach  func(child, parent graph.Node)
	OnNodeDetach  func(child, parent graph.Node)
	OnNodePulse   func(n graph.Node, t *turn.Turn)
	OnIdlePulse   func(n graph.Node, t *turn.Turn)
	OnNodeShift   func(n, oldParent, newParent graph.Node, t *turn.Turn)

	OnTurnAdmissionStart func(t *turn.Turn)
	OnTurnAdmissionEnd   func(t *turn.Turn)
	OnTurnInputChange    func(n graph.Node, t *turn.Turn)
	OnTurnPropagate      func(t *turn.Turn)
	OnTurnEnd            func(t *turn.Turn)
}

func (h *Hooks) pulse(n graph.Node, t *turn.Turn) {
	if h != nil && h.OnNodePulse != nil {
		h.OnNodePulse(n, t)
	}
}

func (h *Hooks) idlePulse(n graph.Node, t *turn.Turn) {
	if h != nil && h.OnIdlePulse != nil {
		h.OnIdlePulse(n, t)
	}
}

func (h *Hooks) propagate(t *turn.Turn) {
	if h != nil && h.OnTurnPropagate != nil {
		h.OnTurnPropagate(t)
	}
}

// tickOnce ticks n exactly once and reports hook callbacks for the result.
// A Rewired result is the caller engine's responsibility: the node must be
// re-leveled (see rewire() below) and ticked again. Toposort and Pulsecount
// re-schedule it, so it is ticked again only once its (possibly new)
// position in the scheduling order comes up; Subtree re-ticks it in place
// once its new marked predecessors have been ticked.
//
// A panic escaping n.Tick is a user-tick failure (§7): it is recovered and
// reported as a reactorerr.UserTick error rather than crashing the
// propagation goroutine, unless it is itself a *reactorerr.Error (a graph
// invariant violation such as CycleDetected/InvalidState), which is a
// programming error and re-panics.
func tickOnce(n graph.Node, t *turn.Turn, hooks *Hooks) (result graph.TickResult, err error) {
	c := n.Core()
	c.BeginTick()
	defer c.EndTick()

	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(*reactorerr.Error); ok {
				panic(rerr)
			}
			err = reactorerr.New(reactorerr.UserTick, "Tick", fmt.Errorf("%v", r))
		}
	}()

	result = n.Tick(t)

	switch result {
	case graph.Pulsed:
		hooks.pulse(n, t)
	case graph.IdlePulsed:
		hooks.idlePulse(n, t)
	}

	return result, nil
}

// rewire asks a Dynamic node to update its own predecessor set and commits
// its recomputed level (§3, §4.A, §9). Panics with reactorerr.InvalidState
// if the engine calls it on a non-Dynamic node, which would be an engine
// bug (a node may only report Rewired if it implements Dynamic).
func rewire(n graph.Node, t *turn.Turn) {
	dyn, ok := n.(graph.Dynamic)
	if !ok {
		panic(reactorerr.New(reactorerr.InvalidState, "rewire", fmt.Errorf("rewired result from a non-Dynamic node")))
	}
	dyn.Rewire(t)
	n.Core().CommitNewLevel()
}
