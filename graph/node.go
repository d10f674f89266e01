// Package graph implements the node/graph data model with reference-based
// lifetime (§3, §4.A): per-node identity, predecessor/successor links,
// level, and the tick entry point every engine drives. Predecessors are
// strong references (owning); successors are non-owning back-references
// used only for scheduling, mirroring the teacher's DependencyLink and
// cpp.react's bidirectional node graph (see SPEC_FULL.md §3).
package graph

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/AnatoleLucet/reactor/reactorerr"
	"github.com/AnatoleLucet/reactor/turn"
)

// TickResult is the outcome of a Node's tick within a turn (§4.A).
type TickResult int

const (
	// Pulsed means the node's value/events changed; successors must be
	// scheduled.
	Pulsed TickResult = iota

	// IdlePulsed means the node was evaluated but produced no downstream
	// effect; used by the pulse-count engine to satisfy waiting successors
	// without propagating further.
	IdlePulsed

	// Rewired means a dynamic node's predecessor set changed during the
	// tick; the engine must re-level and re-tick it.
	Rewired
)

func (r TickResult) String() string {
	switch r {
	case Pulsed:
		return "pulsed"
	case IdlePulsed:
		return "idle_pulsed"
	case Rewired:
		return "rewired"
	default:
		return "unknown"
	}
}

// Node is the engine-visible capability set every reactive value exposes.
type Node interface {
	Predecessors() []Node
	Successors() []Node
	Tick(t *turn.Turn) TickResult
	IsInput() bool

	Core() *NodeCore
}

// Dynamic is implemented by nodes allowed to change their predecessor set
// during their own Tick (§4.A, §9 "dynamic rewire vs static dispatch").
// Engines type-assert for this to handle a Rewired result without probing.
type Dynamic interface {
	Node
	Rewire(t *turn.Turn)
}

// Input is a node with no predecessors that publishes staged values.
type Input interface {
	Node
	ApplyInput(t *turn.Turn)
}

// schedState is a node's per-turn scheduling state (§4.H):
// Idle -> Scheduled -> Ticking -> Idle. Scheduled -> Scheduled is coalesced.
type schedState int32

const (
	Idle schedState = iota
	Scheduled
	Ticking
)

// NodeCore holds the mutable scratch fields an engine owns and mutates while
// ticking a node: level, mark, pending-predecessor count, rewire scratch
// level, heap/queue membership, and per-turn scheduling state. Embed it in
// every concrete node type; it satisfies most of Node except Tick/IsInput.
type NodeCore struct {
	mu    sync.RWMutex
	preds []Node
	succs []Node

	level    int
	newLevel int
	mark     bool
	pending  int32
	queued   bool
	state    schedState

	tickOwner int64 // goroutine id currently ticking/rewiring this node, 0 if none
}

func (c *NodeCore) Core() *NodeCore { return c }

func (c *NodeCore) Predecessors() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.preds))
	copy(out, c.preds)
	return out
}

func (c *NodeCore) Successors() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.succs))
	copy(out, c.succs)
	return out
}

// Level returns the node's current level: 1 + max predecessor level, except
// transiently during dynamic rewiring.
func (c *NodeCore) Level() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

func (c *NodeCore) setLevel(l int) {
	c.mu.Lock()
	c.level = l
	c.mu.Unlock()
}

// NewLevel / SetNewLevel hold the rewire scratch field (§3).
func (c *NodeCore) NewLevel() int          { return c.newLevel }
func (c *NodeCore) SetNewLevel(l int)      { c.newLevel = l }
func (c *NodeCore) CommitNewLevel()        { c.setLevel(c.newLevel) }

// Mark / SetMark drive the pulse-count and subtree engines'
// mark phase.
func (c *NodeCore) Mark() bool     { return c.mark }
func (c *NodeCore) SetMark(v bool) { c.mark = v }

// Pending is the pulse-count engine's per-node pending-predecessor counter.
func (c *NodeCore) Pending() int32       { return atomic.LoadInt32(&c.pending) }
func (c *NodeCore) SetPending(n int32)   { atomic.StoreInt32(&c.pending, n) }
func (c *NodeCore) IncPending() int32    { return atomic.AddInt32(&c.pending, 1) }
func (c *NodeCore) DecPending() int32    { return atomic.AddInt32(&c.pending, -1) }

// Queued reports whether the node is currently enqueued for scheduling.
func (c *NodeCore) Queued() bool     { return c.queued }
func (c *NodeCore) SetQueued(v bool) { c.queued = v }

// State returns the node's per-turn scheduling state.
func (c *NodeCore) State() schedState { return schedState(atomic.LoadInt32((*int32)(&c.state))) }

// TrySchedule transitions Idle -> Scheduled, returning false if the node
// was already Scheduled or Ticking (coalescing re-schedules, §4.H).
func (c *NodeCore) TrySchedule() bool {
	return atomic.CompareAndSwapInt32((*int32)(&c.state), int32(Idle), int32(Scheduled))
}

// BeginTick transitions Scheduled -> Ticking and records the owning
// goroutine for the thread-affinity check in Attach/Detach.
func (c *NodeCore) BeginTick() {
	atomic.StoreInt32((*int32)(&c.state), int32(Ticking))
	atomic.StoreInt64(&c.tickOwner, goid.Get())
}

// EndTick transitions Ticking -> Idle.
func (c *NodeCore) EndTick() {
	atomic.StoreInt64(&c.tickOwner, 0)
	atomic.StoreInt32((*int32)(&c.state), int32(Idle))
}

func (c *NodeCore) tickingByOther() bool {
	owner := atomic.LoadInt64(&c.tickOwner)
	return owner != 0 && owner != goid.Get()
}

// Attach creates a bidirectional dependency link: self gains pred as a
// (strong) predecessor and pred gains self as a (non-owning) successor.
// self's level is raised to max(level, level(pred)+1). Attaching an
// already-present predecessor is a no-op. Attach panics with a
// reactorerr.CycleDetected if the new edge would create a cycle, and with
// reactorerr.InvalidState if self is currently being ticked by a different
// goroutine than the caller (§4.A: "must not be invoked while that node is
// being ticked by another thread").
func Attach(self, pred Node) {
	sc := self.Core()
	pc := pred.Core()

	if sc.tickingByOther() {
		panic(reactorerr.New(reactorerr.InvalidState, "Attach", fmt.Errorf("node is being ticked by another goroutine")))
	}

	if wouldCycle(self, pred) {
		panic(reactorerr.New(reactorerr.CycleDetected, "Attach", fmt.Errorf("attaching %v to %v would create a cycle", pred, self)))
	}

	sc.mu.Lock()
	for _, p := range sc.preds {
		if p == pred {
			sc.mu.Unlock()
			return
		}
	}
	sc.preds = append(sc.preds, pred)
	if sc.level <= pc.Level() {
		sc.level = pc.Level() + 1
	}
	sc.mu.Unlock()

	pc.mu.Lock()
	pc.succs = append(pc.succs, self)
	pc.mu.Unlock()
}

// Detach removes a bidirectional dependency link previously created by
// Attach. Detaching a predecessor that is not present is a programming
// error (fatal, per §4 "Failure semantics").
func Detach(self, pred Node) {
	sc := self.Core()
	pc := pred.Core()

	if sc.tickingByOther() {
		panic(reactorerr.New(reactorerr.InvalidState, "Detach", fmt.Errorf("node is being ticked by another goroutine")))
	}

	sc.mu.Lock()
	idx := -1
	for i, p := range sc.preds {
		if p == pred {
			idx = i
			break
		}
	}
	if idx < 0 {
		sc.mu.Unlock()
		panic(reactorerr.New(reactorerr.InvalidState, "Detach", fmt.Errorf("%v is not a predecessor of %v", pred, self)))
	}
	sc.preds = append(sc.preds[:idx], sc.preds[idx+1:]...)
	sc.mu.Unlock()

	pc.mu.Lock()
	for i, s := range pc.succs {
		if s == self {
			pc.succs = append(pc.succs[:i], pc.succs[i+1:]...)
			break
		}
	}
	pc.mu.Unlock()
}

// wouldCycle reports whether self is already reachable, via predecessor
// edges, starting from pred — i.e. whether pred transitively depends on
// self, which would make attaching pred to self a cycle.
func wouldCycle(self, pred Node) bool {
	if self == pred {
		return true
	}

	visited := make(map[Node]bool)
	var dfs func(n Node) bool
	dfs = func(n Node) bool {
		if n == self {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, p := range n.Predecessors() {
			if dfs(p) {
				return true
			}
		}
		return false
	}
	return dfs(pred)
}
