// Package turn implements the transactional unit of change (§4.B) and its
// exclusive, mergeable serialization across a domain's concurrent inputs
// (§4.C), adapted from cpp.react's TurnBase/ExclusiveTurnManager
// (see _examples/original_source/include/react/propagation/EngineBase.h).
package turn

import (
	"sync"
	"sync/atomic"
)

// Flags are the admission flags a turn is created with.
type Flags struct {
	// AllowInputMerging permits later, still-blocked-turn-compatible input
	// closures to be merged into this turn instead of starting a new one.
	AllowInputMerging bool
}

// State is the turn's lifecycle stage: Admitted -> Executing -> Finalizing
// -> Ended. The state does not gate merging: a Manager accepts merges into a
// turn until that turn's merged closures are run (Manager.RunMerged).
type State int32

const (
	Admitted State = iota
	Executing
	Finalizing
	Ended
)

// ObserverHandle is anything that can be told to detach.
type ObserverHandle interface {
	Unregister()
}

// Continuation is a deferred message recorded during a turn: a target
// domain name and a closure to run as a later turn on that domain.
type Continuation struct {
	Domain string
	Fn     func()
}

// Turn is one serialized unit of change within a domain.
type Turn struct {
	id    uint64
	flags Flags
	state atomic.Int32

	mu            sync.Mutex
	detachQueue   []ObserverHandle
	continuations []Continuation
	finalized     bool
}

// New allocates a turn with the given monotonic id and admission flags.
// Domains obtain ids from a Clock (see clock.go).
func New(id uint64, flags Flags) *Turn {
	t := &Turn{id: id, flags: flags}
	t.state.Store(int32(Admitted))
	return t
}

// ID returns the turn's monotonic id, unique within its domain.
func (t *Turn) ID() uint64 { return t.id }

// Flags returns the admission flags this turn was created with.
func (t *Turn) Flags() Flags { return t.flags }

// State returns the turn's current lifecycle stage.
func (t *Turn) State() State { return State(t.state.Load()) }

func (t *Turn) setState(s State) { t.state.Store(int32(s)) }

// QueueObserverDetach thread-safely appends an observer to be unregistered
// when the turn finalizes.
func (t *Turn) QueueObserverDetach(h ObserverHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detachQueue = append(t.detachQueue, h)
}

// RecordContinuation thread-safely appends a continuation to be dispatched,
// in record order, after this turn ends.
func (t *Turn) RecordContinuation(domain string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.continuations = append(t.continuations, Continuation{Domain: domain, Fn: fn})
}

// Finalize unregisters queued observers exactly once and returns the
// recorded continuations in record order for the domain to dispatch. It is
// safe to call multiple times; only the first call has effect.
func (t *Turn) Finalize() []Continuation {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return nil
	}
	t.finalized = true
	t.setState(Finalizing)
	detach := t.detachQueue
	t.detachQueue = nil
	continuations := t.continuations
	t.continuations = nil
	t.mu.Unlock()

	for _, h := range detach {
		h.Unregister()
	}

	t.setState(Ended)
	return continuations
}

// MarkExecuting transitions the turn out of Admitted once the domain starts
// running its user closure. It only records the state; the manager keeps
// accepting merges until RunMerged runs them.
func (t *Turn) MarkExecuting() { t.setState(Executing) }
