package domain

import (
	"sync"

	"github.com/AnatoleLucet/reactor/turn"
)

// ObserverRegistry tracks live observer handles for a domain (§4.H): plain
// membership guarded by a mutex, with idempotent Unregister invoked only
// from Turn.Finalize's detach queue.
type ObserverRegistry struct {
	mu  sync.Mutex
	set map[*observerEntry]struct{}
}

func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{set: make(map[*observerEntry]struct{})}
}

type observerEntry struct {
	reg *ObserverRegistry
	fn  func()
}

// Register adds an observer to the registry and returns the handle a Turn's
// QueueObserverDetach expects; fn runs once, at actual detach time.
func (r *ObserverRegistry) Register(fn func()) turn.ObserverHandle {
	e := &observerEntry{reg: r, fn: fn}
	r.mu.Lock()
	r.set[e] = struct{}{}
	r.mu.Unlock()
	return e
}

// Unregister removes the observer if still present and runs its detach
// callback exactly once; a second call is a no-op.
func (e *observerEntry) Unregister() {
	e.reg.mu.Lock()
	_, present := e.reg.set[e]
	delete(e.reg.set, e)
	e.reg.mu.Unlock()

	if present && e.fn != nil {
		e.fn()
	}
}

// Len reports the number of currently registered observers.
func (r *ObserverRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}
