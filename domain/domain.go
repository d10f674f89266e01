// Package domain implements the orchestrator that ties a turn manager, a
// propagation engine, and an observer registry together into the
// do_transaction sequence (§4.G): allocate a turn, admit it, run the user
// closure (and any merged closures), propagate, finalize, and release —
// then dispatch any continuations the turn recorded onto other domains.
package domain

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AnatoleLucet/reactor/config"
	"github.com/AnatoleLucet/reactor/engine"
	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/internal/rlog"
	"github.com/AnatoleLucet/reactor/reactorerr"
	"github.com/AnatoleLucet/reactor/turn"
)

// TransactFunc is a domain transaction's user closure: it stages values on
// zero or more input nodes and reports which ones it touched, so the engine
// knows where to start propagation. t is provided for observer registration
// and continuation recording during admission.
type TransactFunc func(t *turn.Turn) []graph.Input

// Domain is one reactive-dataflow domain: a turn manager serializing turns,
// a propagation engine driving them, and an observer registry Finalize
// drains on every turn's way out.
type Domain struct {
	name string
	cfg  config.Domain

	clock   *turn.Clock
	manager turn.Manager
	engine  engine.Engine

	observers *ObserverRegistry
	registry  *Registry
	logger    zerolog.Logger
	hooks     *engine.Hooks

	dirtyMu     sync.Mutex
	dirtyByTurn map[*turn.Turn][]graph.Input

	contCh   chan continuationJob
	contDone chan struct{}
}

type continuationJob struct {
	target string
	fn     func()
}

// Option customizes a Domain beyond its config.Domain, mirroring
// birdayz-kstreams' functional-options App construction.
type Option func(*Domain)

// WithLogger overrides the domain's default discard logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Domain) { d.logger = l }
}

// WithRegistry attaches a shared Registry used to resolve continuation
// target domains by name.
func WithRegistry(r *Registry) Option {
	return func(d *Domain) { d.registry = r }
}

// WithClock overrides the monotonic turn-id source, mainly for tests.
func WithClock(c *turn.Clock) Option {
	return func(d *Domain) { d.clock = c }
}

// New builds a Domain from cfg, choosing its turn manager and propagation
// engine per §6/§10, and starts its continuation-dispatch goroutine.
func New(name string, cfg config.Domain, opts ...Option) (*Domain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("domain %s: %w", name, err)
	}

	d := &Domain{
		name:        name,
		cfg:         cfg,
		clock:       &turn.Clock{},
		observers:   NewObserverRegistry(),
		logger:      rlog.Null(),
		dirtyByTurn: make(map[*turn.Turn][]graph.Input),
		contCh:      make(chan continuationJob, 64),
		contDone:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	manager, err := buildManager(cfg)
	if err != nil {
		return nil, err
	}
	d.manager = manager

	d.hooks = d.newHooks()
	eng, err := buildEngine(cfg, d.hooks)
	if err != nil {
		return nil, err
	}
	d.engine = eng

	go d.dispatchContinuations()

	return d, nil
}

func buildManager(cfg config.Domain) (turn.Manager, error) {
	switch cfg.TransactionMode {
	case config.Exclusive:
		return turn.NewExclusiveManager(), nil
	case config.None:
		return turn.NewNoneManager(), nil
	default:
		return nil, fmt.Errorf("unknown transaction mode %q", cfg.TransactionMode)
	}
}

func buildEngine(cfg config.Domain, hooks *engine.Hooks) (engine.Engine, error) {
	parallel := cfg.Concurrency == config.ParallelConcurrent

	switch cfg.Engine {
	case config.ToposortSeq:
		return &engine.Toposort{Hooks: hooks}, nil
	case config.ToposortPar:
		return &engine.Toposort{Parallel: true, Concurrency: cfg.PoolConcurrency, Hooks: hooks}, nil
	case config.Pulsecount:
		return &engine.Pulsecount{Parallel: parallel, Concurrency: cfg.PoolConcurrency, Hooks: hooks}, nil
	case config.Subtree:
		return &engine.Subtree{Parallel: parallel, Concurrency: cfg.PoolConcurrency, Hooks: hooks}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func (d *Domain) newHooks() *engine.Hooks {
	return &engine.Hooks{
		OnTurnAdmissionStart: func(t *turn.Turn) {
			d.logger.Debug().Str("domain", d.name).Uint64("turn_id", t.ID()).Msg("turn admission start")
		},
		OnTurnAdmissionEnd: func(t *turn.Turn) {
			d.logger.Debug().Str("domain", d.name).Uint64("turn_id", t.ID()).Msg("turn admission end")
		},
		OnTurnPropagate: func(t *turn.Turn) {
			d.logger.Debug().Str("domain", d.name).Uint64("turn_id", t.ID()).Str("engine", string(d.cfg.Engine)).Msg("turn propagate")
		},
		OnTurnEnd: func(t *turn.Turn) {
			d.logger.Debug().Str("domain", d.name).Uint64("turn_id", t.ID()).Msg("turn end")
		},
	}
}

// Observers exposes the domain's observer registry so combinator-layer code
// can Register observers and QueueObserverDetach their handles on a Turn.
func (d *Domain) Observers() *ObserverRegistry { return d.observers }

// Name returns the domain's configured name.
func (d *Domain) Name() string { return d.name }

// Transact runs the full do_transaction sequence (§4.G): allocate a turn,
// admit it via the turn manager, run fn, run any closures merged into this
// turn while it was still open, propagate, finalize, and release — in that
// order, with finalize/end/continuation-dispatch deferred so they still run
// on a panicking exit path (a fatal *reactorerr.Error re-panicked out of
// d.engine.Propagate, per §"Failure semantics": "Implementations must still
// call turn.finalize() and turn_manager.end(turn) on all exit paths").
// Without this, a CycleDetected/InvalidState panic raised from inside a
// dynamic node's Rewire would unwind past End(t), leaving the
// ExclusiveManager's tail slot open forever and wedging every later
// Transact/TryMerge on this domain.
func (d *Domain) Transact(flags turn.Flags, fn TransactFunc) (err error) {
	id := d.clock.Next()
	t := turn.New(id, flags)

	d.hooks.OnTurnAdmissionStart(t)
	d.manager.Start(t)
	d.hooks.OnTurnAdmissionEnd(t)

	defer func() {
		conts := t.Finalize()
		d.manager.End(t)
		d.hooks.OnTurnEnd(t)
		d.enqueueContinuations(conts)
	}()

	t.MarkExecuting()

	dirty := fn(t)

	d.manager.RunMerged(t)
	dirty = append(dirty, d.takeMergedDirty(t)...)

	err = d.engine.Propagate(t, dirty)
	return err
}

// TransactAsync attempts to coalesce fn's inputs into the still-open tail
// turn via the turn manager's merge path (§4.C); if no turn is open to
// merge into, or merging is disallowed, it falls back to a full Transact.
func (d *Domain) TransactAsync(flags turn.Flags, fn TransactFunc) error {
	merged := d.manager.TryMerge(func(mt *turn.Turn) {
		ins := fn(mt)
		d.dirtyMu.Lock()
		d.dirtyByTurn[mt] = append(d.dirtyByTurn[mt], ins...)
		d.dirtyMu.Unlock()
	})
	if merged {
		return nil
	}
	return d.Transact(flags, fn)
}

func (d *Domain) takeMergedDirty(t *turn.Turn) []graph.Input {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	ins := d.dirtyByTurn[t]
	delete(d.dirtyByTurn, t)
	return ins
}

// enqueueContinuations posts every continuation recorded during the turn
// onto the dispatch goroutine, preserving record order (§9's resolved Open
// Question). It blocks the turn that produced them only while the 64-entry
// dispatch buffer is full.
func (d *Domain) enqueueContinuations(conts []turn.Continuation) {
	for _, c := range conts {
		select {
		case d.contCh <- continuationJob{target: c.Domain, fn: c.Fn}:
		case <-d.contDone:
			return
		}
	}
}

// dispatchContinuations drains contCh sequentially on a single background
// goroutine, so continuations dispatch in the FIFO order they were
// recorded across every turn this domain has run, until Close stops it.
func (d *Domain) dispatchContinuations() {
	for {
		select {
		case job := <-d.contCh:
			d.runContinuation(job)
		case <-d.contDone:
			return
		}
	}
}

func (d *Domain) runContinuation(job continuationJob) {
	target, ok := d.lookupTarget(job.target)
	if !ok {
		d.logger.Warn().
			Str("domain", d.name).
			Str("target", job.target).
			Err(reactorerr.New(reactorerr.ContinuationDispatch, "dispatch", fmt.Errorf("unknown target domain"))).
			Msg("continuation dropped")
		return
	}

	if err := target.TransactAsync(turn.Flags{}, func(*turn.Turn) []graph.Input {
		job.fn()
		return nil
	}); err != nil {
		d.logger.Warn().
			Str("domain", d.name).
			Str("target", job.target).
			Err(reactorerr.New(reactorerr.ContinuationDispatch, "dispatch", err)).
			Msg("continuation transaction failed")
	}
}

func (d *Domain) lookupTarget(name string) (*Domain, bool) {
	if name == d.name {
		return d, true
	}
	if d.registry == nil {
		return nil, false
	}
	return d.registry.Lookup(name)
}

// Close stops the continuation-dispatch goroutine. Any continuation still
// queued when Close is called is dropped, not drained.
func (d *Domain) Close() {
	close(d.contDone)
}
