package actor

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/tdcore/internal/baselib/log"
)

// ActorConfig holds the configuration parameters for creating a new Actor,
// adapted from the teacher's ActorConfig.
type ActorConfig[M Message, R any] struct {
	// Name is the actor's stable debug name (spec §3, "Created with a
	// stable name string for debugging").
	Name string

	// SchedulerID is the scheduler thread this actor is bound to.
	SchedulerID int

	Behavior ActorBehavior[M, R]

	DLO ActorRef[Message, any]

	MailboxSize int

	Wg *sync.WaitGroup

	CleanupTimeout fn.Option[time.Duration]

	// watchers, if any, have their notify callback invoked when this
	// actor terminates.
	watchers []hangupWatcher
}

type hangupWatcher struct {
	id     string
	notify func(terminatedID string)
}

// Actor is the concrete runtime for one actor: it owns a mailbox, a single
// processing goroutine bound to its scheduler thread, an optional pending
// timer, and a lifecycle state machine Uninitialized -> Running -> Stopped
// (spec §3).
type Actor[M Message, R any] struct {
	name        string
	schedulerID int

	behavior ActorBehavior[M, R]
	mailbox  Mailbox[M, R]

	ctx    context.Context
	cancel context.CancelFunc

	dlo ActorRef[Message, any]
	wg  *sync.WaitGroup

	cleanupTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	ref ActorRef[M, R]

	state atomicState

	// timerMu protects timer/timerDeadline against concurrent
	// SetTimeoutIn/At calls racing with the processing goroutine
	// resetting the timer.
	timerMu       sync.Mutex
	timer         *time.Timer
	timerDeadline time.Time

	watchersMu sync.Mutex
	watchers   []hangupWatcher
}

// State enumerates the actor lifecycle (spec §3).
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
)

type atomicState struct {
	mu sync.RWMutex
	v  State
}

func (s *atomicState) get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *atomicState) set(v State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

// NewActor constructs an actor in the Uninitialized state. Start must be
// called to begin processing.
func NewActor[M Message, R any](cfg ActorConfig[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	mailboxCapacity := cfg.MailboxSize
	if mailboxCapacity <= 0 {
		mailboxCapacity = 1
	}

	a := &Actor[M, R]{
		name:           cfg.Name,
		schedulerID:    cfg.SchedulerID,
		behavior:       cfg.Behavior,
		mailbox:        newChannelMailbox[M, R](ctx, mailboxCapacity),
		ctx:            ctx,
		cancel:         cancel,
		dlo:            cfg.DLO,
		wg:             cfg.Wg,
		cleanupTimeout: cfg.CleanupTimeout.UnwrapOr(5 * time.Second),
		watchers:       cfg.watchers,
	}
	a.ref = &actorRefImpl[M, R]{actor: a}

	return a
}

// Name returns the actor's stable debug name.
func (a *Actor[M, R]) Name() string {
	return a.name
}

// SchedulerID returns the scheduler thread this actor is bound to.
func (a *Actor[M, R]) SchedulerID() int {
	return a.schedulerID
}

// State returns the actor's current lifecycle state.
func (a *Actor[M, R]) State() State {
	return a.state.get()
}

// Start transitions Uninitialized -> Running and launches the processing
// goroutine. Safe to call more than once; only the first call has effect.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		a.state.set(StateRunning)

		if a.wg != nil {
			a.wg.Add(1)
		}

		log.DebugS(a.ctx, "starting actor", "actor", a.name,
			"scheduler", a.schedulerID)

		if sh, ok := a.behavior.(StartupHandler); ok {
			if err := sh.OnStart(a.ctx); err != nil {
				log.WarnS(a.ctx, "actor start_up failed",
					err, "actor", a.name)
			}
		}

		go a.process()
	})
}

// SetTimeoutIn arms (or replaces) the actor's pending timer to fire
// timeout_expired after d. Spec §4.1: "replaces any pending timer".
func (a *Actor[M, R]) SetTimeoutIn(d time.Duration) {
	a.SetTimeoutAt(time.Now().Add(d))
}

// SetTimeoutAt arms (or replaces) the actor's pending timer to fire at the
// given deadline.
func (a *Actor[M, R]) SetTimeoutAt(deadline time.Time) {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}

	a.timerDeadline = deadline
	a.timer = time.NewTimer(time.Until(deadline))
}

func (a *Actor[M, R]) timerChan() <-chan time.Time {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()

	if a.timer == nil {
		return nil
	}
	return a.timer.C
}

func (a *Actor[M, R]) clearTimer() {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()
	a.timer = nil
}

// process is the actor's single-threaded event loop: dispatch a due timer,
// process one mailbox message, repeat, mirroring the scheduler model of
// spec §4.1 ("dispatch all due timers, drain the local mailbox, block").
func (a *Actor[M, R]) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	mailCh := a.mailbox.Chan()

	for {
		// A Stop that arrived while the previous message was being
		// handled takes precedence over anything still queued.
		if a.ctx.Err() != nil {
			a.teardown()
			return
		}

		select {
		case <-a.ctx.Done():
			a.teardown()
			return

		case <-a.timerChan():
			a.clearTimer()
			if th, ok := a.behavior.(TimeoutHandler); ok {
				th.OnTimeout(a.ctx)
			}
			continue

		case env, ok := <-mailCh:
			if !ok {
				a.teardown()
				return
			}
			a.handle(env)
		}
	}
}

func (a *Actor[M, R]) handle(env envelope[M, R]) {
	ctx := a.ctx
	if env.promise != nil && env.ctx != nil {
		var cancel context.CancelFunc
		ctx, cancel = mergeContexts(a.ctx, env.ctx)
		defer cancel()
	}

	log.TraceS(ctx, "actor processing message", "actor", a.name,
		"msg_type", env.msg.MessageType())

	result := a.behavior.Receive(ctx, env.msg)

	if env.promise != nil {
		env.promise.Complete(result)
	}
}

func (a *Actor[M, R]) teardown() {
	a.mailbox.Close()

	drained := 0
	for env := range a.mailbox.Drain() {
		drained++
		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.msg)
		}
		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	if s, ok := a.behavior.(Stoppable); ok {
		cctx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		if err := s.OnStop(cctx); err != nil {
			log.WarnS(a.ctx, "actor tear_down failed", err,
				"actor", a.name)
		}
		cancel()
	}

	a.state.set(StateStopped)

	a.watchersMu.Lock()
	watchers := a.watchers
	a.watchersMu.Unlock()
	for _, w := range watchers {
		w.notify(a.name)
	}

	log.DebugS(a.ctx, "actor terminated", "actor", a.name,
		"drained", drained)
}

// Stop transitions the actor to Stopped after the current closure
// finishes; tear_down runs before the goroutine exits.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(a.cancel)
}

// Ref returns an ActorRef for Tell/Ask access to this actor.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a tell-only view of this actor.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

// watchHangup registers a callback invoked once, with this actor's name,
// after tear_down completes (spec §4.1 Actor "hangup" hook's counterpart:
// another actor observing this one's termination).
func (a *Actor[M, R]) watchHangup(watcherID string, notify func(string)) {
	a.watchersMu.Lock()
	defer a.watchersMu.Unlock()
	a.watchers = append(a.watchers, hangupWatcher{id: watcherID, notify: notify})
}

// mergeContexts returns a context cancelled when either parent is
// cancelled, preserving the earliest deadline (adapted from the teacher's
// actor.mergeContexts).
func mergeContexts(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	d1, ok1 := ctx1.Deadline()
	d2, ok2 := ctx2.Deadline()

	base := ctx1
	if ok2 && (!ok1 || d2.Before(d1)) {
		base = ctx2
	}

	merged, cancel := context.WithCancel(base)

	go func() {
		select {
		case <-ctx1.Done():
			cancel()
		case <-ctx2.Done():
			cancel()
		case <-merged.Done():
		}
	}()

	return merged, cancel
}

// actorRefImpl is the concrete ActorRef handed out by Actor.Ref/TellRef.
type actorRefImpl[M Message, R any] struct {
	actor *Actor[M, R]
}

func (r *actorRefImpl[M, R]) ID() string {
	return r.actor.name
}

func (r *actorRefImpl[M, R]) Tell(ctx context.Context, msg M) {
	env := envelope[M, R]{ctx: ctx, msg: msg}

	if ok := r.actor.mailbox.Send(ctx, env); !ok {
		if r.actor.dlo != nil && (ctx.Err() == nil || r.actor.ctx.Err() != nil) {
			r.actor.dlo.Tell(context.Background(), msg)
		}
	}
}

func (r *actorRefImpl[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	promise := newPromise[R]()

	if r.actor.ctx.Err() != nil {
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	env := envelope[M, R]{ctx: ctx, msg: msg, promise: promise}

	if ok := r.actor.mailbox.Send(ctx, env); !ok {
		if r.actor.ctx.Err() != nil {
			promise.Complete(fn.Err[R](ErrActorTerminated))
		} else {
			err := ctx.Err()
			if err == nil {
				err = ErrActorTerminated
			}
			promise.Complete(fn.Err[R](err))
		}
	}

	return promise.Future()
}
