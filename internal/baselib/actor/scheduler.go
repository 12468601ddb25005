// Package actor's Scheduler is the Go-idiomatic rendering of spec §4.1's
// "N+1 scheduler threads": rather than multiplexing actors onto a fixed
// OS-thread pool by hand, each actor already runs its own goroutine (the Go
// runtime's M:N scheduler does the OS-thread multiplexing for us). What the
// spec actually requires of a scheduler thread — a stable affinity id an
// actor is "bound to", used to reason about ordering and migration — is
// preserved as a logical SchedulerID recorded on each actor (set by
// CreateActorOnScheduler; it does not change where the actor's goroutine
// runs). This keeps the FIFO and
// single-actor-never-concurrent-with-itself guarantees the spec actually
// tests (§8.7) while not hand-rolling a thread pool Go already provides.
package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/tdcore/internal/baselib/log"
)

// MainSchedulerID is the logical id of the "main" scheduler thread (spec
// §4.1: "N worker threads plus one main thread").
const MainSchedulerID = 0

// Scheduler owns the set of actors created through it and coordinates
// process-wide shutdown (spec's Scheduler::finish).
type Scheduler struct {
	numWorkers int

	mu     sync.Mutex
	actors map[string]stoppableActor
	nextID atomic.Uint64

	deadLetters  ActorRef[Message, any]
	receptionist *Receptionist

	finishOnce sync.Once
	finished   atomic.Bool
}

type stoppableActor interface {
	Stop()
	Name() string
}

// NewScheduler creates a scheduler with numWorkers worker threads in
// addition to the implicit main thread (scheduler id 0). numWorkers < 0 is
// treated as 0.
func NewScheduler(numWorkers int) *Scheduler {
	if numWorkers < 0 {
		numWorkers = 0
	}

	s := &Scheduler{
		numWorkers:   numWorkers,
		actors:       make(map[string]stoppableActor),
		receptionist: NewReceptionist(),
	}

	dlBehavior := NewFunctionBehavior(func(ctx context.Context, msg Message) fn.Result[any] {
		log.DebugS(ctx, "message routed to dead letters",
			"msg_type", msg.MessageType())
		return fn.Ok[any](nil)
	})
	dl := NewActor[Message, any](ActorConfig[Message, any]{
		Name:        "dead-letters",
		SchedulerID: MainSchedulerID,
		Behavior:    dlBehavior,
		MailboxSize: 256,
	})
	dl.Start()
	s.deadLetters = dl.Ref()
	s.actors[dl.Name()] = dl

	return s
}

// NumSchedulerThreads returns N+1: the configured worker count plus the
// implicit main thread.
func (s *Scheduler) NumSchedulerThreads() int {
	return s.numWorkers + 1
}

// DeadLetters returns the scheduler-wide dead letter actor.
func (s *Scheduler) DeadLetters() ActorRef[Message, any] {
	return s.deadLetters
}

// Receptionist returns the scheduler-wide actor-discovery registry.
func (s *Scheduler) Receptionist() *Receptionist {
	return s.receptionist
}

func (s *Scheduler) uniqueName(name string) string {
	if name == "" {
		name = fmt.Sprintf("actor-%d", s.nextID.Add(1))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actors[name]; !exists {
		return name
	}
	for {
		candidate := fmt.Sprintf("%s-%d", name, s.nextID.Add(1))
		if _, exists := s.actors[candidate]; !exists {
			return candidate
		}
	}
}

// CreateActor creates and starts an actor bound to the main scheduler
// thread (spec: create_actor binds to "the current thread" — in this
// single-process Go runtime that is always the main logical thread unless
// the caller explicitly requests a worker via CreateActorOnScheduler).
func CreateActor[M Message, R any](s *Scheduler, name string,
	behavior ActorBehavior[M, R], mailboxSize int,
) ActorOwn[M, R] {
	return spawn(s, name, MainSchedulerID, behavior, mailboxSize)
}

// CreateActorOnScheduler creates and starts an actor bound to a specific
// scheduler thread id (spec: create_actor_on_scheduler).
func CreateActorOnScheduler[M Message, R any](s *Scheduler, name string,
	schedulerID int, behavior ActorBehavior[M, R], mailboxSize int,
) ActorOwn[M, R] {
	return spawn(s, name, schedulerID, behavior, mailboxSize)
}

func spawn[M Message, R any](s *Scheduler, name string, schedulerID int,
	behavior ActorBehavior[M, R], mailboxSize int,
) ActorOwn[M, R] {
	if s.finished.Load() {
		a := NewActor[M, R](ActorConfig[M, R]{Name: s.uniqueName(name)})
		a.Stop()
		return newActorOwn(a)
	}

	name = s.uniqueName(name)

	a := NewActor[M, R](ActorConfig[M, R]{
		Name:        name,
		SchedulerID: schedulerID,
		Behavior:    behavior,
		DLO:         s.deadLetters,
		MailboxSize: mailboxSize,
	})
	a.Start()

	s.mu.Lock()
	s.actors[name] = a
	s.mu.Unlock()

	return newActorOwn(a)
}

// Finish initiates global shutdown: every actor created through this
// scheduler is stopped (spec: Scheduler::finish).
func (s *Scheduler) Finish() {
	s.finishOnce.Do(func() {
		s.finished.Store(true)

		s.mu.Lock()
		all := make([]stoppableActor, 0, len(s.actors))
		for _, a := range s.actors {
			all = append(all, a)
		}
		s.actors = nil
		s.mu.Unlock()

		for _, a := range all {
			a.Stop()
		}
	})
}

// NewFunctionBehavior adapts a plain function into an ActorBehavior,
// matching the teacher's actor.NewFunctionBehavior convenience constructor.
func NewFunctionBehavior[M Message, R any](
	f func(ctx context.Context, msg M) fn.Result[R],
) ActorBehavior[M, R] {
	return functionBehavior[M, R](f)
}

type functionBehavior[M Message, R any] func(context.Context, M) fn.Result[R]

func (f functionBehavior[M, R]) Receive(ctx context.Context, msg M) fn.Result[R] {
	return f(ctx, msg)
}
