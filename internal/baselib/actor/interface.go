// Package actor implements the L1 scheduler described in spec §4.1: a
// cooperative, thread-aware message-passing runtime with timers, mailboxes,
// typed handles, and safe shutdown. It is adapted from the teacher's own
// actor package (github.com/roasbeef/subtrate/internal/baselib/actor),
// generalized from a single-process task/review domain to the generic
// request/response/update dispatch every other layer of this module is
// built on.
package actor

import (
	"context"
	"fmt"
	"iter"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrActorTerminated indicates that an operation failed because the target
// actor was terminated or in the process of shutting down.
var ErrActorTerminated = fmt.Errorf("actor terminated")

// ErrServiceKeyTypeMismatch indicates that a registration attempt failed
// because the service key name is already registered with a different
// message or response type.
var ErrServiceKeyTypeMismatch = fmt.Errorf("service key type mismatch")

// ErrRekeyInProgress indicates a concurrent rekey guard rejected a second
// rekey attempt (spec §5, "Rekey serialization").
var ErrRekeyInProgress = fmt.Errorf("rekey already in progress")

// BaseMessage is a helper struct that can be embedded in message types
// defined outside this package to satisfy the Message interface's
// unexported messageMarker method.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// Message is a sealed interface for actor messages (spec's "tagged
// variants" - §9, Dynamic dispatch in message handlers). Only types that
// embed BaseMessage (or are defined in this package) can satisfy it.
type Message interface {
	messageMarker()

	// MessageType returns the type name of the message for
	// routing/filtering/logging.
	MessageType() string
}

// PriorityMessage is an extension of Message for messages that carry a
// priority level, for mailbox strategies that want to reorder delivery.
type PriorityMessage interface {
	Message

	// Priority returns the processing priority of this message (higher =
	// more important).
	Priority() int
}

// Future represents the result of an asynchronous computation.
type Future[T any] interface {
	// Await blocks until the result is available or ctx is cancelled.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply registers a transform on the result, returning a new
	// Future without mutating the original.
	ThenApply(ctx context.Context, f func(T) T) Future[T]

	// OnComplete registers a callback invoked when the result is ready,
	// or with ctx's error if ctx is cancelled first.
	OnComplete(ctx context.Context, f func(fn.Result[T]))
}

// Promise completes an associated Future exactly once (spec §9,
// "Promises are completed at most once").
type Promise[T any] interface {
	Future() Future[T]

	// Complete attempts to set the result. Returns true if this call won
	// the race to complete it.
	Complete(result fn.Result[T]) bool
}

// BaseActorRef is the non-generic base of all actor references, enabling
// heterogeneous storage (e.g. the Receptionist's registration map).
type BaseActorRef interface {
	ID() string
}

// TellOnlyRef is a reference that only supports fire-and-forget sends.
type TellOnlyRef[M Message] interface {
	BaseActorRef

	// Tell sends a message without waiting for a response. If ctx is
	// cancelled before the message reaches the mailbox, it may be
	// dropped (routed to the dead letter office instead, per actor-side
	// failure).
	Tell(ctx context.Context, msg M)
}

// ActorRef is a reference supporting both "tell" and "ask".
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask sends a message and returns a Future for the response.
	Ask(ctx context.Context, msg M) Future[R]
}

// ActorBehavior defines how an actor reacts to messages.
type ActorBehavior[M Message, R any] interface {
	// Receive processes one message and returns a Result. ctx merges the
	// actor's lifecycle context with the caller's request context for
	// Ask operations, or is just the actor's context for Tell.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// Stoppable lets a behavior run cleanup during actor shutdown (spec:
// Actor "tear_down" hook).
type Stoppable interface {
	// OnStop runs after the message loop exits but before the actor's
	// goroutine terminates. ctx carries a cleanup deadline.
	OnStop(ctx context.Context) error
}

// StartupHandler lets a behavior run initialization before the first
// message is processed (spec: Actor "start_up" hook).
type StartupHandler interface {
	OnStart(ctx context.Context) error
}

// TimeoutHandler lets a behavior react to its actor's timer firing (spec:
// Actor "timeout_expired" hook, set via SetTimeoutIn/SetTimeoutAt).
type TimeoutHandler interface {
	OnTimeout(ctx context.Context)
}

// HangupHandler is the shape of a behavior hook for a watched actor's
// termination (spec: Actor "hangup" hook). The actor runtime does not call
// OnHangup; termination is observed through ActorOwn.OnTerminate callbacks.
type HangupHandler interface {
	OnHangup(ctx context.Context, terminatedID string)
}

// SystemContext is the minimal interface for system capabilities needed by
// actors and service keys, enabling DI and unit testing without a full
// Scheduler.
type SystemContext interface {
	Receptionist() *Receptionist
	DeadLetters() ActorRef[Message, any]
}

// Mailbox is an actor's message queue abstraction.
//
// Thread safety: Send/TrySend may be called concurrently from any
// goroutine. Receive must only be called from the actor's own processing
// goroutine. Close is idempotent and may race with Send/TrySend. Drain
// must only be called after Close, from a single goroutine.
type Mailbox[M Message, R any] interface {
	Send(ctx context.Context, env envelope[M, R]) bool
	TrySend(env envelope[M, R]) bool
	Receive(ctx context.Context) iter.Seq[envelope[M, R]]
	Close()
	IsClosed() bool
	Drain() iter.Seq[envelope[M, R]]

	// Chan exposes the raw delivery channel so the actor's own event
	// loop can select over it alongside its timer; the loop always reads
	// through Chan, never through the Receive iterator.
	Chan() <-chan envelope[M, R]
}
