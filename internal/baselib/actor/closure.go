package actor

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Closure is a unit of dynamic dispatch against an actor's captured state
// (spec §9, "Dynamic dispatch in message handlers ... model as tagged
// variants plus a dispatch table"; §4.1 send_closure/send_closure_later).
// A Closure is itself the Message: ClosureBehavior's Receive simply invokes
// it on the actor's own goroutine, which is exactly the thread-affinity
// guarantee send_closure promises ("safe from any thread; FIFO preserved
// per sender/target pair").
type Closure[R any] struct {
	BaseMessage
	name string
	fn   func(ctx context.Context) fn.Result[R]
}

// NewClosure wraps an arbitrary method call (bound to its receiver and
// arguments by the caller, as a Go closure) for posting to an actor.
func NewClosure[R any](name string, f func(ctx context.Context) fn.Result[R]) Closure[R] {
	return Closure[R]{name: name, fn: f}
}

// MessageType satisfies Message; it returns the closure's debug name
// (e.g. the method being invoked) rather than a type name, since every
// Closure[R] is the same Go type.
func (c Closure[R]) MessageType() string {
	if c.name == "" {
		return "closure"
	}
	return c.name
}

// ClosureBehavior is an ActorBehavior that just runs whatever Closure it is
// handed. Actors whose entire API is "call methods on my captured state
// from my own thread" use this as their behavior, giving them
// SendClosure/SendClosureLater for free.
type ClosureBehavior[R any] struct{}

func (ClosureBehavior[R]) Receive(ctx context.Context, msg Closure[R]) fn.Result[R] {
	return msg.fn(ctx)
}

// SendClosure enqueues a closure for execution on the target actor's
// thread, fire-and-forget. FIFO is preserved per (sender, target) pair by
// the underlying mailbox's channel ordering.
func SendClosure[R any](ctx context.Context, ref TellOnlyRef[Closure[R]],
	name string, f func(ctx context.Context) fn.Result[R],
) {
	ref.Tell(ctx, NewClosure(name, f))
}

// AskClosure enqueues a closure and returns a Future for its result.
func AskClosure[R any](ctx context.Context, ref ActorRef[Closure[R], R],
	name string, f func(ctx context.Context) fn.Result[R],
) Future[R] {
	return ref.Ask(ctx, NewClosure(name, f))
}

// SendClosureLater is like SendClosure but guarantees at least one loop
// iteration elapses before delivery (spec §4.1: "yields at least one loop
// iteration first"). It is still ordered after any earlier SendClosure
// from the same caller to the same actor, never before.
func SendClosureLater[R any](ctx context.Context, ref TellOnlyRef[Closure[R]],
	name string, f func(ctx context.Context) fn.Result[R],
) {
	go func() {
		// A zero-duration timer still forces a scheduling round
		// trip, which is sufficient to guarantee this closure cannot
		// be observed before the current processing pass completes,
		// while adding negligible latency.
		t := time.NewTimer(0)
		<-t.C
		ref.Tell(ctx, NewClosure(name, f))
	}()
}
