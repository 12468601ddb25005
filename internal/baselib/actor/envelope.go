package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// envelope is the unit of mailbox delivery: a message plus an optional
// promise to complete with the handler's result (nil for Tell sends).
type envelope[M Message, R any] struct {
	ctx     context.Context
	msg     M
	promise *promiseImpl[R]
}

// promiseImpl is the concrete Promise/Future pair backing Ask. It completes
// at most once; Await/OnComplete/ThenApply all observe the same completion.
type promiseImpl[T any] struct {
	done chan struct{}
	res  fn.Result[T]
}

func newPromise[T any]() *promiseImpl[T] {
	return &promiseImpl[T]{done: make(chan struct{})}
}

// NewPromise creates a standalone Promise, for callers that need to hand
// out a Future ahead of the work that will complete it instead of going
// through Ask (spec §9: "Promises are completed at most once").
func NewPromise[T any]() Promise[T] {
	return newPromise[T]()
}

func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	p.res = result
	close(p.done)
	return true
}

func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.res
	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

func (p *promiseImpl[T]) ThenApply(ctx context.Context, f func(T) T) Future[T] {
	out := newPromise[T]()

	go func() {
		res := p.Await(ctx)
		if res.IsOk() {
			v, _ := res.Unpack()
			out.Complete(fn.Ok(f(v)))
			return
		}
		out.Complete(res)
	}()

	return out
}

func (p *promiseImpl[T]) OnComplete(ctx context.Context, f func(fn.Result[T])) {
	go func() {
		f(p.Await(ctx))
	}()
}
