package sqlitestore

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/tdcore/internal/baselib/actor"
)

// defaultAsyncWindow is the batching window used when no AsyncOption
// overrides it. Spec §9 "Open questions" leaves the exact default
// unspecified beyond "small, <=50ms"; 20ms is chosen as comfortably within
// that bound while still coalescing realistic write bursts.
const defaultAsyncWindow = 20 * time.Millisecond

// AsyncOption configures a SqliteKeyValueAsync at construction time.
type AsyncOption func(*SqliteKeyValueAsync)

// WithAsyncWindow overrides the default write-coalescing window.
func WithAsyncWindow(d time.Duration) AsyncOption {
	return func(a *SqliteKeyValueAsync) {
		a.window = d
	}
}

type pendingWrite struct {
	key     string
	value   []byte
	erase   bool
	promise actor.Promise[error]
}

// SqliteKeyValueAsync proxies writes through a dedicated actor that
// coalesces them over a tunable window into one grouped transaction (spec
// §4.4 "Asynchronous KV"). Reads are served synchronously straight from the
// underlying safe wrapper; since writes to the same key are only ever
// flushed in submission order, a read racing an unflushed write may observe
// the pre-write value until the next flush lands, by design.
type SqliteKeyValueAsync struct {
	safe      *SqliteKeyValueSafe
	threadKey string
	window    time.Duration

	own actor.ActorOwn[actor.Closure[any], any]
	ref actor.ActorRef[actor.Closure[any], any]

	// pending and flushScheduled are only ever touched from inside
	// closures run on the writer actor's own goroutine.
	pending        []pendingWrite
	flushScheduled bool
}

// NewSqliteKeyValueAsync creates the writer actor and returns the async
// handle. threadKey identifies the connection this handle's flushes use.
func NewSqliteKeyValueAsync(sched *actor.Scheduler, name string,
	safe *SqliteKeyValueSafe, threadKey string, opts ...AsyncOption,
) *SqliteKeyValueAsync {
	a := &SqliteKeyValueAsync{
		safe:      safe,
		threadKey: threadKey,
		window:    defaultAsyncWindow,
	}
	for _, opt := range opts {
		opt(a)
	}

	own := actor.CreateActor[actor.Closure[any], any](
		sched, name, actor.ClosureBehavior[any]{}, 256,
	)
	a.own = own
	a.ref = own.Ref().Ref()

	return a
}

// Get reads key synchronously through the underlying safe wrapper.
func (a *SqliteKeyValueAsync) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return a.safe.Get(ctx, a.threadKey, key)
}

// Set enqueues an upsert and returns a Future completed when the batch
// containing it commits.
func (a *SqliteKeyValueAsync) Set(ctx context.Context, key, value []byte) actor.Future[error] {
	return a.enqueue(ctx, pendingWrite{key: string(key), value: value})
}

// Erase enqueues a removal and returns a Future completed when the batch
// containing it commits.
func (a *SqliteKeyValueAsync) Erase(ctx context.Context, key []byte) actor.Future[error] {
	return a.enqueue(ctx, pendingWrite{key: string(key), erase: true})
}

func (a *SqliteKeyValueAsync) enqueue(ctx context.Context, w pendingWrite) actor.Future[error] {
	promise := actor.NewPromise[error]()
	w.promise = promise

	actor.SendClosure[any](ctx, a.ref, "enqueue_write",
		func(ctx context.Context) fn.Result[any] {
			a.pending = append(a.pending, w)
			a.scheduleFlush()
			return fn.Ok[any](nil)
		},
	)

	return promise.Future()
}

// scheduleFlush arranges a single flush after the batch window, coalescing
// any writes enqueued before it fires. Must only run on the writer actor's
// own goroutine.
func (a *SqliteKeyValueAsync) scheduleFlush() {
	if a.flushScheduled {
		return
	}
	a.flushScheduled = true

	time.AfterFunc(a.window, func() {
		actor.SendClosure[any](context.Background(), a.ref, "flush",
			func(ctx context.Context) fn.Result[any] {
				a.flush(ctx)
				return fn.Ok[any](nil)
			},
		)
	})
}

// flush runs on the writer actor's own goroutine: it takes ownership of the
// pending batch, applies it as one transaction, and completes every
// constituent promise with the same outcome.
func (a *SqliteKeyValueAsync) flush(ctx context.Context) {
	batch := a.pending
	a.pending = nil
	a.flushScheduled = false

	if len(batch) == 0 {
		return
	}

	// Only the last write to each key matters for the final state.
	sets := make(map[string][]byte)
	erased := make(map[string]bool)
	for _, w := range batch {
		if w.erase {
			erased[w.key] = true
			delete(sets, w.key)
			continue
		}
		sets[w.key] = w.value
		delete(erased, w.key)
	}
	var erases [][]byte
	for k := range erased {
		erases = append(erases, []byte(k))
	}

	err := a.safe.ApplyBatch(ctx, a.threadKey, sets, erases)

	for _, w := range batch {
		w.promise.Complete(fn.Ok(err))
	}
}

// Close flushes any pending batch and stops the writer actor.
func (a *SqliteKeyValueAsync) Close(ctx context.Context) error {
	res, err := a.ask(ctx, func(ctx context.Context) fn.Result[any] {
		a.flush(ctx)
		return fn.Ok[any](nil)
	})
	a.own.Reset()

	if err != nil {
		return err
	}
	_ = res
	return nil
}

func (a *SqliteKeyValueAsync) ask(ctx context.Context,
	f func(ctx context.Context) fn.Result[any],
) (any, error) {
	future := actor.AskClosure[any](ctx, a.ref, "close_flush", f)
	res := future.Await(ctx)
	return res.Unpack()
}
