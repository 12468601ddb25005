package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingMessage lets a test tag every closure result with the integer
// it was posted with, for FIFO-order assertions.
type recordingMessage struct {
	BaseMessage
	n int
}

func (recordingMessage) MessageType() string { return "recording" }

func newRecordingActor(sched *Scheduler, out *[]int, mu *sync.Mutex) ActorOwn[recordingMessage, struct{}] {
	behavior := NewFunctionBehavior(func(_ context.Context, msg recordingMessage) fn.Result[struct{}] {
		mu.Lock()
		*out = append(*out, msg.n)
		mu.Unlock()
		return fn.Ok(struct{}{})
	})
	return CreateActor[recordingMessage, struct{}](sched, "", behavior, 64)
}

// TestSchedulerPreservesPerSenderFIFO exercises spec §8.7: messages sent by
// a single sender to a single target arrive and are processed in send
// order, regardless of scheduler thread count.
func TestSchedulerPreservesPerSenderFIFO(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(rt, "n")
		workers := rapid.IntRange(0, 4).Draw(rt, "workers")

		sched := NewScheduler(workers)
		defer sched.Finish()

		var (
			mu  sync.Mutex
			got []int
		)
		own := newRecordingActor(sched, &got, &mu)
		defer own.Reset()

		ref := own.Ref().Ref()
		ctx := context.Background()
		for i := 0; i < n; i++ {
			ref.Tell(ctx, recordingMessage{n: i})
		}

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == n
		}, 2*time.Second, time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		require.Equal(t, want, got)
	})
}

func TestActorTimeoutFires(t *testing.T) {
	sched := NewScheduler(1)
	defer sched.Finish()

	fired := make(chan struct{}, 1)
	behavior := &timeoutBehavior{fired: fired}

	own := CreateActor[Closure[struct{}], struct{}](sched, "timeout-actor", behavior, 4)
	defer own.Reset()
	behavior.actor = own.actor

	ref := own.Ref().Ref()
	AskClosure(context.Background(), ref, "arm", func(ctx context.Context) fn.Result[struct{}] {
		return fn.Ok(struct{}{})
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout handler never fired")
	}
}

// timeoutBehavior arms a short timer on its first message and signals
// fired when OnTimeout runs, exercising SetTimeoutIn/TimeoutHandler.
type timeoutBehavior struct {
	ClosureBehavior[struct{}]
	actor *Actor[Closure[struct{}], struct{}]
	once  sync.Once
	fired chan struct{}
}

func (b *timeoutBehavior) Receive(ctx context.Context, msg Closure[struct{}]) fn.Result[struct{}] {
	result := b.ClosureBehavior.Receive(ctx, msg)
	b.once.Do(func() {
		if b.actor != nil {
			b.actor.SetTimeoutIn(10 * time.Millisecond)
		}
	})
	return result
}

func (b *timeoutBehavior) OnTimeout(ctx context.Context) {
	select {
	case b.fired <- struct{}{}:
	default:
	}
}

// TestActorTeardownDrainsMailboxToDeadLetters exercises spec §3's tear_down
// contract: messages still queued when Stop is called are routed to the
// scheduler's dead letter actor instead of being silently dropped, and any
// pending Ask is completed with ErrActorTerminated rather than left
// hanging.
func TestActorTeardownDrainsMailboxToDeadLetters(t *testing.T) {
	sched := NewScheduler(0)
	defer sched.Finish()

	block := make(chan struct{})
	behavior := NewFunctionBehavior(func(_ context.Context, _ Closure[struct{}]) fn.Result[struct{}] {
		<-block
		return fn.Ok(struct{}{})
	})

	own := CreateActorOnScheduler[Closure[struct{}], struct{}](
		sched, "blocking-actor", MainSchedulerID, behavior, 4,
	)
	ref := own.Ref().Ref()

	// The behavior itself blocks on every message until block is closed,
	// so this first Tell occupies the actor's single processing
	// goroutine while the second queues in the mailbox.
	ref.Tell(context.Background(), NewClosure[struct{}]("occupy", nil))
	pending := ref.Ask(context.Background(), NewClosure[struct{}]("queued", nil))

	own.Reset()
	close(block)

	result := pending.Await(context.Background())
	_, err := result.Unpack()
	require.ErrorIs(t, err, ErrActorTerminated)
}

// TestActorOnTerminateNotifiesWatchers exercises the hangup hook (spec §3:
// another actor observing this one's termination).
func TestActorOnTerminateNotifiesWatchers(t *testing.T) {
	sched := NewScheduler(0)
	defer sched.Finish()

	own := CreateActor[Closure[struct{}], struct{}](sched, "watched", ClosureBehavior[struct{}]{}, 4)

	notified := make(chan string, 1)
	own.OnTerminate("watcher-1", func(terminatedID string) {
		notified <- terminatedID
	})

	own.Reset()

	select {
	case name := <-notified:
		require.Equal(t, "watched", name)
	case <-time.After(2 * time.Second):
		t.Fatal("hangup watcher never notified")
	}
}
