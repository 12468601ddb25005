package client

import (
	"context"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/tdcore/internal/baselib/actor"
	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

// instanceState enumerates the minimal authorization lifecycle this core
// tracks. Feature handlers (out of scope per spec §1) own the transition
// into an authenticated "ready" state via setTdlibParameters and friends;
// without them an instance has no legitimate way to leave waitParameters
// except by closing, which this core models directly.
type instanceState int32

const (
	stateWaitParameters instanceState = iota
	stateClosed
)

// alwaysAllowed names requests processed regardless of instanceState:
// testSquareInt touches no instance state (and doubles as a synchronous
// subset member, spec §4.2), and close must remain reachable on an
// unstarted instance so it can still be torn down (spec §8 S4).
var alwaysAllowed = map[string]bool{
	"testSquareInt": true,
	"close":         true,
}

// Client is the per-ClientId actor-tree root (spec §3: "Client instances ...
// activated on first request"). Every request is handled as a closure on
// its own actor, giving each instance the same single-threaded,
// never-concurrent-with-itself guarantee as every other actor-backed type
// in this module.
type Client struct {
	id  ClientId
	mgr *Manager

	own actor.ActorOwn[actor.Closure[any], any]
	ref actor.ActorRef[actor.Closure[any], any]

	// state is only ever mutated from inside closures running on this
	// instance's own actor goroutine.
	state atomic.Int32
}

func newClient(mgr *Manager, id ClientId) *Client {
	c := &Client{id: id, mgr: mgr}
	c.state.Store(int32(stateWaitParameters))

	own := actor.CreateActor[actor.Closure[any], any](
		mgr.sched, "client", actor.ClosureBehavior[any]{}, 64,
	)
	c.own = own
	c.ref = own.Ref().Ref()

	return c
}

// dispatch posts reqID's handling onto this instance's own actor,
// preserving per-client submission order (spec §5: "Requests from a single
// thread to a single client_id are processed in submission order"). It uses
// AskClosure rather than a fire-and-forget SendClosure so that a request
// racing with (or arriving after) this instance's teardown is observable:
// if the actor is already stopped the closure is dropped as a dead letter
// and the returned future completes with an error instead of running, and
// dispatch synthesizes the terminal error response itself rather than
// letting the request vanish silently (spec §4.2 "Matching policy": a
// closed instance must still produce exactly one response per request).
func (c *Client) dispatch(ctx context.Context, reqID RequestId, req tlobject.Function) {
	future := actor.AskClosure[any](ctx, c.ref, req.TypeName(),
		func(ctx context.Context) fn.Result[any] {
			c.handle(reqID, req)
			return fn.Ok[any](nil)
		},
	)

	future.OnComplete(ctx, func(res fn.Result[any]) {
		if _, err := res.Unpack(); err != nil {
			c.respondError(reqID, tderr.ClientClosed())
		}
	})
}

func (c *Client) handle(reqID RequestId, req tlobject.Function) {
	if instanceState(c.state.Load()) == stateClosed {
		c.respondError(reqID, tderr.ClientClosed())
		return
	}

	name := req.TypeName()
	if !alwaysAllowed[name] && instanceState(c.state.Load()) == stateWaitParameters {
		c.respondError(reqID, tderr.BadRequest(
			"client instance has not been started"))
		return
	}

	switch r := req.(type) {
	case *tlobject.Close:
		c.handleClose(reqID)

	case *tlobject.TestSquareInt:
		c.respond(reqID, &tlobject.TestInt{Value: r.Value * r.Value})

	default:
		c.respondError(reqID, tderr.BadRequest("unhandled request %q", name))
	}
}

// handleClose responds to the close request itself, transitions the
// instance to closed, then emits the terminal updateAuthorizationState
// (spec §8 S4), and finally stops this instance's actor.
func (c *Client) handleClose(reqID RequestId) {
	c.respond(reqID, &tlobject.Ok{})

	c.state.Store(int32(stateClosed))

	c.respond(0, &tlobject.UpdateAuthorizationState{
		AuthorizationState: &tlobject.AuthorizationStateClosed{},
	})

	c.own.Reset()
}

func (c *Client) respond(reqID RequestId, obj tlobject.Object) {
	c.mgr.push(Response{ClientID: c.id, RequestID: reqID, Object: obj})
}

func (c *Client) respondError(reqID RequestId, status *tderr.Status) {
	c.respond(reqID, tlobject.NewError(int32(status.Code), "%s", status.Message))
}
