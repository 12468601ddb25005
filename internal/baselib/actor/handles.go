package actor

import "sync/atomic"

// ActorId is a weak, non-owning reference to an actor (spec §3, "typed
// handles to actors"). It never keeps the actor alive or stops it; after
// the actor has stopped, every Ask through it completes with
// ErrActorTerminated and every Tell is not delivered to the actor.
type ActorId[M Message, R any] struct {
	ref ActorRef[M, R]
}

// NewActorId wraps an ActorRef as a weak handle.
func NewActorId[M Message, R any](ref ActorRef[M, R]) ActorId[M, R] {
	return ActorId[M, R]{ref: ref}
}

// Ref returns the underlying ActorRef.
func (id ActorId[M, R]) Ref() ActorRef[M, R] {
	return id.ref
}

// IsEmpty reports whether this handle was never bound to an actor.
func (id ActorId[M, R]) IsEmpty() bool {
	return id.ref == nil
}

// ActorOwn is a uniquely-owning handle: the actor is stopped when the
// handle is released (spec §3, "an actor is destroyed after tear_down runs
// and all owning handles are released"). ActorOwn is not safe for
// concurrent Release/Reset from multiple goroutines; ownership should be
// transferred, not shared (use ActorShared for fan-in teardown).
type ActorOwn[M Message, R any] struct {
	actor *Actor[M, R]
}

// newActorOwn wraps a freshly created actor as its unique owner.
func newActorOwn[M Message, R any](a *Actor[M, R]) ActorOwn[M, R] {
	return ActorOwn[M, R]{actor: a}
}

// Ref returns a weak ActorId to this actor, usable to hand out references
// without transferring ownership.
func (o ActorOwn[M, R]) Ref() ActorId[M, R] {
	if o.actor == nil {
		return ActorId[M, R]{}
	}
	return NewActorId[M, R](o.actor.Ref())
}

// TellRef returns a tell-only reference to this actor.
func (o ActorOwn[M, R]) TellRef() TellOnlyRef[M] {
	if o.actor == nil {
		return nil
	}
	return o.actor.TellRef()
}

// Reset stops the owned actor and releases this handle's ownership. It is
// idempotent; calling it on an already-empty handle is a no-op.
func (o *ActorOwn[M, R]) Reset() {
	if o.actor == nil {
		return
	}
	o.actor.Stop()
	o.actor = nil
}

// IsEmpty reports whether this handle currently owns a live actor.
func (o ActorOwn[M, R]) IsEmpty() bool {
	return o.actor == nil
}

// OnTerminate registers notify to run once, after this actor's tear_down
// completes, with the actor's name (spec §3 Actor "hangup" hook's
// counterpart: letting another actor observe this one's termination).
func (o ActorOwn[M, R]) OnTerminate(watcherID string, notify func(terminatedID string)) {
	if o.actor == nil {
		return
	}
	o.actor.watchHangup(watcherID, notify)
}

// ActorShared is a reference-counted handle used for graceful teardown
// fan-in (spec §9, "a shared counted handle that completes only when all
// holders drop"): the wrapped actor is stopped only once the last clone of
// the handle is released.
type ActorShared[M Message, R any] struct {
	actor *Actor[M, R]
	count *atomic.Int64
}

// NewActorShared creates the first reference-counted handle (count 1) over
// an owning handle, consuming it.
func NewActorShared[M Message, R any](owned ActorOwn[M, R]) ActorShared[M, R] {
	count := &atomic.Int64{}
	count.Store(1)
	return ActorShared[M, R]{actor: owned.actor, count: count}
}

// Clone increments the reference count and returns a new handle sharing
// ownership of the same actor.
func (s ActorShared[M, R]) Clone() ActorShared[M, R] {
	if s.actor == nil {
		return s
	}
	s.count.Add(1)
	return ActorShared[M, R]{actor: s.actor, count: s.count}
}

// Ref returns a weak handle to the shared actor.
func (s ActorShared[M, R]) Ref() ActorId[M, R] {
	if s.actor == nil {
		return ActorId[M, R]{}
	}
	return NewActorId[M, R](s.actor.Ref())
}

// Release decrements the reference count and stops the actor once the last
// holder has released its handle. Returns true if this call caused the
// actor to stop.
func (s *ActorShared[M, R]) Release() bool {
	if s.actor == nil {
		return false
	}

	remaining := s.count.Add(-1)
	a := s.actor
	s.actor = nil

	if remaining <= 0 {
		a.Stop()
		return true
	}
	return false
}
