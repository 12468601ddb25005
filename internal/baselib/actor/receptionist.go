package actor

import "sync"

// Receptionist is a minimal service-discovery registry: actors register
// themselves under a string key (e.g. a ClientId-derived name, spec §4.2)
// and other code looks them up without holding the handle itself. Adapted
// from the teacher's Receptionist, trimmed to what this module's
// client-manager/actor-tree wiring actually needs (no typed ServiceKey
// generics, since every lookup here is by a single well-known key type:
// the root actor of a client instance).
type Receptionist struct {
	mu  sync.RWMutex
	reg map[string]BaseActorRef
}

// NewReceptionist creates an empty receptionist.
func NewReceptionist() *Receptionist {
	return &Receptionist{reg: make(map[string]BaseActorRef)}
}

// Register associates name with ref, replacing any prior registration.
func (r *Receptionist) Register(name string, ref BaseActorRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg[name] = ref
}

// Unregister removes name's registration, if any.
func (r *Receptionist) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reg, name)
}

// Lookup returns the ref registered under name, if any.
func (r *Receptionist) Lookup(name string) (BaseActorRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.reg[name]
	return ref, ok
}
