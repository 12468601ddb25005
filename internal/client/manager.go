package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roasbeef/tdcore/internal/baselib/actor"
	"github.com/roasbeef/tdcore/internal/baselib/log"
	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

// outboxCapacity bounds the shared response queue. Spec §4.2 does not pin a
// limit; this is generous enough that a well-behaved single-threaded
// Receive loop never sees it fill under normal load, while still bounding
// memory if the caller stops draining entirely.
const outboxCapacity = 4096

// Manager is the L2 façade's ClientManager (spec §4.2): it allocates
// ClientIds, lazily constructs and routes to each instance's own actor, and
// fans every response and update into one shared outbox that Receive drains
// in per-client FIFO order (spec §5).
type Manager struct {
	sched    *actor.Scheduler
	ownSched bool

	mu      sync.Mutex
	nextID  atomic.Int32
	clients map[ClientId]*Client

	outbox chan Response
}

// NewManager creates a Manager with its own private scheduler, matching the
// process-wide "Client manager singleton" of spec §6.
func NewManager() *Manager {
	return NewManagerOnScheduler(actor.NewScheduler(4), true)
}

// NewManagerOnScheduler creates a Manager driven by an externally owned
// scheduler. ownSched controls whether Finish also calls sched.Finish().
func NewManagerOnScheduler(sched *actor.Scheduler, ownSched bool) *Manager {
	return &Manager{
		sched:    sched,
		ownSched: ownSched,
		clients:  make(map[ClientId]*Client),
		outbox:   make(chan Response, outboxCapacity),
	}
}

// CreateClientId allocates a previously unused positive id (spec §4.2,
// §8 "Client id allocation"); the instance itself is lazily constructed on
// the first Send.
func (m *Manager) CreateClientId() ClientId {
	id := ClientId(m.nextID.Add(1))

	m.mu.Lock()
	m.clients[id] = nil
	m.mu.Unlock()

	return id
}

// Send enqueues req under reqID to clientID's instance (spec §4.2). It
// fails synchronously with a 400 Status if clientID is not a live id or
// reqID is zero; any other failure (instance closed, request not
// recognized) surfaces asynchronously as an error Response via Receive,
// per spec's matching policy.
func (m *Manager) Send(ctx context.Context, clientID ClientId, reqID RequestId, req tlobject.Function) error {
	if clientID <= 0 {
		return tderr.InvalidClientID()
	}
	if reqID == 0 {
		return tderr.ZeroRequestID()
	}

	cl, err := m.instanceFor(clientID)
	if err != nil {
		return err
	}

	cl.dispatch(ctx, reqID, req)
	return nil
}

func (m *Manager) instanceFor(id ClientId) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl, reserved := m.clients[id]
	if !reserved {
		return nil, tderr.InvalidClientID()
	}
	if cl == nil {
		cl = newClient(m, id)
		m.clients[id] = cl
	}
	return cl, nil
}

// Receive returns the next pending response or update across every live
// client, or (nil, false) if timeout elapses first (spec §4.2, §8.9
// "receive liveness"). Must never be called from two goroutines
// concurrently.
func (m *Manager) Receive(timeout time.Duration) (*Response, bool) {
	select {
	case resp := <-m.outbox:
		return &resp, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Execute runs a synchronous-subset request without touching any instance
// state (spec §4.2).
func (m *Manager) Execute(req tlobject.Function) (tlobject.Object, error) {
	return Execute(req)
}

// SetLogMessageCallback installs the process-wide log sink (spec §4.2).
func (m *Manager) SetLogMessageCallback(maxLevel log.Level, cb log.Callback) {
	log.SetMessageCallback(maxLevel, cb)
}

func (m *Manager) push(resp Response) {
	select {
	case m.outbox <- resp:
	default:
		log.WarnS(context.Background(), "manager outbox full, dropping response",
			tderr.Internal("outbox at capacity"), "client_id", resp.ClientID,
			"request_id", resp.RequestID)
	}
}

// Finish stops every live client instance and, if this Manager owns its
// scheduler, the scheduler itself (spec §6: "Client manager singleton ...
// it must close all live instances during teardown").
func (m *Manager) Finish() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		if c != nil {
			clients = append(clients, c)
		}
	}
	m.clients = make(map[ClientId]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.own.Reset()
	}

	if m.ownSched {
		m.sched.Finish()
	}
}
