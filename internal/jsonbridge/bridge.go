// Package jsonbridge implements the pure-JSON ABI glue of spec §4.2 and §6:
// requests and responses cross the boundary as UTF-8 JSON carrying "@type",
// optional "@extra", and (on responses) "@client_id". It is grounded on
// td/td/telegram/ClientJson.cpp's json_send/json_receive (see SPEC_FULL.md
// §4 SUPPLEMENTED FEATURES): unlike the typed internal/client.Manager API,
// which takes an explicit caller-chosen RequestId, this bridge manufactures
// its own monotonically increasing internal id purely to correlate a
// request's "@extra" with its eventual response — that id is never exposed
// to the JSON caller, exactly like tdlib's json_send.
package jsonbridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/client"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

// parseFailureCode is the fallback status code for a locally synthesized
// parse/validation error, matching ClientJson.cpp's use of 400 for this
// case (spec §7, request parsing failures are caller errors).
const parseFailureCode = 400

// pendingError is a response Bridge.Receive must surface before consulting
// the Manager's own outbox: a request that never reached Manager.Send
// (decode failure, or Manager.Send's own synchronous validation failure)
// still owes the caller exactly one response (spec §4.2 matching policy).
type pendingError struct {
	clientID client.ClientId
	extra    json.RawMessage
	obj      *tlobject.Error
}

// Bridge adapts a client.Manager to the JSON ABI's send(client_id, json) /
// receive(timeout) -> json shape (spec §6).
type Bridge struct {
	mgr    *client.Manager
	nextID atomic.Uint64

	mu    sync.Mutex
	extra map[client.RequestId]json.RawMessage

	pending chan pendingError
}

// NewBridge wraps mgr.
func NewBridge(mgr *client.Manager) *Bridge {
	return &Bridge{
		mgr:     mgr,
		extra:   make(map[client.RequestId]json.RawMessage),
		pending: make(chan pendingError, 4096),
	}
}

// Send parses requestJSON and enqueues it to clientID, echoing any "@extra"
// back verbatim on the eventual response (spec §4.2 JSON bridge, §8 S6).
// The pure JSON ABI has no return value (spec §6): any failure — parse
// error, invalid client id — is itself delivered as a future Receive
// result, not returned here.
func (b *Bridge) Send(clientID client.ClientId, requestJSON []byte) {
	fnObj, extra, err := tlobject.DecodeFunction(tlobject.Default, requestJSON)
	if err != nil {
		b.failNow(clientID, extra, tderr.BadRequest("%v", err))
		return
	}

	reqID := client.RequestId(b.nextID.Add(1))
	if len(extra) > 0 {
		b.mu.Lock()
		b.extra[reqID] = extra
		b.mu.Unlock()
	}

	if err := b.mgr.Send(context.Background(), clientID, reqID, fnObj); err != nil {
		b.mu.Lock()
		delete(b.extra, reqID)
		b.mu.Unlock()

		status := tderr.BadRequest("%v", err)
		if s, ok := err.(*tderr.Status); ok {
			status = s
		}
		b.failNow(clientID, extra, status)
	}
}

func (b *Bridge) failNow(clientID client.ClientId, extra json.RawMessage, status *tderr.Status) {
	code := status.Code
	if code == 0 {
		code = parseFailureCode
	}

	select {
	case b.pending <- pendingError{
		clientID: clientID,
		extra:    extra,
		obj:      tlobject.NewError(int32(code), "%s", status.Message),
	}:
	default:
	}
}

// Receive returns the next response/update as UTF-8 JSON, or nil if timeout
// elapses first (spec §6).
func (b *Bridge) Receive(timeout time.Duration) []byte {
	select {
	case pe := <-b.pending:
		return mustEncode(pe.obj, pe.extra, pe.clientID)
	default:
	}

	resp, ok := b.mgr.Receive(timeout)
	if !ok {
		return nil
	}

	var extra json.RawMessage
	if resp.RequestID != 0 {
		b.mu.Lock()
		extra = b.extra[resp.RequestID]
		delete(b.extra, resp.RequestID)
		b.mu.Unlock()
	}

	return mustEncode(resp.Object, extra, resp.ClientID)
}

func mustEncode(obj tlobject.Object, extra json.RawMessage, clientID client.ClientId) []byte {
	data, err := tlobject.EncodeResponse(obj, extra, int32(clientID))
	if err != nil {
		data, _ = tlobject.EncodeResponse(
			tlobject.NewError(500, "encode failure: %v", err), nil, int32(clientID),
		)
	}
	return data
}
