// Package client implements the L2 client façade of spec §4.2: opaque
// ClientId/RequestId allocation, a Manager multiplexing many logical
// instances behind one process, and the synchronous-executable request
// subset. It is grounded on td/td/telegram/Client.h and td_json_client.cpp
// (see SPEC_FULL.md §4 SUPPLEMENTED FEATURES): ClientManager owns instance
// identity and the shared response queue, while each Client instance is its
// own single-threaded actor, reusing this module's internal/baselib/actor
// the same way internal/binlog.ConcurrentBinlog and
// internal/sqlitestore.SqliteKeyValueAsync use it for their own writer
// actors.
package client

import "github.com/roasbeef/tdcore/internal/tlobject"

// ClientId is an opaque handle naming an independent logical instance (spec
// §3). Positive values name live or once-live instances; values <= 0 are
// always invalid.
type ClientId int32

// RequestId is the caller-chosen correlation id for one request (spec §3).
// 0 is reserved for unsolicited updates and is never a valid request id.
type RequestId uint64

// Response is one item delivered by Manager.Receive: either a response to a
// prior request (RequestID matching the one passed to Send) or an
// unsolicited update (RequestID == 0), per spec §4.2.
type Response struct {
	ClientID  ClientId
	RequestID RequestId
	Object    tlobject.Object
}
