// Command tdcore_c is the cgo-exported C ABI of spec §6: the single
// supported binding surface for every non-native-Go language. It is
// grounded on td_json_client.cpp's dual API (see SPEC_FULL.md §4
// SUPPLEMENTED FEATURES): five free functions (td_create_client_id,
// td_send, td_receive, td_execute, td_set_log_message_callback) plus the
// five legacy opaque-pointer functions (td_json_client_create/destroy/send/
// receive/execute), both backed by the same internal/client.Manager and
// internal/jsonbridge.Bridge this module's pure-Go callers use directly.
//
// Simplification from the original ABI: each exported receive/execute call
// allocates a fresh C string and frees the previous one returned on the
// same handle (or, for the free-function surface, the previous call to
// td_receive; td_execute and td_json_client_execute share one buffer and
// free the string returned by the previous execute call); unlike the original's same-thread buffer reuse discipline,
// cross-thread callers must not hold a returned pointer past their own
// next call into this library.
package main

/*
#include <stdlib.h>

typedef void (*td_log_callback)(int level, const char *message);

static inline void td_invoke_log_callback(td_log_callback cb, int level, const char *message) {
	cb(level, message);
}
*/
import "C"

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/roasbeef/tdcore/internal/baselib/log"
	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/client"
	"github.com/roasbeef/tdcore/internal/jsonbridge"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

var (
	initOnce sync.Once
	mgr      *client.Manager
	bridge   *jsonbridge.Bridge
)

// theManager lazily initializes the process-wide Manager singleton (spec
// §6: "Client manager singleton ... initialized on first call to any JSON
// function").
func theManager() *client.Manager {
	initOnce.Do(func() {
		mgr = client.NewManager()
		bridge = jsonbridge.NewBridge(mgr)
	})
	return mgr
}

func durationFromSeconds(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

var (
	execBufMu sync.Mutex
	execBuf   unsafe.Pointer
)

func executeJSON(request string) (out *C.char) {
	theManager()

	defer func() {
		execBufMu.Lock()
		defer execBufMu.Unlock()
		if execBuf != nil {
			C.free(execBuf)
		}
		execBuf = unsafe.Pointer(out)
	}()

	fnObj, _, err := tlobject.DecodeFunction(tlobject.Default, []byte(request))
	if err != nil {
		return encodeErrorCString(400, err.Error())
	}

	obj, err := client.Execute(fnObj)
	if err != nil {
		obj = tlobject.NewError(int32(tderr.Code(err)), "%v", err)
	}

	data, err := tlobject.EncodeResponse(obj, nil, 0)
	if err != nil {
		return encodeErrorCString(500, err.Error())
	}
	return C.CString(string(data))
}

func encodeErrorCString(code int32, message string) *C.char {
	data, _ := tlobject.EncodeResponse(tlobject.NewError(code, "%s", message), nil, 0)
	return C.CString(string(data))
}

//export td_create_client_id
func td_create_client_id() C.int32_t {
	return C.int32_t(theManager().CreateClientId())
}

//export td_send
func td_send(clientID C.int32_t, request *C.char) {
	theManager()
	bridge.Send(client.ClientId(clientID), []byte(C.GoString(request)))
}

var (
	mainBufMu sync.Mutex
	mainBuf   unsafe.Pointer
)

//export td_receive
func td_receive(timeoutSeconds C.double) *C.char {
	theManager()
	data := bridge.Receive(durationFromSeconds(float64(timeoutSeconds)))

	mainBufMu.Lock()
	defer mainBufMu.Unlock()

	if mainBuf != nil {
		C.free(mainBuf)
		mainBuf = nil
	}
	if data == nil {
		return nil
	}

	mainBuf = unsafe.Pointer(C.CString(string(data)))
	return (*C.char)(mainBuf)
}

//export td_execute
func td_execute(request *C.char) *C.char {
	return executeJSON(C.GoString(request))
}

//export td_set_log_message_callback
func td_set_log_message_callback(maxLevel C.int, callback C.td_log_callback) {
	if callback == nil {
		log.SetMessageCallback(log.LevelFatal, nil)
		return
	}

	log.SetMessageCallback(log.Level(maxLevel), func(level log.Level, message string) {
		cMsg := C.CString(message)
		defer C.free(unsafe.Pointer(cMsg))
		C.td_invoke_log_callback(callback, C.int(level), cMsg)
	})
}

// legacyClient is the state behind one opaque td_json_client_create handle
// (spec §6's "legacy per-instance ABI"): a single ClientId plus the last
// buffer handed back by td_json_client_receive on this handle.
type legacyClient struct {
	id      client.ClientId
	mu      sync.Mutex
	lastBuf unsafe.Pointer
}

var (
	legacyMu      sync.Mutex
	legacyClients = make(map[unsafe.Pointer]*legacyClient)
)

func lookupLegacy(handle unsafe.Pointer) *legacyClient {
	legacyMu.Lock()
	defer legacyMu.Unlock()
	return legacyClients[handle]
}

//export td_json_client_create
func td_json_client_create() unsafe.Pointer {
	id := theManager().CreateClientId()

	handle := C.malloc(1)
	legacyMu.Lock()
	legacyClients[handle] = &legacyClient{id: id}
	legacyMu.Unlock()

	return handle
}

//export td_json_client_destroy
func td_json_client_destroy(handle unsafe.Pointer) {
	legacyMu.Lock()
	lc, ok := legacyClients[handle]
	delete(legacyClients, handle)
	legacyMu.Unlock()

	if !ok {
		return
	}

	if err := theManager().Send(context.Background(), lc.id, client.RequestId(1), &tlobject.Close{}); err != nil {
		log.WarnS(context.Background(), "legacy client destroy: close failed", err)
	}

	if lc.lastBuf != nil {
		C.free(lc.lastBuf)
	}
	C.free(handle)
}

//export td_json_client_send
func td_json_client_send(handle unsafe.Pointer, request *C.char) {
	lc := lookupLegacy(handle)
	if lc == nil {
		return
	}
	theManager()
	bridge.Send(lc.id, []byte(C.GoString(request)))
}

//export td_json_client_receive
func td_json_client_receive(handle unsafe.Pointer, timeoutSeconds C.double) *C.char {
	lc := lookupLegacy(handle)
	if lc == nil {
		return nil
	}
	theManager()

	data := bridge.Receive(durationFromSeconds(float64(timeoutSeconds)))

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.lastBuf != nil {
		C.free(lc.lastBuf)
		lc.lastBuf = nil
	}
	if data == nil {
		return nil
	}

	lc.lastBuf = unsafe.Pointer(C.CString(string(data)))
	return (*C.char)(lc.lastBuf)
}

//export td_json_client_execute
func td_json_client_execute(handle unsafe.Pointer, request *C.char) *C.char {
	_ = handle
	return executeJSON(C.GoString(request))
}

func main() {}
