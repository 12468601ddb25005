// Package log provides the process-wide structured logging surface used by
// every other package in this module. It wraps btclog/v2 the same way the
// teacher actor package expects (DebugS/TraceS/InfoS/WarnS/ErrorS,
// context-aware, key/value pairs) and layers the façade's
// set_log_message_callback contract (spec §4.2, §7) on top of it.
package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btclog/v2"
)

// Level mirrors the verbosity scale used by the façade's log callback: 0 is
// fatal (the process aborts immediately after the callback returns), and
// increasing values are progressively less severe, matching tdlib's
// int verbosity_level convention (-1..1024, collapsed here to a small enum).
type Level int

const (
	LevelFatal Level = 0
	LevelError Level = 1
	LevelWarn  Level = 2
	LevelInfo  Level = 3
	LevelDebug Level = 4
	LevelTrace Level = 5
)

// Callback is the process-wide log message sink installed via
// SetMessageCallback, mirroring ClientManager::set_log_message_callback.
type Callback func(level Level, message string)

var (
	backend btclog.Logger = btclog.Disabled

	mu           sync.Mutex
	callback     Callback
	maxCbLevel   Level = LevelFatal
	hasCallback  atomic.Bool
)

// SetBackend installs the underlying btclog.Logger used for all structured
// log calls in this module. Tests and embedding applications may call this
// to redirect output; the zero value is a no-op sink.
func SetBackend(l btclog.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		l = btclog.Disabled
	}
	backend = l
}

// SetMessageCallback installs (or, with a nil callback, removes) the
// process-wide log sink described by spec §4.2. maxLevel bounds which
// records are forwarded; level 0 ("fatal") is always forwarded regardless
// of maxLevel, and the process aborts immediately after the callback
// returns for such a record.
func SetMessageCallback(maxLevel Level, cb Callback) {
	mu.Lock()
	defer mu.Unlock()

	callback = cb
	maxCbLevel = maxLevel
	hasCallback.Store(cb != nil)
}

func dispatch(ctx context.Context, lvl Level, msg string, kv ...any) {
	if hasCallback.Load() {
		mu.Lock()
		cb := callback
		limit := maxCbLevel
		mu.Unlock()

		if cb != nil && (lvl == LevelFatal || lvl <= limit) {
			cb(lvl, formatMessage(msg, kv...))

			if lvl == LevelFatal {
				os.Exit(1)
			}
		}
	}

	_ = ctx
}

func formatMessage(msg string, kv ...any) string {
	if len(kv) == 0 {
		return msg
	}

	out := msg
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return out
}

// TraceS logs a trace-level structured message.
func TraceS(ctx context.Context, msg string, kv ...any) {
	backend.Tracef("%s", formatMessage(msg, kv...))
	dispatch(ctx, LevelTrace, msg, kv...)
}

// DebugS logs a debug-level structured message.
func DebugS(ctx context.Context, msg string, kv ...any) {
	backend.Debugf("%s", formatMessage(msg, kv...))
	dispatch(ctx, LevelDebug, msg, kv...)
}

// InfoS logs an info-level structured message.
func InfoS(ctx context.Context, msg string, kv ...any) {
	backend.Infof("%s", formatMessage(msg, kv...))
	dispatch(ctx, LevelInfo, msg, kv...)
}

// WarnS logs a warn-level structured message with an associated error.
func WarnS(ctx context.Context, msg string, err error, kv ...any) {
	backend.Warnf("%s: %v", formatMessage(msg, kv...), err)
	dispatch(ctx, LevelWarn, msg, append(kv, "error", err)...)
}

// ErrorS logs an error-level structured message with an associated error.
func ErrorS(ctx context.Context, msg string, err error, kv ...any) {
	backend.Errorf("%s: %v", formatMessage(msg, kv...), err)
	dispatch(ctx, LevelError, msg, append(kv, "error", err)...)
}

// FatalS logs a fatal-level message, invokes the callback synchronously if
// one is installed, and always terminates the process — matching tdlib's
// documented behavior for verbosity_level == 0.
func FatalS(ctx context.Context, msg string, kv ...any) {
	backend.Criticalf("%s", formatMessage(msg, kv...))

	mu.Lock()
	cb := callback
	mu.Unlock()

	if cb != nil {
		cb(LevelFatal, formatMessage(msg, kv...))
	}

	_ = ctx
	os.Exit(1)
}
