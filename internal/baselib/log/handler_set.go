package log

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// handlerSet is a btclog.Handler that fans a record out to every handler it
// wraps, so InitFileLogging can write each message to both stderr and a
// rotating file without the rest of the package knowing there's more than
// one sink.
type handlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

func newHandlerSet(handlers ...btclogv2.Handler) *handlerSet {
	h := &handlerSet{set: handlers, level: btclog.LevelInfo}
	h.SetLevel(h.level)
	return h
}

func (h *handlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func (h *handlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &reducedHandlerSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}
	return newSet
}

func (h *handlerSet) WithGroup(name string) slog.Handler {
	newSet := &reducedHandlerSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name)
	}
	return newSet
}

func (h *handlerSet) SubSystem(tag string) btclogv2.Handler {
	newSet := &handlerSet{set: make([]btclogv2.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.SubSystem(tag)
	}
	return newSet
}

func (h *handlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

func (h *handlerSet) Level() btclog.Level { return h.level }

func (h *handlerSet) WithPrefix(prefix string) btclogv2.Handler {
	newSet := &handlerSet{set: make([]btclogv2.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithPrefix(prefix)
	}
	return newSet
}

var _ btclogv2.Handler = (*handlerSet)(nil)

// reducedHandlerSet backs the plain slog.Handler returned from WithAttrs/
// WithGroup, which no longer carry the btclog-specific methods.
type reducedHandlerSet struct {
	set []slog.Handler
}

func (r *reducedHandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range r.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func (r *reducedHandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range r.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (r *reducedHandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &reducedHandlerSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}
	return newSet
}

func (r *reducedHandlerSet) WithGroup(name string) slog.Handler {
	newSet := &reducedHandlerSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithGroup(name)
	}
	return newSet
}

var _ slog.Handler = (*reducedHandlerSet)(nil)
