package node

import (
	"context"
	"log/slog"
	"strings"

	"sensornode-go/types"
	"sensornode-go/x/logring"
)

// RingHandler copies log records into the diagnostic ring served on /logs and
// passes them on to next. The ring keeps the message followed by its
// attributes as key=value pairs.
type RingHandler struct {
	ring  *logring.Ring
	level slog.Leveler
	next  slog.Handler
	attrs string // preformatted WithAttrs pairs
	group string
}

// NewRingHandler keeps records at or above level. next may be nil.
func NewRingHandler(ring *logring.Ring, level slog.Leveler, next slog.Handler) *RingHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &RingHandler{ring: ring, level: level, next: next}
}

func (h *RingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() || (h.next != nil && h.next.Enabled(ctx, l))
}

func (h *RingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		var b strings.Builder
		b.WriteString(r.Message)
		b.WriteString(h.attrs)
		r.Attrs(func(a slog.Attr) bool {
			writeAttr(&b, h.group, a)
			return true
		})
		h.ring.Append(ringLevel(r.Level), b.String())
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	c.attrs = b.String()
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.group + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			writeAttr(b, prefix, g)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(group)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

func ringLevel(l slog.Level) types.Level {
	switch {
	case l >= slog.LevelError:
		return types.LevelError
	case l >= slog.LevelWarn:
		return types.LevelWarn
	case l >= slog.LevelInfo:
		return types.LevelInfo
	default:
		return types.LevelDebug
	}
}
