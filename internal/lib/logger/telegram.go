package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Notifier delivers a plain text alert to an operator.
type Notifier interface {
	SendMessage(msg string)
}

// TelegramHandler forwards records at or above level to the notifier and
// passes every record to the wrapped handler.
type TelegramHandler struct {
	next     slog.Handler
	notifier Notifier
	level    slog.Level
	attrs    []slog.Attr
}

func SetupTelegramHandler(log *slog.Logger, notifier Notifier, level slog.Level) *slog.Logger {
	if notifier == nil {
		return log
	}
	return slog.New(&TelegramHandler{
		next:     log.Handler(),
		notifier: notifier,
		level:    level,
	})
}

func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.level
}

func (h *TelegramHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		h.notifier.SendMessage(h.format(r))
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TelegramHandler{
		next:     h.next.WithAttrs(attrs),
		notifier: h.notifier,
		level:    h.level,
		attrs:    merged,
	}
}

// WithGroup keeps alert formatting flat; groups only apply to the wrapped handler.
func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	return &TelegramHandler{
		next:     h.next.WithGroup(name),
		notifier: h.notifier,
		level:    h.level,
		attrs:    h.attrs,
	}
}

func (h *TelegramHandler) format(r slog.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", r.Level.String(), r.Message))
	for _, a := range h.attrs {
		sb.WriteString(fmt.Sprintf("\n%s: %s", a.Key, a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(fmt.Sprintf("\n%s: %s", a.Key, a.Value.String()))
		return true
	})
	return sb.String()
}
