package logging

import (
	"context"
	"errors"
	"log/slog"
)

// tagKeys are the attributes a tee copies from its base logger onto the
// sinks it adds, so a job-folder log names the same run and component as
// the console.
var tagKeys = map[string]bool{FieldRunID: true, FieldComponent: true}

// tagged is implemented by handlers that can report the tag attributes
// attached to them.
type tagged interface {
	tags() []slog.Attr
}

// mergeTags returns prev updated with the tag attributes in attrs. A later
// value for a key replaces the earlier one.
func mergeTags(prev, attrs []slog.Attr) []slog.Attr {
	out := append([]slog.Attr(nil), prev...)
	for _, attr := range attrs {
		if !tagKeys[attr.Key] {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].Key == attr.Key {
				out[i] = attr
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, attr)
		}
	}
	return out
}

func tagsOf(h slog.Handler) []slog.Attr {
	if t, ok := h.(tagged); ok {
		return t.tags()
	}
	return nil
}

// fanoutHandler sends each record to every handler that accepts its level.
// Handler errors are joined; one failing sink does not starve the others.
type fanoutHandler struct {
	handlers []slog.Handler
	tagAttrs []slog.Attr
	grouped  bool
}

func newFanoutHandler(tags []slog.Attr, handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return NoopHandler{}
	}
	return &fanoutHandler{handlers: filtered, tagAttrs: tags}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &fanoutHandler{handlers: make([]slog.Handler, len(h.handlers)), tagAttrs: h.tagAttrs, grouped: h.grouped}
	for i, handler := range h.handlers {
		next.handlers[i] = handler.WithAttrs(attrs)
	}
	if !h.grouped {
		next.tagAttrs = mergeTags(h.tagAttrs, attrs)
	}
	return next
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := &fanoutHandler{handlers: make([]slog.Handler, len(h.handlers)), tagAttrs: h.tagAttrs, grouped: true}
	for i, handler := range h.handlers {
		next.handlers[i] = handler.WithGroup(name)
	}
	return next
}

func (h *fanoutHandler) tags() []slog.Attr { return h.tagAttrs }

// TeeLogger duplicates log output from base into sinks. The run_id and
// component tags already attached to base are attached to each sink as well.
func TeeLogger(base *slog.Logger, sinks ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newFanoutHandler(nil, sinks...))
	}
	tags := tagsOf(base.Handler())
	all := []slog.Handler{base.Handler()}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if len(tags) > 0 {
			sink = sink.WithAttrs(tags)
		}
		all = append(all, sink)
	}
	return slog.New(newFanoutHandler(tags, all...))
}
