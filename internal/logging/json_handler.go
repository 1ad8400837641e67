package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// jsonHandler emits one JSON object per record with short keys (ts, level,
// msg) and tracks the run tags attached to it.
type jsonHandler struct {
	slog.Handler
	tagAttrs []slog.Attr
	grouped  bool
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return &jsonHandler{Handler: slog.NewJSONHandler(w, &opts)}
}

func replaceJSONAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &jsonHandler{Handler: h.Handler.WithAttrs(attrs), tagAttrs: h.tagAttrs, grouped: h.grouped}
	if !h.grouped {
		next.tagAttrs = mergeTags(h.tagAttrs, attrs)
	}
	return next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &jsonHandler{Handler: h.Handler.WithGroup(name), tagAttrs: h.tagAttrs, grouped: true}
}

func (h *jsonHandler) tags() []slog.Attr { return h.tagAttrs }
