package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05"

// consoleHandler writes one header line per record followed by indented
// key/value lines:
//
//	2026-01-02 10:00:00 INFO [import] – trap layer created
//	    - layer: TRAP__Red_over_KEY
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
	color     bool
	timestamp bool
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource, color: color, timestamp: true}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer
	formatRecord(&buf, record, h.attrs, h.groups, formatOptions{
		addSource: h.addSource,
		color:     h.color,
		timestamp: h.timestamp,
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.groups, attrs)...)
	return &clone
}

func (h *consoleHandler) tags() []slog.Attr { return mergeTags(nil, h.attrs) }

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type formatOptions struct {
	addSource bool
	color     bool
	timestamp bool
}

func formatRecord(buf *bytes.Buffer, record slog.Record, preset []slog.Attr, groups []string, opts formatOptions) {
	var component string
	fields := make([]slog.Attr, 0, len(preset)+record.NumAttrs())
	collect := func(attr slog.Attr) {
		// The innermost component names the record.
		if attr.Key == FieldComponent {
			component = attr.Value.String()
			return
		}
		fields = append(fields, attr)
	}
	for _, attr := range preset {
		collect(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		for _, q := range qualify(groups, []slog.Attr{attr}) {
			collect(q)
		}
		return true
	})

	if opts.timestamp {
		ts := record.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		buf.WriteString(ts.In(time.Local).Format(logTimestampLayout))
		buf.WriteByte(' ')
	}
	buf.WriteString(levelLabel(record.Level, opts.color))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if opts.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')

	for _, attr := range fields {
		writeField(buf, "", attr)
	}
}

func writeField(buf *bytes.Buffer, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			writeField(buf, key, child)
		}
		return
	}
	buf.WriteString("    - ")
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(formatValue(attr.Value))
	buf.WriteByte('\n')
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprintf("%+v", v.Any())
	default:
		return v.String()
	}
}

// qualify folds open groups into attribute keys so preset attributes keep
// the group they were added under.
func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	prefix := strings.Join(groups, ".")
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
		if attr.Key != FieldComponent {
			out[i].Key = prefix + "." + attr.Key
		}
	}
	return out
}

func levelLabel(level slog.Level, color bool) string {
	label := "INFO"
	code := "\x1b[36m"
	switch {
	case level >= slog.LevelError:
		label, code = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		label, code = "WARN", "\x1b[33m"
	case level < slog.LevelInfo:
		label, code = "DEBUG", "\x1b[90m"
	}
	if !color {
		return label
	}
	return code + label + "\x1b[0m"
}
