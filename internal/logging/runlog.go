package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RunLog is a slog.Handler that keeps every record as human-readable text in
// memory until Flush writes it into a job folder. Debug records are kept too,
// so the flushed file is more detailed than the console.
//
// Handlers derived through WithAttrs and WithGroup share the same buffer.
type RunLog struct {
	state  *runLogState
	attrs  []slog.Attr
	groups []string
}

type runLogState struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines int
}

// NewRunLog returns an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{state: &runLogState{}}
}

func (r *RunLog) Enabled(context.Context, slog.Level) bool { return true }

func (r *RunLog) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer
	formatRecord(&buf, record, r.attrs, r.groups, formatOptions{timestamp: true})

	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.buf.Write(buf.Bytes())
	r.state.lines++
	return nil
}

func (r *RunLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunLog{
		state:  r.state,
		attrs:  append(append([]slog.Attr(nil), r.attrs...), qualify(r.groups, attrs)...),
		groups: r.groups,
	}
}

func (r *RunLog) tags() []slog.Attr { return mergeTags(nil, r.attrs) }

func (r *RunLog) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	return &RunLog{
		state:  r.state,
		attrs:  r.attrs,
		groups: append(append([]string(nil), r.groups...), name),
	}
}

// Printf appends a plain line without level or timestamp decoration.
func (r *RunLog) Printf(format string, args ...any) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	fmt.Fprintf(&r.state.buf, format, args...)
	if n := r.state.buf.Len(); n == 0 || r.state.buf.Bytes()[n-1] != '\n' {
		r.state.buf.WriteByte('\n')
	}
	r.state.lines++
}

// Records returns the number of entries written so far.
func (r *RunLog) Records() int {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.lines
}

// String returns the buffered text.
func (r *RunLog) String() string {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.buf.String()
}

// Flush writes the buffered text to dir/name, replacing any previous file.
// The buffer is kept so a later flush writes a superset.
func (r *RunLog) Flush(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(r.String()), 0o644); err != nil {
		return "", fmt.Errorf("write run log %s: %w", path, err)
	}
	return path, nil
}
