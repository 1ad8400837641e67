package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/smart-trapper/internal/logging"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "import").Info("trap layer created", slog.String("layer", "TRAP__Red_over_KEY"))

	out := buf.String()
	if !strings.Contains(out, "INFO [import] – trap layer created") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "    - layer: TRAP__Red_over_KEY") {
		t.Fatalf("expected field line, got %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes when Color is false, got %q", out)
	}
}

func TestConsoleLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info record should be filtered at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("export complete", slog.Int("plates", 2))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload["msg"] != "export complete" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTeeLoggerWritesToRunLog(t *testing.T) {
	var console bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	runLog := logging.NewRunLog()
	logger := logging.TeeLogger(base, runLog).With(slog.String(logging.FieldRunID, "abc"))

	logger.Debug("probe", slog.Int("x", 3))
	logger.Warn("plate skipped", slog.String("plate", "Red"))

	if strings.Contains(console.String(), "probe") {
		t.Fatal("console should not receive debug records")
	}
	text := runLog.String()
	if !strings.Contains(text, "DEBUG – probe") || !strings.Contains(text, "WARN – plate skipped") {
		t.Fatalf("run log missing records: %q", text)
	}
	if !strings.Contains(text, "    - run_id: abc") {
		t.Fatalf("run log missing preset attrs: %q", text)
	}
	if runLog.Records() != 2 {
		t.Fatalf("Records: got %d, want 2", runLog.Records())
	}
}

func TestTeeLoggerCarriesRunTags(t *testing.T) {
	var console bytes.Buffer
	base, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	base = logging.NewComponentLogger(base, "workflow").With(slog.String("bundle", "flyer"))

	runLog := logging.NewRunLog()
	runLogger := logging.TeeLogger(base, runLog).With(slog.String(logging.FieldRunID, "r1"))

	importLog := logging.NewRunLog()
	importLogger := logging.TeeLogger(logging.NewComponentLogger(runLogger, "import"), importLog)
	importLogger.Info("trap imported")

	text := importLog.String()
	if !strings.Contains(text, "INFO [import] – trap imported") {
		t.Fatalf("import log missing component: %q", text)
	}
	if !strings.Contains(text, "    - run_id: r1") {
		t.Fatalf("import log missing run id: %q", text)
	}
	if strings.Contains(text, "bundle") {
		t.Fatalf("only run tags should be carried: %q", text)
	}
	if !strings.Contains(runLog.String(), "trap imported") {
		t.Fatal("outer run log should also receive the record")
	}
	if !strings.Contains(console.String(), `"run_id":"r1"`) {
		t.Fatalf("console missing run id: %q", console.String())
	}
}

func TestRunLogFlush(t *testing.T) {
	runLog := logging.NewRunLog()
	runLog.Printf("RUN START %s", "poster.psd")
	slog.New(runLog).WithGroup("summary").Info("import finished", slog.Int("imported", 1))

	dir := filepath.Join(t.TempDir(), "job")
	path, err := runLog.Flush(dir, "run_log.txt")
	if err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if path != filepath.Join(dir, "run_log.txt") {
		t.Fatalf("unexpected path: %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read flushed log: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "RUN START poster.psd\n") {
		t.Fatalf("plain line missing: %q", text)
	}
	if !strings.Contains(text, "    - summary.imported: 1") {
		t.Fatalf("grouped attr missing: %q", text)
	}
}

func TestNopLogger(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "x")
	logger.Error("discarded")
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}
