// Package engine runs the external trapping engine on a job folder.
//
// The engine is invoked as `<engine> <jobFolder> <trapWidth>`. Its combined
// output is captured into trapper_log.txt, framed by a RUNNING line and an
// ERRORLEVEL:<code> line, and the exit code is also written to
// errorlevel.txt. Success is judged by the presence of traps.json, not by
// the exit code.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
)

const (
	// LogFile receives the engine output.
	LogFile = "trapper_log.txt"
	// ErrorLevelFile receives the engine exit code.
	ErrorLevelFile = "errorlevel.txt"
	// ModeEnv passes the trapping mode to the engine.
	ModeEnv = "SMART_TRAPPER_MODE"
)

var (
	// ErrNoTrapManifest is returned when the engine left no traps.json.
	ErrNoTrapManifest = errors.New("engine did not generate traps.json")
	// ErrEngineNotFound is returned when the engine executable is missing.
	ErrEngineNotFound = errors.New("engine executable not found")
)

// Executor abstracts command execution for testability. A non-zero exit
// is reported through the exit code; err is reserved for failures to run.
type Executor interface {
	Run(ctx context.Context, binary string, args, env []string, onLine func(string)) (exitCode int, err error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner runs the trapping engine.
type Runner struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New returns a runner for the engine binary. A zero timeout lets the
// engine run until it exits or the context is cancelled.
func New(binary string, timeout time.Duration, logger *slog.Logger, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("engine binary required")
	}
	r := &Runner{
		binary:  binary,
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "engine"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Result describes a finished engine run.
type Result struct {
	ExitCode       int
	LogPath        string
	ErrorLevelPath string
	Duration       time.Duration
}

// Run executes the engine on jobDir and waits for it.
func (r *Runner) Run(ctx context.Context, jobDir string, trapWidth int, mode string) (*Result, error) {
	res := &Result{
		ExitCode:       -1,
		LogPath:        filepath.Join(jobDir, LogFile),
		ErrorLevelPath: filepath.Join(jobDir, ErrorLevelFile),
	}
	for _, stale := range []string{res.LogPath, res.ErrorLevelPath} {
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s: %w", filepath.Base(stale), err)
		}
	}

	logFile, err := os.Create(res.LogPath)
	if err != nil {
		return nil, fmt.Errorf("create engine log: %w", err)
	}
	defer logFile.Close()
	out := &lineWriter{w: logFile}
	out.WriteLine("RUNNING")

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{jobDir, strconv.Itoa(trapWidth)}
	env := append(os.Environ(), ModeEnv+"="+mode)
	r.logger.Info("engine started",
		slog.String("binary", r.binary),
		slog.String("job_dir", jobDir),
		slog.Int("trap_width", trapWidth),
		slog.String("mode", mode))

	start := time.Now()
	code, runErr := r.exec.Run(runCtx, r.binary, args, env, func(line string) {
		out.WriteLine(line)
		r.logger.Debug("engine output", slog.String("line", line))
	})
	res.Duration = time.Since(start)
	if runErr == nil {
		res.ExitCode = code
	}

	out.WriteLine("ERRORLEVEL:" + strconv.Itoa(res.ExitCode))
	if err := os.WriteFile(res.ErrorLevelPath, []byte(strconv.Itoa(res.ExitCode)+"\n"), 0o644); err != nil {
		r.logger.Warn("errorlevel not written", slog.Any("error", err))
	}

	if runErr != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return res, fmt.Errorf("engine interrupted: %w", ctxErr)
		}
		return res, fmt.Errorf("run engine %s: %w", r.binary, runErr)
	}
	if res.ExitCode != 0 {
		r.logger.Warn("engine exited with non-zero status", slog.Int("exit_code", res.ExitCode))
	}
	if !manifest.Exists(jobDir, manifest.TrapsFile) {
		return res, fmt.Errorf("%w (see %s and %s)", ErrNoTrapManifest, res.LogPath, res.ErrorLevelPath)
	}
	r.logger.Info("engine finished", slog.Int("exit_code", res.ExitCode), slog.Duration("duration", res.Duration))
	return res, nil
}

// lineWriter serializes lines from concurrent output streams.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) WriteLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, line)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args, env []string, onLine func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Env = env
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return -1, fmt.Errorf("%w: %s", ErrEngineNotFound, binary)
		}
		return -1, fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	err = cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("wait command: %w", err)
	}
	return 0, nil
}
