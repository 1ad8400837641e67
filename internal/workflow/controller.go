// Package workflow sequences a complete trapping run: export the plate
// masks, run the engine, import the traps and save the artwork.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/config"
	"github.com/ironsheep/smart-trapper/internal/engine"
	"github.com/ironsheep/smart-trapper/internal/export"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
	"github.com/ironsheep/smart-trapper/internal/reimport"
	"github.com/ironsheep/smart-trapper/internal/shape"
)

const (
	// RunLogName is the controller log written into the job folder.
	RunLogName = "run_log.txt"
	// OrphanLogPrefix names run logs of runs that stopped before a job
	// folder existed. They are written to the jobs directory as
	// <prefix><run id>.txt.
	OrphanLogPrefix = "run_log__"
	// LockName guards a job folder against concurrent runs.
	LockName = ".smart-trapper.lock"
)

var (
	// ErrJobLocked is returned when another run holds the job folder.
	ErrJobLocked = errors.New("job folder is locked by another run")
	// ErrPanic wraps a panic recovered during a run.
	ErrPanic = errors.New("unexpected failure")
)

// EngineRunner runs the trapping engine on a job folder.
type EngineRunner interface {
	Run(ctx context.Context, jobDir string, trapWidth int, mode string) (*engine.Result, error)
}

// Report summarizes a run. Fields are filled as far as the run got.
type Report struct {
	RunID    string
	Document string
	JobDir   string
	// RunLog is the path of the flushed run log, once written.
	RunLog    string
	Mode      Mode
	TrapWidth int
	Export    *export.Result
	Engine    *engine.Result
	Import    *reimport.Summary
	Duration  time.Duration
}

// Controller runs the workflow against artwork bundles.
type Controller struct {
	ed       host.Editor
	cfg      *config.Config
	engine   EngineRunner
	operator Operator
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock used to name job folders.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Controller. A nil operator answers every question with
// its default.
func New(ed host.Editor, cfg *config.Config, runner EngineRunner, op Operator, logger *slog.Logger, opts ...Option) *Controller {
	if op == nil {
		op = FlagOperator{}
	}
	c := &Controller{
		ed:       ed,
		cfg:      cfg,
		engine:   runner,
		operator: op,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs export, engine and import on the artwork bundle at
// bundleDir and saves the bundle in place. The run log is flushed on every
// exit path: into the job folder once it exists, otherwise into the jobs
// directory under OrphanLogPrefix.
func (c *Controller) Run(ctx context.Context, bundleDir string) (report *Report, err error) {
	start := c.now()
	report = &Report{RunID: uuid.NewString()}
	runLog := logging.NewRunLog()
	logger := logging.TeeLogger(c.logger, runLog).With(slog.String(logging.FieldRunID, report.RunID))

	defer func() {
		report.Duration = c.now().Sub(start)
		dir, name := report.JobDir, RunLogName
		if dir == "" {
			// Stopped before the job folder existed.
			jobsDir, xerr := config.ExpandPath(c.cfg.Paths.JobsDir)
			if xerr != nil {
				c.logger.Warn("run log not written", slog.Any("error", xerr))
				return
			}
			dir, name = jobsDir, OrphanLogPrefix+report.RunID+".txt"
		}
		path, ferr := runLog.Flush(dir, name)
		if ferr != nil {
			c.logger.Warn("run log not written", slog.Any("error", ferr))
			return
		}
		report.RunLog = path
		c.logger.Debug("run log written", slog.String("path", path))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Error("run failed", slog.Any("error", err))
		}
	}()

	doc, err := c.open(bundleDir)
	if err != nil {
		logger.Error("run failed", slog.Any("error", err))
		return report, err
	}
	report.Document = doc.Name
	logger.Info("run started", slog.String("document", doc.Name), slog.String("bundle", bundleDir))

	mode, width, err := c.ask(ctx, doc, logger)
	if err != nil {
		logger.Warn("run stopped", slog.Any("error", err))
		return report, err
	}
	report.Mode, report.TrapWidth = mode, width

	jobsDir, err := config.ExpandPath(c.cfg.Paths.JobsDir)
	if err != nil {
		return report, err
	}
	jobDir, err := export.CreateJobFolder(jobsDir, doc.Name, start)
	if err != nil {
		logger.Error("run failed", slog.Any("error", err))
		return report, err
	}
	report.JobDir = jobDir

	lock := flock.New(filepath.Join(jobDir, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("lock job folder: %w", err)
	}
	if !locked {
		return report, fmt.Errorf("%s: %w", jobDir, ErrJobLocked)
	}
	defer func() { _ = lock.Unlock() }()

	if err := c.sequence(ctx, doc, bundleDir, report, logger); err != nil {
		logger.Error("run failed", slog.Any("error", err), slog.String("job_dir", jobDir))
		return report, err
	}
	logger.Info("run complete",
		slog.String("job_dir", jobDir),
		slog.Int("imported", report.Import.Imported),
		slog.Int("skipped", report.Import.Skipped))
	return report, nil
}

func (c *Controller) sequence(ctx context.Context, doc *artwork.Document, bundleDir string, report *Report, logger *slog.Logger) error {
	exp := export.New(c.ed, shape.NewSelector(logger), logger)
	res, err := exp.Export(doc, report.JobDir, export.Options{Mode: string(report.Mode), Tolerance: report.TrapWidth})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	report.Export = res

	engRes, err := c.engine.Run(ctx, report.JobDir, report.TrapWidth, string(report.Mode))
	report.Engine = engRes
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if !manifest.Exists(report.JobDir, manifest.TrapsFile) {
		return fmt.Errorf("engine: %w", engine.ErrNoTrapManifest)
	}

	sum, err := c.importPass(logger).Run(doc, report.JobDir)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	report.Import = sum

	if err := artwork.Save(doc, bundleDir); err != nil {
		return fmt.Errorf("save artwork: %w", err)
	}
	return nil
}

// ask settles the trapping mode and trap width.
func (c *Controller) ask(ctx context.Context, doc *artwork.Document, logger *slog.Logger) (Mode, int, error) {
	mode := ModePlates
	if overlaps := OverlapLayers(doc); len(overlaps) > 0 {
		names := make([]string, 0, len(overlaps))
		for _, l := range overlaps {
			names = append(names, l.Name)
		}
		logger.Info("overlapping layers detected", slog.Any("layers", names))
		chosen, err := c.operator.ChooseMode(ctx, names)
		if err != nil {
			return "", 0, err
		}
		mode = chosen
	}

	def := DefaultTrapWidth(doc.Resolution, c.cfg.Trap.BaselineWidth, c.cfg.Trap.BaselineResolution)
	answer, err := c.operator.TrapWidth(ctx, def, doc.Resolution)
	if err != nil {
		return "", 0, err
	}
	width := ParseTrapWidth(answer, def)
	logger.Info("run settings", slog.String("mode", string(mode)), slog.Int("trap_width", width), slog.Int("default_width", def))
	return mode, width, nil
}

func (c *Controller) open(bundleDir string) (*artwork.Document, error) {
	doc, err := artwork.Load(bundleDir)
	if err != nil {
		return nil, err
	}
	c.ed.Attach(doc)
	return doc, nil
}

func (c *Controller) importPass(logger *slog.Logger) *reimport.Pass {
	return reimport.NewPass(c.ed, reimport.Options{
		ScanSteps: c.cfg.Trap.ScanSteps,
		Overlays:  c.cfg.Debug.ImportOverlays,
	}, logger)
}

// Export writes the job folder for bundleDir without running the engine.
func (c *Controller) Export(ctx context.Context, bundleDir string) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := c.logger.With(slog.String(logging.FieldRunID, report.RunID))
	doc, err := c.open(bundleDir)
	if err != nil {
		return report, err
	}
	report.Document = doc.Name
	mode, width, err := c.ask(ctx, doc, logger)
	if err != nil {
		return report, err
	}
	report.Mode, report.TrapWidth = mode, width

	jobsDir, err := config.ExpandPath(c.cfg.Paths.JobsDir)
	if err != nil {
		return report, err
	}
	report.JobDir, err = export.CreateJobFolder(jobsDir, doc.Name, c.now())
	if err != nil {
		return report, err
	}
	res, err := export.New(c.ed, shape.NewSelector(logger), logger).Export(doc, report.JobDir, export.Options{Mode: string(mode), Tolerance: width})
	if err != nil {
		return report, err
	}
	report.Export = res
	return report, nil
}

// Import merges the traps of an existing job folder into bundleDir and
// saves it.
func (c *Controller) Import(ctx context.Context, bundleDir, jobDir string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), JobDir: jobDir}
	logger := c.logger.With(slog.String(logging.FieldRunID, report.RunID))
	if err := ctx.Err(); err != nil {
		return report, err
	}
	doc, err := c.open(bundleDir)
	if err != nil {
		return report, err
	}
	report.Document = doc.Name

	sum, err := c.importPass(logger).Run(doc, jobDir)
	if err != nil {
		return report, err
	}
	report.Import = sum
	if err := artwork.Save(doc, bundleDir); err != nil {
		return report, fmt.Errorf("save artwork: %w", err)
	}
	return report, nil
}

// Overlay places the debug images of jobDir into bundleDir and saves it.
func (c *Controller) Overlay(ctx context.Context, bundleDir, jobDir string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc, err := c.open(bundleDir)
	if err != nil {
		return 0, err
	}
	n, err := reimport.NewOverlayImporter(c.ed, c.logger).Import(doc, jobDir)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, artwork.Save(doc, bundleDir)
}
