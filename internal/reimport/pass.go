package reimport

import (
	"log/slog"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/groups"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/sampling"
	"github.com/ironsheep/smart-trapper/internal/shape"
)

// LogName is the import log written into the job folder.
const LogName = "import_debug_log.txt"

// Options configure an import pass.
type Options struct {
	// ScanSteps are the coarse-to-fine grid steps for ink sampling.
	ScanSteps []int
	// Overlays places the engine's debug images after the traps.
	Overlays bool
}

// Pass runs one complete import: traps, then debug overlays. Each pass
// samples inks afresh.
type Pass struct {
	ed     host.Editor
	opts   Options
	logger *slog.Logger
}

// NewPass returns an import pass.
func NewPass(ed host.Editor, opts Options, logger *slog.Logger) *Pass {
	return &Pass{ed: ed, opts: opts, logger: logger}
}

// Run imports the traps of jobDir into doc. The import log is written into
// jobDir whatever the outcome; a flush failure is reported only when the
// import itself succeeded.
func (p *Pass) Run(doc *artwork.Document, jobDir string) (sum *Summary, err error) {
	runLog := logging.NewRunLog()
	logger := logging.TeeLogger(p.logger, runLog)
	defer func() {
		if _, ferr := runLog.Flush(jobDir, LogName); ferr != nil && err == nil {
			err = ferr
		}
	}()
	logger.Info("import started", slog.String("job_dir", jobDir), slog.String("document", doc.Name))

	selector := shape.NewSelector(logger)
	ink := sampling.NewInkSampler(p.ed, selector, sampling.NewScanner(p.opts.ScanSteps, logger), logger)
	rec := NewReconstructor(p.ed, groups.NewManager(logger), ink, logger)

	sum, err = rec.Import(doc, jobDir)
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		return nil, err
	}
	sum.Scans = ink.ScanCount()
	if sum.Total == 0 || !p.opts.Overlays {
		return sum, nil
	}

	n, oerr := NewOverlayImporter(p.ed, logger).Import(doc, jobDir)
	if oerr != nil {
		logger.Warn("debug overlays failed", slog.Any("error", oerr))
	}
	sum.Overlays = n
	return sum, nil
}
