// Package export writes the job folder the trapping engine consumes: one
// canvas-sized PNG mask per plate and the job manifest describing them.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/smart-trapper/internal/align"
	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/host"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
	"github.com/ironsheep/smart-trapper/internal/shape"
)

const (
	// MasksDir holds the exported masks inside a job folder.
	MasksDir = "masks"

	scratchLayer = "__smart_trapper_mask_fill__"
	scratchDoc   = "mask_tmp"
)

var (
	// ErrNoShape is returned when no region can be resolved for a plate.
	ErrNoShape = errors.New("no printed shape")
	// ErrKeyMask is returned when the key plate cannot be exported.
	ErrKeyMask = errors.New("key mask export failed")
)

var maskInk = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Options are forwarded to the engine through the job manifest.
type Options struct {
	Mode      string
	Tolerance int
}

// Result summarizes an export.
type Result struct {
	Job *manifest.Job
	// Skipped lists color plates left out because their shape could not be
	// resolved or written.
	Skipped []string
}

// Exporter rasterizes plate shapes into mask files.
type Exporter struct {
	ed       host.Editor
	selector *shape.Selector
	logger   *slog.Logger
}

// New returns an Exporter working through ed.
func New(ed host.Editor, selector *shape.Selector, logger *slog.Logger) *Exporter {
	return &Exporter{ed: ed, selector: selector, logger: logging.NewComponentLogger(logger, "export")}
}

// JobFolderName returns "<docBase>__YYYY-MM-DD__HH-MM-SS".
func JobFolderName(docName string, at time.Time) string {
	base := strings.TrimSuffix(docName, filepath.Ext(docName))
	base = artwork.SanitizeName(base)
	if base == "" {
		base = "untitled"
	}
	return base + "__" + at.Format("2006-01-02__15-04-05")
}

// CreateJobFolder creates a fresh job folder under base.
func CreateJobFolder(base, docName string, at time.Time) (string, error) {
	dir := filepath.Join(base, JobFolderName(docName, at))
	if err := os.MkdirAll(filepath.Join(dir, MasksDir), 0o755); err != nil {
		return "", fmt.Errorf("create job folder: %w", err)
	}
	return dir, nil
}

// MaskFileName returns the mask file name for a plate. label is "KEY" or
// the 1-based position of the plate among the color plates.
func MaskFileName(label, plate string) string {
	return label + "_" + artwork.SanitizeName(plate) + ".png"
}

// Export writes every plate mask of doc and the job manifest into jobDir.
// A key plate failure aborts the export; a color plate failure drops that
// plate from the manifest.
func (e *Exporter) Export(doc *artwork.Document, jobDir string, opts Options) (*Result, error) {
	plates, err := DiscoverPlates(doc)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(jobDir, MasksDir), 0o755); err != nil {
		return nil, fmt.Errorf("create masks folder: %w", err)
	}

	job := &manifest.Job{
		DocName:        doc.Name,
		WidthPx:        doc.Width,
		HeightPx:       doc.Height,
		Resolution:     doc.Resolution,
		Tolerance:      opts.Tolerance,
		Mode:           opts.Mode,
		KeyLayerName:   plates.Key.Name,
		PaperLayerName: plates.Paper.Name,
	}

	keyRel := filepath.ToSlash(filepath.Join(MasksDir, MaskFileName("KEY", plates.Key.Name)))
	if _, err := e.ExportMask(doc, plates.Key, filepath.Join(jobDir, keyRel)); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrKeyMask, plates.Key.Name, err)
	}
	job.Files = append(job.Files, manifest.File{
		Kind:       manifest.KindKey,
		Name:       plates.Key.Name,
		Appearance: manifest.AppearanceOf(plates.Key),
		PNG:        keyRel,
	})

	res := &Result{Job: job}
	for i, plate := range plates.Colors {
		rel := filepath.ToSlash(filepath.Join(MasksDir, MaskFileName(fmt.Sprint(i+1), plate.Name)))
		if _, err := e.ExportMask(doc, plate, filepath.Join(jobDir, rel)); err != nil {
			e.logger.Warn("color plate skipped",
				slog.String(logging.FieldPlate, plate.Name),
				slog.String(logging.FieldReason, err.Error()))
			res.Skipped = append(res.Skipped, plate.Name)
			continue
		}
		app := manifest.AppearanceOf(plate)
		job.Colors = append(job.Colors, manifest.Color{Name: plate.Name, Appearance: app})
		job.Files = append(job.Files, manifest.File{Kind: manifest.KindColor, Name: plate.Name, Appearance: app, PNG: rel})
	}

	if err := manifest.WriteJob(jobDir, job); err != nil {
		return nil, err
	}
	e.logger.Info("export complete",
		slog.String("job_dir", jobDir),
		slog.Int("colors", len(job.Colors)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("tolerance", opts.Tolerance),
		slog.String("mode", opts.Mode))
	return res, nil
}

// ExportMask writes the printed shape of layer as a canvas-sized PNG:
// opaque white inside, transparent outside, at the original coordinates.
// It returns the bounds of the written content. Editor state is restored.
func (e *Exporter) ExportMask(doc *artwork.Document, layer *artwork.Layer, path string) (image.Rectangle, error) {
	defer host.Scope(e.ed)()
	if err := e.ed.SetActiveDocument(doc); err != nil {
		return image.Rectangle{}, err
	}
	defer host.Solo(doc, layer)()

	src, err := e.copyShape(doc, layer)
	if err != nil {
		return image.Rectangle{}, err
	}

	maskDoc := e.ed.NewDocument(scratchDoc, doc.Width, doc.Height, doc.Resolution)
	defer e.ed.Close(maskDoc)
	pasted, err := e.ed.Paste()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("paste mask: %w", err)
	}
	dst := pimaging.OpaqueBounds(pasted.Pixels)
	if _, _, err := align.Restore(e.ed, pasted, src, dst); err != nil {
		return image.Rectangle{}, err
	}
	if err := e.ed.SavePNG(maskDoc, path); err != nil {
		return image.Rectangle{}, fmt.Errorf("save mask: %w", err)
	}

	e.logger.Debug("mask written",
		slog.String(logging.FieldPlate, layer.Name),
		slog.String("path", path),
		slog.String("bounds", src.String()))
	return src, nil
}

// copyShape fills the shape of layer on a scratch layer, copies it to the
// clipboard and removes the scratch layer. It returns where the shape sits
// on the canvas.
func (e *Exporter) copyShape(doc *artwork.Document, layer *artwork.Layer) (image.Rectangle, error) {
	if err := e.ed.SetActiveLayer(layer); err != nil {
		return image.Rectangle{}, err
	}
	res, ok := e.selector.Select(e.ed, doc, layer)
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%q: %w", layer.Name, ErrNoShape)
	}

	tmp, err := e.ed.AddLayer(scratchLayer)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer func() { _ = e.ed.DeleteLayer(tmp) }()

	e.ed.SetForeground(maskInk)
	e.ed.SetSelection(res.Mask)
	if err := e.ed.Fill(); err != nil {
		return image.Rectangle{}, fmt.Errorf("fill mask: %w", err)
	}
	e.ed.Deselect()

	src := pimaging.OpaqueBounds(tmp.Pixels)
	e.ed.SelectAll()
	if err := e.ed.Copy(); err != nil {
		return image.Rectangle{}, fmt.Errorf("copy mask: %w", err)
	}
	return src, nil
}
