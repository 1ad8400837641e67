package reimport

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/align"
	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
)

const (
	// DebugGroup is the top-most container for engine debug images.
	DebugGroup = "DEBUG__MASKS"
	// DebugPrefix names imported debug layers.
	DebugPrefix = "DEBUG__"
)

// OverlayImporter places the engine's debug_*.png images on top of the
// artwork for visual inspection.
type OverlayImporter struct {
	ed     host.Editor
	logger *slog.Logger
}

// NewOverlayImporter returns an OverlayImporter.
func NewOverlayImporter(ed host.Editor, logger *slog.Logger) *OverlayImporter {
	return &OverlayImporter{ed: ed, logger: logging.NewComponentLogger(logger, "overlay")}
}

// DebugImages lists the debug_*.png files of jobDir, matched and sorted
// case-insensitively.
func DebugImages(jobDir string) ([]string, error) {
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.Type().IsRegular() && strings.HasPrefix(name, "debug_") && strings.HasSuffix(name, ".png") {
			out = append(out, e.Name())
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}

// Import adds every debug image of jobDir as a layer of the debug group,
// newest on top, and returns how many were placed. Unreadable images are
// logged and skipped.
func (o *OverlayImporter) Import(doc *artwork.Document, jobDir string) (int, error) {
	files, err := DebugImages(jobDir)
	if err != nil {
		return 0, fmt.Errorf("list debug images: %w", err)
	}
	if len(files) == 0 {
		o.logger.Info("no debug images found", slog.String("job_dir", jobDir))
		return 0, nil
	}

	defer host.Scope(o.ed)()
	if err := o.ed.SetActiveDocument(doc); err != nil {
		return 0, err
	}
	group, err := ensureTopGroup(doc)
	if err != nil {
		return 0, err
	}

	placed := 0
	for _, name := range files {
		path := filepath.Join(jobDir, name)
		layerName := DebugPrefix + strings.TrimSuffix(name, filepath.Ext(name))
		l, err := o.place(doc, path, layerName)
		if err != nil {
			o.logger.Warn("debug image skipped", slog.String("path", path), slog.Any("error", err))
			continue
		}
		doc.Remove(l)
		if err := doc.Insert(group, 0, l); err != nil {
			return placed, err
		}
		l.BlendMode = artwork.BlendNormal
		l.Opacity = 100
		l.Visible = true
		placed++
		o.logger.Debug("debug image placed", slog.String(logging.FieldLayer, l.Path()))
	}

	if _, err := ensureTopGroup(doc); err != nil {
		return placed, err
	}
	o.logger.Info("debug images imported", slog.Int("count", placed))
	return placed, nil
}

// place pastes the image at path into doc as a new layer at the image's
// own coordinates.
func (o *OverlayImporter) place(doc *artwork.Document, path, layerName string) (*artwork.Layer, error) {
	img, err := o.ed.OpenImage(path)
	if err != nil {
		return nil, err
	}
	src := img.Layers[0]
	if err := o.ed.SelectTransparency(src); err != nil {
		o.ed.Close(img)
		return nil, err
	}
	srcSel, hasContent := o.ed.Selection()
	o.ed.SelectAll()
	err = o.ed.Copy()
	o.ed.Close(img)
	if err != nil {
		return nil, err
	}

	if err := o.ed.SetActiveDocument(doc); err != nil {
		return nil, err
	}
	pasted, err := o.ed.Paste()
	if err != nil {
		return nil, err
	}
	pasted.Name = layerName
	if !hasContent {
		return pasted, nil
	}

	if err := o.ed.SelectTransparency(pasted); err != nil {
		return pasted, nil
	}
	dstSel, _ := o.ed.Selection()
	o.ed.Deselect()
	if _, _, err := align.Restore(o.ed, pasted, srcSel.Bounds(), dstSel.Bounds()); err != nil {
		o.logger.Warn("debug image not aligned", slog.String(logging.FieldLayer, layerName), slog.Any("error", err))
	}
	return pasted, nil
}

// ensureTopGroup finds or creates the debug group and moves it to the top
// of the stack.
func ensureTopGroup(doc *artwork.Document) (*artwork.Layer, error) {
	var g *artwork.Layer
	for _, l := range doc.Layers {
		if l.Group && l.Name == DebugGroup {
			g = l
			break
		}
	}
	if g == nil {
		g = artwork.NewGroup(DebugGroup)
	} else {
		doc.Remove(g)
	}
	if err := doc.Insert(nil, 0, g); err != nil {
		return nil, err
	}
	return g, nil
}
