// Package reimport merges the traps computed by the engine back into the
// artwork. Each trap becomes a layer inside its source plate's container,
// directly above the plate, painted with the plate's own ink and clipped
// to the trap mask at its original pixel coordinates.
package reimport

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/ironsheep/smart-trapper/internal/align"
	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/export"
	"github.com/ironsheep/smart-trapper/internal/groups"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
	"github.com/ironsheep/smart-trapper/internal/region"
	"github.com/ironsheep/smart-trapper/internal/sampling"
)

// ErrEmptyTrap is returned for a trap image without visible pixels.
var ErrEmptyTrap = errors.New("trap image is empty")

// Reason classifies a skipped trap entry.
type Reason string

const (
	ReasonMissingGroup Reason = "missing_group"
	ReasonMissingBase  Reason = "missing_base_layer"
	ReasonInk          Reason = "ink_unavailable"
	ReasonBadPath      Reason = "bad_png_path"
	ReasonMissingPNG   Reason = "missing_png"
	ReasonLoad         Reason = "selection_load_failed"
	ReasonAlign        Reason = "align_failed"
	ReasonCreate       Reason = "create_failed"
	ReasonFill         Reason = "fill_failed"
)

// Summary reports the outcome of an import pass.
type Summary struct {
	// Total is the number of entries in the trap manifest.
	Total    int
	Imported int
	Skipped  int
	Reasons  map[Reason]int
	// Layers lists the created trap layers as slash-joined paths.
	Layers []string
	// Scans counts region scans run for ink sampling.
	Scans int
	// Overlays counts the debug images placed.
	Overlays int
}

func newSummary() *Summary {
	return &Summary{Reasons: make(map[Reason]int)}
}

// SortedReasons returns the skip reasons in a stable order.
func (s *Summary) SortedReasons() []Reason {
	out := make([]Reason, 0, len(s.Reasons))
	for r := range s.Reasons {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type state int

const (
	lookupSourceGroup state = iota
	lookupSourceBase
	sampleOrReuseInk
	loadTrapMask
	createTrapLayer
	copyAppearance
	fill
	done
)

func (s state) String() string {
	switch s {
	case lookupSourceGroup:
		return "LOOKUP_SOURCE_GROUP"
	case lookupSourceBase:
		return "LOOKUP_SOURCE_BASE_LAYER"
	case sampleOrReuseInk:
		return "SAMPLE_OR_REUSE_INK"
	case loadTrapMask:
		return "LOAD_TRAP_MASK"
	case createTrapLayer:
		return "CREATE_TRAP_LAYER"
	case copyAppearance:
		return "COPY_APPEARANCE"
	case fill:
		return "FILL"
	default:
		return "DONE"
	}
}

// skip ends an entry early.
type skip struct {
	reason Reason
	err    error
}

func (s *skip) Error() string { return fmt.Sprintf("%s: %v", s.reason, s.err) }

func (s *skip) Unwrap() error { return s.err }

// entry carries one trap through the state machine.
type entry struct {
	trap  manifest.Trap
	group *artwork.Layer
	base  *artwork.Layer
	ink   color.NRGBA
	mask  *region.Mask
	layer *artwork.Layer
}

// Reconstructor turns trap manifest entries into trap layers.
type Reconstructor struct {
	ed     host.Editor
	groups *groups.Manager
	ink    *sampling.InkSampler
	logger *slog.Logger
}

// NewReconstructor returns a Reconstructor. The ink sampler's cache decides
// how often each plate is sampled, so one sampler should serve one pass.
func NewReconstructor(ed host.Editor, gm *groups.Manager, ink *sampling.InkSampler, logger *slog.Logger) *Reconstructor {
	return &Reconstructor{ed: ed, groups: gm, ink: ink, logger: logging.NewComponentLogger(logger, "reimport")}
}

// Import reads traps.json from jobDir and rebuilds every trap layer of doc.
// Trap layers from earlier imports are removed first, so importing twice
// yields the same layers. Per-entry failures are counted, never returned.
func (r *Reconstructor) Import(doc *artwork.Document, jobDir string) (*Summary, error) {
	traps, err := manifest.ReadTraps(jobDir)
	if err != nil {
		return nil, err
	}
	sum := newSummary()
	sum.Total = len(traps.Traps)
	if sum.Total == 0 {
		r.logger.Warn("no traps found", slog.String("job_dir", jobDir))
		return sum, nil
	}

	plates, err := export.DiscoverPlates(doc)
	if err != nil {
		return nil, err
	}

	defer host.Scope(r.ed)()
	if err := r.ed.SetActiveDocument(doc); err != nil {
		return nil, err
	}

	r.groups.EnsurePlateGroups(doc, plates.Colors)
	r.groups.RemoveTraps(doc)

	for i, t := range traps.Traps {
		e := &entry{trap: t}
		log := r.logger.With(slog.Int("trap", i+1), slog.String("source", t.Source), slog.String("target", t.Target))
		log.Info("importing trap")

		if err := r.run(doc, jobDir, e, log); err != nil {
			var sk *skip
			if !errors.As(err, &sk) {
				sk = &skip{reason: ReasonCreate, err: err}
			}
			sum.Skipped++
			sum.Reasons[sk.reason]++
			log.Warn("trap skipped", slog.String(logging.FieldReason, string(sk.reason)), slog.Any("error", sk.err))
			r.ed.Deselect()
			continue
		}
		sum.Imported++
		sum.Layers = append(sum.Layers, e.layer.Path())
		log.Info("trap imported", slog.String(logging.FieldLayer, e.layer.Path()))
	}

	r.logger.Info("import summary", slog.Int("imported", sum.Imported), slog.Int("skipped", sum.Skipped))
	for _, reason := range sum.SortedReasons() {
		r.logger.Info("skipped entries", slog.String(logging.FieldReason, string(reason)), slog.Int("count", sum.Reasons[reason]))
	}
	return sum, nil
}

func (r *Reconstructor) run(doc *artwork.Document, jobDir string, e *entry, log *slog.Logger) error {
	for st := lookupSourceGroup; st != done; {
		next, err := r.step(st, doc, jobDir, e)
		if err != nil {
			return err
		}
		log.Debug("trap state", slog.String("state", st.String()))
		st = next
	}
	return nil
}

func (r *Reconstructor) step(st state, doc *artwork.Document, jobDir string, e *entry) (state, error) {
	switch st {
	case lookupSourceGroup:
		g, err := r.groups.FindGroup(doc, e.trap.Source)
		if err != nil {
			return st, &skip{ReasonMissingGroup, err}
		}
		e.group = g
		return lookupSourceBase, nil

	case lookupSourceBase:
		base, err := r.groups.FindBase(e.group, e.trap.Source)
		if err != nil {
			return st, &skip{ReasonMissingBase, err}
		}
		e.base = base
		return sampleOrReuseInk, nil

	case sampleOrReuseInk:
		ink, err := r.ink.Ink(doc, e.base)
		if err != nil {
			return st, &skip{ReasonInk, err}
		}
		e.ink = ink
		return loadTrapMask, nil

	case loadTrapMask:
		path, err := manifest.ResolvePNG(jobDir, e.trap.PNG)
		if err != nil {
			return st, &skip{ReasonBadPath, err}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return st, &skip{ReasonMissingPNG, err}
		}
		m, err := r.loadRegion(doc, path)
		if err != nil {
			if errors.Is(err, align.ErrNoContent) {
				return st, &skip{ReasonAlign, err}
			}
			return st, &skip{ReasonLoad, err}
		}
		e.mask = m
		return createTrapLayer, nil

	case createTrapLayer:
		if err := r.ed.SetActiveLayer(e.base); err != nil {
			return st, &skip{ReasonCreate, err}
		}
		l, err := r.ed.AddLayer(groups.TrapLayerName(e.trap.Source, e.trap.Target))
		if err != nil {
			return st, &skip{ReasonCreate, err}
		}
		e.layer = l
		return copyAppearance, nil

	case copyAppearance:
		r.copyAppearance(e.layer, e.base)
		return fill, nil

	case fill:
		r.ed.SetSelection(e.mask)
		r.ed.SetForeground(e.ink)
		err := r.ed.Fill()
		r.ed.Deselect()
		if err != nil {
			return st, &skip{ReasonFill, err}
		}
		return done, nil
	}
	return done, nil
}

// loadRegion opens a trap image, carries it into doc and returns its
// region at the coordinates it had in the file.
func (r *Reconstructor) loadRegion(doc *artwork.Document, path string) (*region.Mask, error) {
	trapDoc, err := r.ed.OpenImage(path)
	if err != nil {
		return nil, err
	}
	src, err := r.copyContent(trapDoc)
	r.ed.Close(trapDoc)
	if err != nil {
		return nil, err
	}

	if err := r.ed.SetActiveDocument(doc); err != nil {
		return nil, err
	}
	pasted, err := r.ed.Paste()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.ed.DeleteLayer(pasted) }()

	dst, err := r.transparencyBounds(pasted)
	if err != nil {
		return nil, err
	}
	if _, _, err := align.Restore(r.ed, pasted, src.Bounds(), dst); err != nil {
		return nil, err
	}
	if err := r.ed.SelectTransparency(pasted); err != nil {
		return nil, err
	}
	m, ok := r.ed.Selection()
	if !ok {
		return nil, ErrEmptyTrap
	}
	r.ed.Deselect()
	return m, nil
}

// copyContent selects the visible pixels of the only layer of d, copies
// them and returns the selected region.
func (r *Reconstructor) copyContent(d *artwork.Document) (*region.Mask, error) {
	if len(d.Layers) == 0 {
		return nil, ErrEmptyTrap
	}
	layer := d.Layers[0]
	if err := r.ed.SetActiveLayer(layer); err != nil {
		return nil, err
	}
	if err := r.ed.SelectTransparency(layer); err != nil {
		return nil, err
	}
	src, ok := r.ed.Selection()
	if !ok {
		return nil, ErrEmptyTrap
	}
	r.ed.SelectAll()
	if err := r.ed.Copy(); err != nil {
		return nil, err
	}
	return src, nil
}

func (r *Reconstructor) transparencyBounds(l *artwork.Layer) (image.Rectangle, error) {
	r.ed.Deselect()
	if err := r.ed.SelectTransparency(l); err != nil {
		return image.Rectangle{}, err
	}
	m, ok := r.ed.Selection()
	r.ed.Deselect()
	if !ok {
		return image.Rectangle{}, ErrEmptyTrap
	}
	return m.Bounds(), nil
}

// copyAppearance copies blend mode, opacity, fill opacity and visibility
// from src to dst. Values the destination cannot take are logged and left
// at their defaults.
func (r *Reconstructor) copyAppearance(dst, src *artwork.Layer) {
	for _, attr := range appearanceAttrs {
		if err := attr.apply(dst, src); err != nil {
			r.logger.Warn("appearance attribute not copied",
				slog.String(logging.FieldLayer, dst.Name),
				slog.String("attribute", attr.name),
				slog.Any("error", err))
		}
	}
}
