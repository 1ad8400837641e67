package sampling

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/host"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/shape"
)

// ErrNoShape is returned when no region can be resolved for the plate.
var ErrNoShape = errors.New("no shape for plate")

// InkSampler samples the printed color of plates and caches it by plate
// name for the lifetime of the sampler, normally one import pass. Failures
// are cached too: a plate is sampled at most once.
type InkSampler struct {
	ed       host.Editor
	selector *shape.Selector
	scanner  *Scanner
	cache    map[string]color.NRGBA
	failed   map[string]error
	passes   int
	scans    int
	logger   *slog.Logger
}

// NewInkSampler returns a sampler with an empty cache.
func NewInkSampler(ed host.Editor, selector *shape.Selector, scanner *Scanner, logger *slog.Logger) *InkSampler {
	return &InkSampler{
		ed:       ed,
		selector: selector,
		scanner:  scanner,
		cache:    make(map[string]color.NRGBA),
		failed:   make(map[string]error),
		logger:   logging.NewComponentLogger(logger, "ink"),
	}
}

// Ink returns the color of plate as printed alone. The plate is soloed, its
// shape resolved and scanned for an interior point, and the composite color
// at that point read back. Visibility, active layer and selection are
// restored before returning. Cached results, including earlier failures,
// skip all of that.
func (s *InkSampler) Ink(doc *artwork.Document, plate *artwork.Layer) (color.NRGBA, error) {
	if c, ok := s.cache[plate.Name]; ok {
		return c, nil
	}
	if err, ok := s.failed[plate.Name]; ok {
		return color.NRGBA{}, err
	}

	s.passes++
	c, err := s.sample(doc, plate)
	if err != nil {
		s.failed[plate.Name] = err
		return color.NRGBA{}, err
	}
	s.cache[plate.Name] = c
	return c, nil
}

func (s *InkSampler) sample(doc *artwork.Document, plate *artwork.Layer) (color.NRGBA, error) {
	defer host.Scope(s.ed)()
	if err := s.ed.SetActiveDocument(doc); err != nil {
		return color.NRGBA{}, err
	}
	defer host.Solo(doc, plate)()
	if err := s.ed.SetActiveLayer(plate); err != nil {
		return color.NRGBA{}, err
	}

	res, ok := s.selector.Select(s.ed, doc, plate)
	if !ok {
		return color.NRGBA{}, fmt.Errorf("sample %q: %w", plate.Name, ErrNoShape)
	}

	s.scans++
	pt, err := s.scanner.Find(s.ed, res.Mask)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("sample %q: %w", plate.Name, err)
	}
	c, err := s.ed.SampleColor(pt.X, pt.Y)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("sample %q at %v: %w", plate.Name, pt, err)
	}
	// Inks are opaque; coverage comes from the trap mask.
	c.A = 0xFF

	s.logger.Info("ink sampled",
		slog.String(logging.FieldPlate, plate.Name),
		slog.String(logging.FieldStrategy, string(res.Kind)),
		slog.String("point", pt.String()),
		slog.String("color", pimaging.Describe(c).Hex))
	return c, nil
}

// PassCount reports how many plates have gone through a sampling pass,
// successful or not.
func (s *InkSampler) PassCount() int {
	return s.passes
}

// ScanCount reports how many region scans have run.
func (s *InkSampler) ScanCount() int {
	return s.scans
}

// Cached reports the cached ink of a plate, if any.
func (s *InkSampler) Cached(plate string) (color.NRGBA, bool) {
	c, ok := s.cache[plate]
	return c, ok
}
