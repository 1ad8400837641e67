// Package shape resolves the printed shape of a layer as a region.
//
// Layers describe their shape in different ways: plain pixel layers through
// their transparency, shape layers through a vector outline, and masked
// layers through a raster layer mask. A Selector tries each Strategy in a
// fixed order and keeps the first non-empty region.
package shape

import (
	"errors"
	"log/slog"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/region"
)

// Kind tags the strategy that produced a region.
type Kind string

const (
	Transparency Kind = "TRANSPARENCY"
	VectorMask   Kind = "VECTOR_MASK"
	LayerMask    Kind = "LAYER_MASK"
)

// Strategy derives a region for a layer. A miss is reported as ok=false
// with a nil error; errors are reserved for unexpected host failures.
type Strategy interface {
	Kind() Kind
	Attempt(ed host.Editor, doc *artwork.Document, layer *artwork.Layer) (m *region.Mask, ok bool, err error)
}

// Result is a resolved shape.
type Result struct {
	Mask *region.Mask
	Kind Kind
}

// Selector tries strategies in order.
type Selector struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewSelector returns a selector using the default order: transparency,
// vector mask, layer mask.
func NewSelector(logger *slog.Logger) *Selector {
	return NewSelectorWith(logger, transparency{}, vectorMask{}, layerMask{})
}

// NewSelectorWith returns a selector trying the given strategies in order.
func NewSelectorWith(logger *slog.Logger, strategies ...Strategy) *Selector {
	return &Selector{strategies: strategies, logger: logging.NewComponentLogger(logger, "shape")}
}

// Select resolves the shape of layer in doc, which must be the active
// document of ed. On success the region is also left as the live selection.
// On failure the selection is cleared and ok is false.
func (s *Selector) Select(ed host.Editor, doc *artwork.Document, layer *artwork.Layer) (Result, bool) {
	for _, strategy := range s.strategies {
		ed.Deselect()
		m, ok, err := strategy.Attempt(ed, doc, layer)
		if err != nil {
			s.logger.Warn("shape strategy failed",
				slog.String(logging.FieldLayer, layer.Name),
				slog.String(logging.FieldStrategy, string(strategy.Kind())),
				slog.Any("error", err))
			continue
		}
		if !ok || m.Empty() {
			s.logger.Debug("shape strategy missed",
				slog.String(logging.FieldLayer, layer.Name),
				slog.String(logging.FieldStrategy, string(strategy.Kind())))
			continue
		}
		ed.SetSelection(m)
		s.logger.Debug("shape selected",
			slog.String(logging.FieldLayer, layer.Name),
			slog.String(logging.FieldStrategy, string(strategy.Kind())),
			slog.String("bounds", m.Bounds().String()))
		return Result{Mask: m, Kind: strategy.Kind()}, true
	}
	ed.Deselect()
	s.logger.Warn("no shape found for layer", slog.String(logging.FieldLayer, layer.Name))
	return Result{}, false
}

type transparency struct{}

func (transparency) Kind() Kind { return Transparency }

func (transparency) Attempt(ed host.Editor, _ *artwork.Document, layer *artwork.Layer) (*region.Mask, bool, error) {
	if !layer.IsPixel() {
		return nil, false, nil
	}
	return fromSelection(ed, ed.SelectTransparency(layer))
}

type vectorMask struct{}

func (vectorMask) Kind() Kind { return VectorMask }

func (vectorMask) Attempt(ed host.Editor, _ *artwork.Document, layer *artwork.Layer) (*region.Mask, bool, error) {
	return fromSelection(ed, ed.SelectVectorMask(layer))
}

type layerMask struct{}

func (layerMask) Kind() Kind { return LayerMask }

func (layerMask) Attempt(ed host.Editor, _ *artwork.Document, layer *artwork.Layer) (*region.Mask, bool, error) {
	return fromSelection(ed, ed.SelectLayerMask(layer))
}

func fromSelection(ed host.Editor, err error) (*region.Mask, bool, error) {
	if errors.Is(err, host.ErrNoMask) || errors.Is(err, host.ErrNotPixelLayer) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, ok := ed.Selection()
	return m, ok, nil
}
