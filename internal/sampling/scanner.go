// Package sampling finds the ink color of a plate.
//
// The host only answers region queries through selections, so finding a
// point inside an arbitrary region is done by probing: a one-pixel
// selection is intersected with a stored copy of the region and the result
// tells whether the point is inside. Candidates are scanned on a grid that
// gets finer until a hit is found.
package sampling

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/region"
)

// ErrNoInteriorPoint is returned when no probe lands inside the region.
var ErrNoInteriorPoint = errors.New("no interior point found")

// DefaultSteps is the coarse-to-fine grid used when none is configured.
var DefaultSteps = []int{25, 10, 4}

const scanChannel = "__smart_trapper_scan__"

// Scanner locates a point inside a region through host probes.
type Scanner struct {
	steps  []int
	logger *slog.Logger
}

// NewScanner returns a scanner using the given grid steps, coarse first.
// A final one-pixel pass over the full bounding box always follows them.
func NewScanner(steps []int, logger *slog.Logger) *Scanner {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	return &Scanner{
		steps:  append([]int(nil), steps...),
		logger: logging.NewComponentLogger(logger, "scanner"),
	}
}

// Find returns the first point of m hit by the scan, in row-major order
// from the top-left corner of its bounding box. The temporary channel used
// for probing is removed on every path and m is left as the live selection.
func (s *Scanner) Find(ed host.Selections, m *region.Mask) (image.Point, error) {
	box := m.Bounds()
	if box.Empty() {
		return image.Point{}, ErrNoInteriorPoint
	}

	ed.SetSelection(m)
	if err := ed.StoreChannel(scanChannel); err != nil {
		return image.Point{}, fmt.Errorf("store scan channel: %w", err)
	}
	defer func() {
		ed.DeleteChannel(scanChannel)
		ed.SetSelection(m)
	}()

	probes := 0
	probe := func(p image.Point) (bool, error) {
		probes++
		ed.SelectRect(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		if err := ed.IntersectChannel(scanChannel); err != nil {
			return false, err
		}
		_, inside := ed.Selection()
		return inside, nil
	}

	for _, step := range s.steps {
		if step < 1 {
			continue
		}
		p, ok, err := scanGrid(insetBox(box), step, probe)
		if err != nil {
			return image.Point{}, fmt.Errorf("probe: %w", err)
		}
		if ok {
			s.logger.Debug("interior point found", slog.Int("step", step), slog.Int("probes", probes), slog.String("point", p.String()))
			return p, nil
		}
	}

	p, ok, err := scanGrid(box, 1, probe)
	if err != nil {
		return image.Point{}, fmt.Errorf("probe: %w", err)
	}
	if !ok {
		return image.Point{}, ErrNoInteriorPoint
	}
	s.logger.Debug("interior point found", slog.Int("step", 1), slog.Int("probes", probes), slog.String("point", p.String()))
	return p, nil
}

// insetBox shrinks the box by one pixel on each side of an axis that is at
// least three pixels long, keeping coarse probes off antialiased rims.
func insetBox(b image.Rectangle) image.Rectangle {
	if b.Dx() >= 3 {
		b.Min.X++
		b.Max.X--
	}
	if b.Dy() >= 3 {
		b.Min.Y++
		b.Max.Y--
	}
	return b
}

func scanGrid(b image.Rectangle, step int, probe func(image.Point) (bool, error)) (image.Point, bool, error) {
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			p := image.Pt(x, y)
			inside, err := probe(p)
			if err != nil {
				return image.Point{}, false, err
			}
			if inside {
				return p, true, nil
			}
		}
	}
	return image.Point{}, false, nil
}
