// Package align restores the position of raster content after it crosses
// document boundaries. Pasting into another document recenters the pixels;
// comparing the content bounds before and after the move gives the offset
// that puts them back on their original coordinates.
package align

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/host"
)

// ErrNoContent is returned when either bounding box is empty. No position
// is guessed in that case.
var ErrNoContent = errors.New("no content to align")

// Offset returns the translation that moves content whose bounds are
// currently dst back to src. Only the top-left corners are compared.
func Offset(src, dst image.Rectangle) (dx, dy int, err error) {
	if src.Empty() || dst.Empty() {
		return 0, 0, ErrNoContent
	}
	return src.Min.X - dst.Min.X, src.Min.Y - dst.Min.Y, nil
}

// Restore translates layer l so content currently at dst lands at src.
// A zero offset leaves the layer untouched.
func Restore(ed host.Layers, l *artwork.Layer, src, dst image.Rectangle) (dx, dy int, err error) {
	dx, dy, err = Offset(src, dst)
	if err != nil {
		return 0, 0, fmt.Errorf("align %q: %w", l.Name, err)
	}
	if dx == 0 && dy == 0 {
		return 0, 0, nil
	}
	if err := ed.TranslateLayer(l, dx, dy); err != nil {
		return 0, 0, fmt.Errorf("align %q by (%d,%d): %w", l.Name, dx, dy, err)
	}
	return dx, dy, nil
}
