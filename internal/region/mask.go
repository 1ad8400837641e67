// Package region models shape regions: point sets in canvas pixel coordinates.
//
// A Mask is the materialized form of a selection. It is always canvas-sized, so
// two masks taken from the same document can be combined pixel for pixel and a
// mask written to disk keeps the canvas as its fixed reference frame.
//
// # Coordinate System
//
// Coordinates are 0-based with the origin at the top-left corner of the canvas.
// Bounding boxes use the image.Rectangle convention: Min is inclusive, Max is
// exclusive.
package region

import (
	"image"
	"image/color"
	"image/draw"
)

// inside is the coverage value stored for pixels that belong to the region.
const inside = 0xFF

// Mask is a binary point set over a fixed canvas rectangle.
//
// The zero value and a nil *Mask are both valid empty regions.
type Mask struct {
	pix *image.Alpha
}

// New returns an empty mask covering the canvas rectangle.
func New(canvas image.Rectangle) *Mask {
	return &Mask{pix: image.NewAlpha(canvas)}
}

// FromRect returns a mask over canvas whose inside is r clipped to the canvas.
func FromRect(canvas, r image.Rectangle) *Mask {
	m := New(canvas)
	draw.Draw(m.pix, r.Intersect(canvas), image.Opaque, image.Point{}, draw.Src)
	return m
}

// FromAlpha derives a region from the alpha channel of img: any pixel with
// non-zero alpha is inside. The mask canvas is img.Bounds().
func FromAlpha(img image.Image) *Mask {
	b := img.Bounds()
	m := New(b)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				if row[x*4+3] != 0 {
					m.pix.SetAlpha(b.Min.X+x, y, color.Alpha{A: inside})
				}
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
					m.pix.SetAlpha(x, y, color.Alpha{A: inside})
				}
			}
		}
	}
	return m
}

// FromCoverage derives a region from a coverage image such as a raster layer
// mask: pixels whose gray level (or alpha, for alpha images) exceeds threshold
// are inside.
func FromCoverage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := New(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var level uint8
			switch src := img.(type) {
			case *image.Alpha:
				level = src.AlphaAt(x, y).A
			default:
				level = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			}
			if level > threshold {
				m.pix.SetAlpha(x, y, color.Alpha{A: inside})
			}
		}
	}
	return m
}

// Canvas returns the rectangle the mask is defined over.
func (m *Mask) Canvas() image.Rectangle {
	if m == nil || m.pix == nil {
		return image.Rectangle{}
	}
	return m.pix.Rect
}

// Contains reports whether (x, y) is inside the region.
func (m *Mask) Contains(x, y int) bool {
	if m == nil || m.pix == nil {
		return false
	}
	if !(image.Point{X: x, Y: y}).In(m.pix.Rect) {
		return false
	}
	return m.pix.AlphaAt(x, y).A != 0
}

// Set marks (x, y) as inside or outside. Points off the canvas are ignored.
func (m *Mask) Set(x, y int, in bool) {
	if m == nil || m.pix == nil {
		return
	}
	var a uint8
	if in {
		a = inside
	}
	m.pix.SetAlpha(x, y, color.Alpha{A: a})
}

// Bounds returns the tight bounding box of the inside pixels. An empty region
// returns the zero rectangle.
func (m *Mask) Bounds() image.Rectangle {
	if m == nil || m.pix == nil {
		return image.Rectangle{}
	}
	r := m.pix.Rect
	minX, minY := r.Max.X, r.Max.Y
	maxX, maxY := r.Min.X-1, r.Min.Y-1
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.pix.Pix[m.pix.PixOffset(r.Min.X, y):]
		for i := 0; i < r.Dx(); i++ {
			if row[i] == 0 {
				continue
			}
			x := r.Min.X + i
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Empty reports whether the region has no inside pixels.
func (m *Mask) Empty() bool {
	if m == nil || m.pix == nil {
		return true
	}
	for _, a := range m.pix.Pix {
		if a != 0 {
			return false
		}
	}
	return true
}

// Area returns the number of inside pixels.
func (m *Mask) Area() int {
	if m == nil || m.pix == nil {
		return 0
	}
	n := 0
	for _, a := range m.pix.Pix {
		if a != 0 {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the mask.
func (m *Mask) Clone() *Mask {
	if m == nil || m.pix == nil {
		return &Mask{}
	}
	cp := image.NewAlpha(m.pix.Rect)
	copy(cp.Pix, m.pix.Pix)
	return &Mask{pix: cp}
}

// Intersect returns a new mask, over m's canvas, holding the pixels inside
// both m and other.
func (m *Mask) Intersect(other *Mask) *Mask {
	out := New(m.Canvas())
	r := m.Canvas()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Contains(x, y) && other.Contains(x, y) {
				out.pix.SetAlpha(x, y, color.Alpha{A: inside})
			}
		}
	}
	return out
}

// Translate returns a new mask over the same canvas with every inside pixel
// moved by (dx, dy). Pixels moved off the canvas are dropped.
func (m *Mask) Translate(dx, dy int) *Mask {
	out := New(m.Canvas())
	if m.Empty() {
		return out
	}
	r := m.Canvas()
	d := image.Pt(dx, dy)
	dst := r.Add(d).Intersect(r)
	draw.Draw(out.pix, dst, m.pix, dst.Min.Sub(d), draw.Src)
	return out
}

// Alpha exposes the coverage image. Callers must not modify it.
func (m *Mask) Alpha() *image.Alpha {
	if m == nil || m.pix == nil {
		return image.NewAlpha(image.Rectangle{})
	}
	return m.pix
}

// Image renders the region as an NRGBA image: inside pixels take c at full
// opacity, outside pixels are fully transparent.
func (m *Mask) Image(c color.Color) *image.NRGBA {
	r := m.Canvas()
	out := image.NewNRGBA(r)
	fill := color.NRGBAModel.Convert(c).(color.NRGBA)
	fill.A = 0xFF
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Contains(x, y) {
				out.SetNRGBA(x, y, fill)
			}
		}
	}
	return out
}

// Equal reports whether a and b have the same canvas and the same inside pixels.
func Equal(a, b *Mask) bool {
	if a.Canvas() != b.Canvas() {
		return false
	}
	r := a.Canvas()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if a.Contains(x, y) != b.Contains(x, y) {
				return false
			}
		}
	}
	return true
}
