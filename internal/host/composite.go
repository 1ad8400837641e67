package host

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	"github.com/ironsheep/smart-trapper/internal/artwork"
)

// Flatten composites the visible layers of doc, bottom to top, onto a
// transparent canvas. Groups pass through their children scaled by the
// group's opacity. Raster and vector masks clip their layer.
func Flatten(doc *artwork.Document) *image.NRGBA {
	canvas := doc.Canvas()
	return compositeLayers(image.NewNRGBA(canvas), doc.Layers, canvas, 1)
}

func compositeLayers(dst *image.NRGBA, layers []*artwork.Layer, canvas image.Rectangle, opacity float64) *image.NRGBA {
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if !l.Visible {
			continue
		}
		op := opacity * l.Opacity / 100
		if l.Group {
			dst = compositeLayers(dst, l.Children, canvas, op)
			continue
		}
		if l.Pixels == nil || op <= 0 {
			continue
		}
		dst = blendOnto(dst, maskedPixels(l, canvas), l.BlendMode, op*l.FillOpacity/100)
	}
	return dst
}

// maskedPixels returns the layer pixels with its masks applied to alpha.
func maskedPixels(l *artwork.Layer, canvas image.Rectangle) *image.NRGBA {
	if l.Mask == nil && len(l.VectorMask) == 0 {
		return l.Pixels
	}
	var vec *image.Alpha
	if len(l.VectorMask) > 0 {
		vec = rasterizePolygons(l.VectorMask, canvas)
	}
	out := imaging.Clone(l.Pixels)
	for y := canvas.Min.Y; y < canvas.Max.Y; y++ {
		for x := canvas.Min.X; x < canvas.Max.X; x++ {
			i := out.PixOffset(x, y) + 3
			a := uint32(out.Pix[i])
			if l.Mask != nil {
				a = a * uint32(l.Mask.AlphaAt(x, y).A) / 0xFF
			}
			if vec != nil {
				a = a * uint32(vec.AlphaAt(x, y).A) / 0xFF
			}
			out.Pix[i] = uint8(a)
		}
	}
	return out
}

// blendOnto composites src over dst with the given mode and opacity in [0,1].
// Non-normal modes compute the blended color with bild and keep the source
// alpha as coverage.
func blendOnto(dst, src *image.NRGBA, mode artwork.BlendMode, opacity float64) *image.NRGBA {
	var fn func(bg, fg image.Image) *image.RGBA
	switch mode {
	case artwork.BlendMultiply:
		fn = blend.Multiply
	case artwork.BlendScreen:
		fn = blend.Screen
	case artwork.BlendOverlay:
		fn = blend.Overlay
	case artwork.BlendDarken:
		fn = blend.Darken
	case artwork.BlendLighten:
		fn = blend.Lighten
	case artwork.BlendDifference:
		fn = blend.Difference
	}
	if fn == nil {
		return imaging.Overlay(dst, src, image.Point{}, opacity)
	}

	mixed := imaging.Clone(fn(dst, src))
	for i := 3; i < len(mixed.Pix); i += 4 {
		// Where nothing lies underneath, the layer shows its own color.
		if dst.Pix[i] == 0 {
			copy(mixed.Pix[i-3:i], src.Pix[i-3:i])
		}
		mixed.Pix[i] = src.Pix[i]
	}
	return imaging.Overlay(dst, mixed, image.Point{}, opacity)
}

// rasterizePolygons fills closed polygons (non-zero winding) into a coverage
// image over canvas.
func rasterizePolygons(polys [][]artwork.Point, canvas image.Rectangle) *image.Alpha {
	z := vector.NewRasterizer(canvas.Dx(), canvas.Dy())
	z.DrawOp = draw.Src
	for _, poly := range polys {
		if len(poly) < 3 {
			continue
		}
		ox, oy := float64(canvas.Min.X), float64(canvas.Min.Y)
		z.MoveTo(float32(poly[0].X-ox), float32(poly[0].Y-oy))
		for _, p := range poly[1:] {
			z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		z.ClosePath()
	}
	out := image.NewAlpha(canvas)
	z.Draw(out, canvas, image.Opaque, image.Point{})
	return out
}
