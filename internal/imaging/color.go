package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// RGBAColor represents an RGBA color with 8-bit components including alpha.
//
// The alpha component represents opacity:
//   - 0 = fully transparent
//   - 255 = fully opaque
type RGBAColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
	A uint8 `json:"a"` // Alpha/opacity component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in multiple representations.
//
// Ink colors are logged and reported in this form so an operator can compare
// them against the separations in the artwork.
type ColorResult struct {
	Hex  string    `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGB  RGBColor  `json:"rgb"`  // RGB components
	RGBA RGBAColor `json:"rgba"` // RGBA components with alpha
	HSL  HSLColor  `json:"hsl"`  // HSL representation
}

// Describe converts a color into its ColorResult representations.
//
// The color is first converted to non-premultiplied 8-bit form, so a
// half-transparent red reports R=255 with A=128 rather than R=128.
func Describe(c color.Color) ColorResult {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	cf := colorful.Color{R: float64(n.R) / 255, G: float64(n.G) / 255, B: float64(n.B) / 255}
	h, s, l := cf.Hsl()
	if math.IsNaN(h) {
		h = 0
	}

	return ColorResult{
		Hex:  strings.ToUpper(cf.Hex()),
		RGB:  RGBColor{R: n.R, G: n.G, B: n.B},
		RGBA: RGBAColor{R: n.R, G: n.G, B: n.B, A: n.A},
		HSL:  HSLColor{H: int(h), S: int(s * 100), L: int(l * 100)},
	}
}

// SampleColor extracts the non-premultiplied color at a pixel coordinate.
//
// Returns an error if (x, y) is outside the image bounds.
func SampleColor(img image.Image, x, y int) (color.NRGBA, error) {
	bounds := img.Bounds()
	if !(image.Point{X: x, Y: y}).In(bounds) {
		return color.NRGBA{}, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA), nil
}
