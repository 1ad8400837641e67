package artwork

import (
	"fmt"
	"image"
	"strings"
)

// BlendMode selects how a layer composites onto the layers below it.
type BlendMode string

// Supported blend modes.
const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendDifference BlendMode = "difference"
)

var blendModes = []BlendMode{
	BlendNormal, BlendMultiply, BlendScreen, BlendOverlay, BlendDarken, BlendLighten, BlendDifference,
}

// ParseBlendMode accepts either the bundle spelling ("multiply") or the
// enum spelling used in job manifests ("BlendMode.MULTIPLY"). Empty means
// normal.
func ParseBlendMode(s string) (BlendMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "blendmode.")
	if s == "" {
		return BlendNormal, nil
	}
	for _, m := range blendModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown blend mode %q", s)
}

// Enum returns the mode in enum notation, e.g. "BlendMode.MULTIPLY".
func (m BlendMode) Enum() string {
	if m == "" {
		m = BlendNormal
	}
	return "BlendMode." + strings.ToUpper(string(m))
}

// Point is a vector mask vertex in canvas coordinates.
type Point struct {
	X, Y float64
}

// Layer is a node in the layer tree. A group holds children and no pixels;
// a pixel layer holds a canvas-sized NRGBA image.
type Layer struct {
	Name  string
	Group bool
	// Children are ordered top to bottom.
	Children []*Layer
	Parent   *Layer

	BlendMode BlendMode
	// Opacity and FillOpacity are percentages in [0, 100].
	Opacity     float64
	FillOpacity float64
	Visible     bool

	// Pixels is canvas-sized for pixel layers and nil for groups.
	Pixels *image.NRGBA
	// Mask is an optional raster layer mask; white reveals.
	Mask *image.Alpha
	// VectorMask is an optional set of closed polygons.
	VectorMask [][]Point
}

// NewPixelLayer returns a visible, fully transparent pixel layer sized to canvas.
func NewPixelLayer(name string, canvas image.Rectangle) *Layer {
	return &Layer{
		Name:        name,
		BlendMode:   BlendNormal,
		Opacity:     100,
		FillOpacity: 100,
		Visible:     true,
		Pixels:      image.NewNRGBA(canvas),
	}
}

// NewGroup returns an empty visible group.
func NewGroup(name string) *Layer {
	return &Layer{
		Name:        name,
		Group:       true,
		BlendMode:   BlendNormal,
		Opacity:     100,
		FillOpacity: 100,
		Visible:     true,
	}
}

// IsPixel reports whether l is a pixel (non-group) layer.
func (l *Layer) IsPixel() bool {
	return l != nil && !l.Group
}

// HasNonDefaultAppearance reports whether the layer deviates from normal
// blending at full opacity and fill.
func (l *Layer) HasNonDefaultAppearance() bool {
	mode := l.BlendMode
	if mode == "" {
		mode = BlendNormal
	}
	return mode != BlendNormal || l.Opacity != 100 || l.FillOpacity != 100
}

// Path returns the slash-joined names from the top level down to l.
func (l *Layer) Path() string {
	var parts []string
	for n := l; n != nil; n = n.Parent {
		parts = append([]string{n.Name}, parts...)
	}
	return strings.Join(parts, "/")
}

// TopLevel returns the top-level ancestor of l (l itself when it has no parent).
func (l *Layer) TopLevel() *Layer {
	n := l
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// SanitizeName replaces characters that are unsafe in file and layer
// names with underscores and trims surrounding whitespace.
func SanitizeName(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name))
}
