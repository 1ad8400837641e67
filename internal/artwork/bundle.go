package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ironsheep/smart-trapper/internal/imaging"
)

// ManifestName is the bundle manifest file inside an artwork directory.
const ManifestName = "artwork.toml"

const defaultResolution = 72

// ErrNotBundle is returned when a directory holds no artwork manifest.
var ErrNotBundle = errors.New("not an artwork bundle")

type bundleFile struct {
	Name       string        `toml:"name"`
	Width      int           `toml:"width"`
	Height     int           `toml:"height"`
	Resolution float64       `toml:"resolution"`
	Layers     []bundleLayer `toml:"layers"`
}

type bundleLayer struct {
	Name        string        `toml:"name"`
	Group       bool          `toml:"group,omitempty"`
	Image       string        `toml:"image,omitempty"`
	BlendMode   string        `toml:"blend_mode,omitempty"`
	Opacity     *float64      `toml:"opacity,omitempty"`
	FillOpacity *float64      `toml:"fill_opacity,omitempty"`
	Visible     *bool         `toml:"visible,omitempty"`
	Mask        string        `toml:"mask,omitempty"`
	VectorMask  [][][]float64 `toml:"vector_mask,omitempty"`
	Layers      []bundleLayer `toml:"layers,omitempty"`
}

// Load reads an artwork bundle from dir.
func Load(dir string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotBundle)
		}
		return nil, fmt.Errorf("read artwork manifest: %w", err)
	}

	var bf bundleFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("parse artwork manifest: %w", err)
	}
	if bf.Width <= 0 || bf.Height <= 0 {
		return nil, fmt.Errorf("artwork manifest: invalid canvas %dx%d", bf.Width, bf.Height)
	}
	if bf.Resolution <= 0 {
		bf.Resolution = defaultResolution
	}
	if strings.TrimSpace(bf.Name) == "" {
		bf.Name = filepath.Base(dir)
	}

	doc := NewDocument(bf.Name, bf.Width, bf.Height, bf.Resolution)
	doc.Dir = dir
	layers, err := loadLayers(dir, doc.Canvas(), nil, bf.Layers)
	if err != nil {
		return nil, err
	}
	doc.Layers = layers
	return doc, nil
}

func loadLayers(dir string, canvas image.Rectangle, parent *Layer, entries []bundleLayer) ([]*Layer, error) {
	out := make([]*Layer, 0, len(entries))
	for _, e := range entries {
		l, err := loadLayer(dir, canvas, e)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", e.Name, err)
		}
		l.Parent = parent
		if l.Group {
			if l.Children, err = loadLayers(dir, canvas, l, e.Layers); err != nil {
				return nil, err
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func loadLayer(dir string, canvas image.Rectangle, e bundleLayer) (*Layer, error) {
	var l *Layer
	if e.Group {
		if e.Image != "" {
			return nil, errors.New("group cannot carry an image")
		}
		l = NewGroup(e.Name)
	} else {
		l = NewPixelLayer(e.Name, canvas)
		if len(e.Layers) > 0 {
			return nil, errors.New("pixel layer cannot have children")
		}
		if e.Image != "" {
			img, err := imaging.Open(filepath.Join(dir, e.Image))
			if err != nil {
				return nil, err
			}
			l.Pixels = fitCanvas(img, canvas)
		}
	}

	mode, err := ParseBlendMode(e.BlendMode)
	if err != nil {
		return nil, err
	}
	l.BlendMode = mode
	if e.Opacity != nil {
		l.Opacity = clampPercent(*e.Opacity)
	}
	if e.FillOpacity != nil {
		l.FillOpacity = clampPercent(*e.FillOpacity)
	}
	if e.Visible != nil {
		l.Visible = *e.Visible
	}

	if e.Mask != "" {
		img, err := imaging.Open(filepath.Join(dir, e.Mask))
		if err != nil {
			return nil, err
		}
		l.Mask = maskFromImage(fitCanvas(img, canvas))
	}

	for i, poly := range e.VectorMask {
		pts := make([]Point, 0, len(poly))
		for _, p := range poly {
			if len(p) != 2 {
				return nil, fmt.Errorf("vector_mask polygon %d: vertex needs 2 coordinates, got %d", i, len(p))
			}
			pts = append(pts, Point{X: p[0], Y: p[1]})
		}
		if len(pts) < 3 {
			return nil, fmt.Errorf("vector_mask polygon %d: need at least 3 vertices", i)
		}
		l.VectorMask = append(l.VectorMask, pts)
	}
	return l, nil
}

// fitCanvas returns img as a canvas-sized NRGBA anchored at the canvas origin.
func fitCanvas(img *image.NRGBA, canvas image.Rectangle) *image.NRGBA {
	if img.Bounds() == canvas {
		return img
	}
	out := image.NewNRGBA(canvas)
	draw.Draw(out, canvas, img, img.Bounds().Min, draw.Src)
	return out
}

// maskFromImage converts a gray (or gray with alpha) mask image to coverage.
func maskFromImage(img *image.NRGBA) *image.Alpha {
	b := img.Bounds()
	out := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			lum := color.GrayModel.Convert(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}).(color.Gray).Y
			out.SetAlpha(x, y, color.Alpha{A: uint8(uint16(lum) * uint16(c.A) / 0xFF)})
		}
	}
	return out
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Save writes doc as a bundle into dir, replacing dir/artwork.toml and the
// dir/layers directory.
func Save(doc *Document, dir string) error {
	layersDir := filepath.Join(dir, "layers")
	if err := os.RemoveAll(layersDir); err != nil {
		return fmt.Errorf("clear layer directory: %w", err)
	}

	counter := 0
	entries, err := saveLayers(dir, doc.Layers, &counter)
	if err != nil {
		return err
	}

	bf := bundleFile{
		Name:       doc.Name,
		Width:      doc.Width,
		Height:     doc.Height,
		Resolution: doc.Resolution,
		Layers:     entries,
	}
	data, err := toml.Marshal(bf)
	if err != nil {
		return fmt.Errorf("encode artwork manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("write artwork manifest: %w", err)
	}
	doc.Dir = dir
	return nil
}

func saveLayers(dir string, layers []*Layer, counter *int) ([]bundleLayer, error) {
	out := make([]bundleLayer, 0, len(layers))
	for _, l := range layers {
		n := *counter
		*counter++
		opacity, fill, visible := l.Opacity, l.FillOpacity, l.Visible
		e := bundleLayer{
			Name:        l.Name,
			Group:       l.Group,
			BlendMode:   string(l.BlendMode),
			Opacity:     &opacity,
			FillOpacity: &fill,
			Visible:     &visible,
		}
		base := fmt.Sprintf("%03d_%s", n, SanitizeName(l.Name))
		if l.IsPixel() && l.Pixels != nil {
			e.Image = filepath.ToSlash(filepath.Join("layers", base+".png"))
			if err := imaging.Save(l.Pixels, filepath.Join(dir, e.Image)); err != nil {
				return nil, err
			}
		}
		if l.Mask != nil {
			e.Mask = filepath.ToSlash(filepath.Join("layers", base+"_mask.png"))
			if err := imaging.Save(grayFromMask(l.Mask), filepath.Join(dir, e.Mask)); err != nil {
				return nil, err
			}
		}
		for _, poly := range l.VectorMask {
			pts := make([][]float64, 0, len(poly))
			for _, p := range poly {
				pts = append(pts, []float64{p.X, p.Y})
			}
			e.VectorMask = append(e.VectorMask, pts)
		}
		if l.Group {
			children, err := saveLayers(dir, l.Children, counter)
			if err != nil {
				return nil, err
			}
			e.Layers = children
		}
		out = append(out, e)
	}
	return out, nil
}

func grayFromMask(m *image.Alpha) *image.Gray {
	out := image.NewGray(m.Rect)
	copy(out.Pix, m.Pix)
	return out
}
