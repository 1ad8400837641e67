package reimport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/groups"
	"github.com/ironsheep/smart-trapper/internal/host"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
)

var (
	redInk  = color.NRGBA{R: 220, G: 30, B: 40, A: 255}
	trapBox = image.Rect(50, 20, 55, 50)
)

func paint(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// fixture builds KEY / Red / PAPER on a 100x80 canvas. Red overlaps the
// key; the engine's trap spreads Red five pixels under the key edge.
func fixture(t *testing.T) (*host.Session, *artwork.Document, string) {
	t.Helper()
	doc := artwork.NewDocument("poster.psd", 100, 80, 300)
	key := artwork.NewPixelLayer("KEY", doc.Canvas())
	paint(key.Pixels, image.Rect(50, 20, 90, 60), color.NRGBA{A: 255})
	red := artwork.NewPixelLayer("Red", doc.Canvas())
	paint(red.Pixels, image.Rect(10, 10, 60, 50), redInk)
	red.BlendMode = artwork.BlendMultiply
	red.FillOpacity = 80
	paper := artwork.NewPixelLayer("PAPER", doc.Canvas())
	paint(paper.Pixels, doc.Canvas(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	doc.Layers = []*artwork.Layer{key, red, paper}

	s := host.NewSession(nil)
	s.Attach(doc)

	jobDir := t.TempDir()
	writeMask(t, filepath.Join(jobDir, "traps", "Red_over_KEY.png"), doc.Canvas(), trapBox)
	return s, doc, jobDir
}

func writeMask(t *testing.T, path string, canvas, box image.Rectangle) {
	t.Helper()
	img := image.NewNRGBA(canvas)
	paint(img, box, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(t, pimaging.Save(img, path))
}

func writeTraps(t *testing.T, dir string, traps ...manifest.Trap) {
	t.Helper()
	require.NoError(t, manifest.WriteTraps(dir, &manifest.Traps{Traps: traps}))
}

func trapLayers(doc *artwork.Document) []*artwork.Layer {
	var out []*artwork.Layer
	doc.Walk(func(l *artwork.Layer) bool {
		if groups.IsTrap(l) {
			out = append(out, l)
		}
		return true
	})
	return out
}

func redOverKey() manifest.Trap {
	return manifest.Trap{Source: "Red", Target: "KEY", PNG: "traps/Red_over_KEY.png"}
}

func TestImportEndToEnd(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir, redOverKey())

	sum, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Imported)
	assert.Zero(t, sum.Skipped)
	assert.Equal(t, []string{"COLOR__Red/TRAP__Red_over_KEY"}, sum.Layers)

	traps := trapLayers(doc)
	require.Len(t, traps, 1)
	trap := traps[0]

	group := doc.Layers[1]
	assert.Equal(t, "COLOR__Red", group.Name)
	require.Len(t, group.Children, 2)
	assert.Same(t, trap, group.Children[0], "trap sits directly above the base layer")
	assert.Equal(t, "Red", group.Children[1].Name)

	assert.Equal(t, artwork.BlendMultiply, trap.BlendMode)
	assert.Equal(t, 80.0, trap.FillOpacity)
	assert.Equal(t, 100.0, trap.Opacity)
	assert.True(t, trap.Visible)

	assert.Equal(t, trapBox, pimaging.OpaqueBounds(trap.Pixels))
	assert.Equal(t, redInk, trap.Pixels.NRGBAAt(trapBox.Min.X, trapBox.Min.Y))
	assert.Equal(t, redInk, trap.Pixels.NRGBAAt(trapBox.Max.X-1, trapBox.Max.Y-1))

	_, err = os.Stat(filepath.Join(jobDir, LogName))
	assert.NoError(t, err, "import log must be flushed")
}

func TestImportTwiceIsIdempotent(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir, redOverKey())

	first, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	firstPixels := append([]uint8(nil), trapLayers(doc)[0].Pixels.Pix...)

	second, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)

	assert.Equal(t, first.Layers, second.Layers)
	traps := trapLayers(doc)
	require.Len(t, traps, 1)
	assert.Equal(t, firstPixels, traps[0].Pixels.Pix)
	assert.Len(t, doc.Layers, 3)
	assert.Len(t, doc.Layers[1].Children, 2)
}

func TestSharedSourceIsSampledOnce(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir,
		redOverKey(),
		manifest.Trap{Source: "Red", Target: "PAPER", PNG: "traps/Red_over_KEY.png"},
		manifest.Trap{Source: "Red", Target: "Blue", PNG: "traps/Red_over_KEY.png"},
	)

	sum, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Imported)
	assert.Equal(t, 1, sum.Scans)
}

func TestUnknownSourceIsSkipped(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir,
		manifest.Trap{Source: "Green", Target: "KEY", PNG: "traps/Red_over_KEY.png"},
		redOverKey(),
	)

	sum, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, map[Reason]int{ReasonMissingGroup: 1}, sum.Reasons)
	assert.Len(t, trapLayers(doc), 1)
}

func TestBrokenEntriesAreSkipped(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeMask(t, filepath.Join(jobDir, "traps", "empty.png"), doc.Canvas(), image.Rectangle{})
	writeTraps(t, jobDir,
		manifest.Trap{Source: "Red", Target: "KEY", PNG: "traps/missing.png"},
		manifest.Trap{Source: "Red", Target: "KEY", PNG: "../outside.png"},
		manifest.Trap{Source: "Red", Target: "KEY", PNG: "traps/empty.png"},
		redOverKey(),
	)

	sum, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, map[Reason]int{
		ReasonMissingPNG: 1,
		ReasonBadPath:    1,
		ReasonLoad:       1,
	}, sum.Reasons)
	assert.Equal(t, []Reason{ReasonBadPath, ReasonMissingPNG, ReasonLoad}, sum.SortedReasons())
	assert.Len(t, trapLayers(doc), 1)
	_, has := s.Selection()
	assert.False(t, has, "no selection is left behind")
}

func TestNoTrapsLeavesArtworkAlone(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir)

	sum, err := NewPass(s, Options{Overlays: true}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.Equal(t, "Red", doc.Layers[1].Name, "plates are not wrapped when there is nothing to import")
}

func TestMissingTrapManifest(t *testing.T) {
	s, doc, jobDir := fixture(t)

	_, err := NewPass(s, Options{}, nil).Run(doc, jobDir)
	require.ErrorIs(t, err, manifest.ErrMissingManifest)
	data, rerr := os.ReadFile(filepath.Join(jobDir, LogName))
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "import failed")
}

func TestDebugOverlays(t *testing.T) {
	s, doc, jobDir := fixture(t)
	writeTraps(t, jobDir, redOverKey())
	writeMask(t, filepath.Join(jobDir, "DEBUG_a.png"), doc.Canvas(), image.Rect(3, 4, 13, 9))
	writeMask(t, filepath.Join(jobDir, "debug_b.png"), doc.Canvas(), image.Rect(70, 60, 80, 75))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "debug_notes.txt"), []byte("x"), 0o644))

	files, err := DebugImages(jobDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEBUG_a.png", "debug_b.png"}, files)

	sum, err := NewPass(s, Options{Overlays: true}, nil).Run(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Overlays)

	top := doc.Layers[0]
	assert.Equal(t, DebugGroup, top.Name)
	require.Len(t, top.Children, 2)
	assert.Equal(t, "DEBUG__debug_b", top.Children[0].Name)
	assert.Equal(t, "DEBUG__DEBUG_a", top.Children[1].Name)
	assert.Equal(t, image.Rect(70, 60, 80, 75), pimaging.OpaqueBounds(top.Children[0].Pixels))
	assert.Equal(t, image.Rect(3, 4, 13, 9), pimaging.OpaqueBounds(top.Children[1].Pixels))

	// A second pass reuses the group.
	n, err := NewOverlayImporter(s, nil).Import(doc, jobDir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count := 0
	for _, l := range doc.Layers {
		if l.Name == DebugGroup {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Same(t, top, doc.Layers[0])
	assert.Len(t, top.Children, 4)
}
