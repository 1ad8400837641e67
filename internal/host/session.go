package host

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/region"
)

// coverageThreshold is the mask level above which a pixel counts as inside
// when a graded mask is turned into a selection.
const coverageThreshold = 127

type docState struct {
	activeLayer *artwork.Layer
	selection   *region.Mask
	channels    map[string]*region.Mask
}

// Session is an in-process Editor. It is not safe for concurrent use; the
// workflow issues one operation at a time.
type Session struct {
	docs      []*artwork.Document
	state     map[*artwork.Document]*docState
	active    *artwork.Document
	fg        color.NRGBA
	clipboard *image.NRGBA
	untitled  int
	logger    *slog.Logger
}

var _ Editor = (*Session)(nil)

// NewSession returns a session with no open documents and a black
// foreground color.
func NewSession(logger *slog.Logger) *Session {
	return &Session{
		state:  make(map[*artwork.Document]*docState),
		fg:     color.NRGBA{A: 0xFF},
		logger: logging.NewComponentLogger(logger, "host"),
	}
}

func (s *Session) current() (*artwork.Document, *docState, error) {
	if s.active == nil {
		return nil, nil, ErrNoDocument
	}
	return s.active, s.state[s.active], nil
}

// Attach registers doc and makes it active. Its top layer becomes the active layer.
func (s *Session) Attach(doc *artwork.Document) {
	if _, ok := s.state[doc]; !ok {
		st := &docState{channels: make(map[string]*region.Mask)}
		if len(doc.Layers) > 0 {
			st.activeLayer = doc.Layers[0]
		}
		s.state[doc] = st
		s.docs = append(s.docs, doc)
	}
	s.active = doc
}

// OpenImage opens an image file as a single-layer document named after the file.
func (s *Session) OpenImage(path string) (*artwork.Document, error) {
	img, err := pimaging.Open(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	name := filepath.Base(path)
	doc := artwork.NewDocument(name, b.Dx(), b.Dy(), 72)
	layer := artwork.NewPixelLayer(strings.TrimSuffix(name, filepath.Ext(name)), doc.Canvas())
	draw.Draw(layer.Pixels, doc.Canvas(), img, b.Min, draw.Src)
	doc.Layers = []*artwork.Layer{layer}
	s.Attach(doc)
	s.logger.Debug("document opened", slog.String("path", path), slog.Int("width", b.Dx()), slog.Int("height", b.Dy()))
	return doc, nil
}

// NewDocument creates a transparent document with one empty layer.
func (s *Session) NewDocument(name string, width, height int, resolution float64) *artwork.Document {
	if name == "" {
		s.untitled++
		name = fmt.Sprintf("Untitled-%d", s.untitled)
	}
	doc := artwork.NewDocument(name, width, height, resolution)
	doc.Layers = []*artwork.Layer{artwork.NewPixelLayer("Layer 1", doc.Canvas())}
	s.Attach(doc)
	return doc
}

// Close forgets doc. If it was active, the most recently opened remaining
// document becomes active.
func (s *Session) Close(doc *artwork.Document) {
	if _, ok := s.state[doc]; !ok {
		return
	}
	delete(s.state, doc)
	for i, d := range s.docs {
		if d == doc {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			break
		}
	}
	if s.active == doc {
		s.active = nil
		if n := len(s.docs); n > 0 {
			s.active = s.docs[n-1]
		}
	}
}

// SavePNG flattens the visible layers of doc and writes the result.
func (s *Session) SavePNG(doc *artwork.Document, path string) error {
	return pimaging.Save(Flatten(doc), path)
}

func (s *Session) ActiveDocument() *artwork.Document {
	return s.active
}

func (s *Session) SetActiveDocument(doc *artwork.Document) error {
	if _, ok := s.state[doc]; !ok {
		return fmt.Errorf("activate %q: %w", doc.Name, ErrNoDocument)
	}
	s.active = doc
	return nil
}

func (s *Session) ActiveLayer() *artwork.Layer {
	if _, st, err := s.current(); err == nil {
		return st.activeLayer
	}
	return nil
}

func (s *Session) SetActiveLayer(l *artwork.Layer) error {
	doc, st, err := s.current()
	if err != nil {
		return err
	}
	if !contains(doc, l) {
		return fmt.Errorf("activate layer %q: not in document %q", l.Name, doc.Name)
	}
	st.activeLayer = l
	return nil
}

// AddLayer creates an empty pixel layer above the active layer, or at the
// top of the stack when no layer is active.
func (s *Session) AddLayer(name string) (*artwork.Layer, error) {
	doc, st, err := s.current()
	if err != nil {
		return nil, err
	}
	l := artwork.NewPixelLayer(name, doc.Canvas())
	if st.activeLayer != nil && contains(doc, st.activeLayer) {
		err = doc.InsertAbove(st.activeLayer, l)
	} else {
		err = doc.Insert(nil, 0, l)
	}
	if err != nil {
		return nil, err
	}
	st.activeLayer = l
	return l, nil
}

// DeleteLayer removes l from the active document. If l was active, the
// layer that took its place (or the top layer) becomes active.
func (s *Session) DeleteLayer(l *artwork.Layer) error {
	doc, st, err := s.current()
	if err != nil {
		return err
	}
	parent, idx := l.Parent, doc.IndexOf(l)
	if idx < 0 || !doc.Remove(l) {
		return fmt.Errorf("delete layer %q: not in document %q", l.Name, doc.Name)
	}
	if st.activeLayer == l || (st.activeLayer != nil && !contains(doc, st.activeLayer)) {
		st.activeLayer = nil
		siblings := doc.Layers
		if parent != nil {
			siblings = parent.Children
		}
		switch {
		case idx < len(siblings):
			st.activeLayer = siblings[idx]
		case len(siblings) > 0:
			st.activeLayer = siblings[len(siblings)-1]
		case parent != nil:
			st.activeLayer = parent
		case len(doc.Layers) > 0:
			st.activeLayer = doc.Layers[0]
		}
	}
	return nil
}

// TranslateLayer moves the pixels of l by (dx, dy). Pixels moved off the
// canvas are lost.
func (s *Session) TranslateLayer(l *artwork.Layer, dx, dy int) error {
	if !l.IsPixel() || l.Pixels == nil {
		return fmt.Errorf("translate %q: %w", l.Name, ErrNotPixelLayer)
	}
	if dx == 0 && dy == 0 {
		return nil
	}
	// bild's y axis points up: a positive dy moves content toward row 0.
	// The RGBA round trip premultiplies, so semi-transparent rims may lose
	// a little precision.
	l.Pixels = imaging.Clone(transform.Translate(l.Pixels, dx, -dy))
	return nil
}

func (s *Session) Selection() (*region.Mask, bool) {
	_, st, err := s.current()
	if err != nil || st.selection.Empty() {
		return nil, false
	}
	return st.selection.Clone(), true
}

func (s *Session) SetSelection(m *region.Mask) {
	_, st, err := s.current()
	if err != nil {
		return
	}
	if m.Empty() {
		st.selection = nil
		return
	}
	st.selection = m.Clone()
}

func (s *Session) Deselect() {
	s.SetSelection(nil)
}

func (s *Session) SelectAll() {
	if doc, _, err := s.current(); err == nil {
		s.SetSelection(region.FromRect(doc.Canvas(), doc.Canvas()))
	}
}

func (s *Session) SelectRect(r image.Rectangle) {
	if doc, _, err := s.current(); err == nil {
		s.SetSelection(region.FromRect(doc.Canvas(), r))
	}
}

func (s *Session) SelectTransparency(l *artwork.Layer) error {
	if !l.IsPixel() || l.Pixels == nil {
		return fmt.Errorf("transparency of %q: %w", l.Name, ErrNotPixelLayer)
	}
	s.SetSelection(region.FromAlpha(l.Pixels))
	return nil
}

func (s *Session) SelectVectorMask(l *artwork.Layer) error {
	doc, _, err := s.current()
	if err != nil {
		return err
	}
	if len(l.VectorMask) == 0 {
		return fmt.Errorf("vector mask of %q: %w", l.Name, ErrNoMask)
	}
	s.SetSelection(region.FromCoverage(rasterizePolygons(l.VectorMask, doc.Canvas()), coverageThreshold))
	return nil
}

func (s *Session) SelectLayerMask(l *artwork.Layer) error {
	if l.Mask == nil {
		return fmt.Errorf("layer mask of %q: %w", l.Name, ErrNoMask)
	}
	s.SetSelection(region.FromCoverage(l.Mask, coverageThreshold))
	return nil
}

func (s *Session) StoreChannel(name string) error {
	doc, st, err := s.current()
	if err != nil {
		return err
	}
	if st.selection.Empty() {
		st.channels[name] = region.New(doc.Canvas())
		return nil
	}
	st.channels[name] = st.selection.Clone()
	return nil
}

func (s *Session) IntersectChannel(name string) error {
	_, st, err := s.current()
	if err != nil {
		return err
	}
	ch, ok := st.channels[name]
	if !ok {
		return fmt.Errorf("channel %q: %w", name, ErrNoChannel)
	}
	if st.selection.Empty() {
		return nil
	}
	s.SetSelection(st.selection.Intersect(ch))
	return nil
}

func (s *Session) DeleteChannel(name string) {
	if _, st, err := s.current(); err == nil {
		delete(st.channels, name)
	}
}

// channelCount is used by tests to check that temporary channels are cleaned up.
func (s *Session) channelCount() int {
	if _, st, err := s.current(); err == nil {
		return len(st.channels)
	}
	return 0
}

func (s *Session) Foreground() color.NRGBA {
	return s.fg
}

func (s *Session) SetForeground(c color.Color) {
	s.fg = color.NRGBAModel.Convert(c).(color.NRGBA)
}

// Fill paints every selected pixel of the active layer with the foreground
// color. Without a selection the whole layer is filled.
func (s *Session) Fill() error {
	doc, st, err := s.current()
	if err != nil {
		return err
	}
	l := st.activeLayer
	if l == nil {
		return ErrNoLayer
	}
	if !l.IsPixel() || l.Pixels == nil {
		return fmt.Errorf("fill %q: %w", l.Name, ErrNotPixelLayer)
	}
	sel := st.selection
	if sel.Empty() {
		sel = region.FromRect(doc.Canvas(), doc.Canvas())
	}
	draw.DrawMask(l.Pixels, doc.Canvas(), image.NewUniform(s.fg), image.Point{}, sel.Alpha(), doc.Canvas().Min, draw.Over)
	return nil
}

// SampleColor reads the composite of the visible layers at (x, y).
func (s *Session) SampleColor(x, y int) (color.NRGBA, error) {
	doc, _, err := s.current()
	if err != nil {
		return color.NRGBA{}, err
	}
	return pimaging.SampleColor(Flatten(doc), x, y)
}

// Copy copies the selected pixels of the active layer, trimmed to their
// content bounds. Position is not retained.
func (s *Session) Copy() error {
	doc, st, err := s.current()
	if err != nil {
		return err
	}
	l := st.activeLayer
	if l == nil {
		return ErrNoLayer
	}
	if !l.IsPixel() || l.Pixels == nil {
		return fmt.Errorf("copy %q: %w", l.Name, ErrNotPixelLayer)
	}
	src := l.Pixels
	if !st.selection.Empty() {
		masked := image.NewNRGBA(doc.Canvas())
		draw.DrawMask(masked, doc.Canvas(), l.Pixels, image.Point{}, st.selection.Alpha(), doc.Canvas().Min, draw.Src)
		src = masked
	}
	content := pimaging.OpaqueBounds(src)
	if content.Empty() {
		return fmt.Errorf("copy %q: %w", l.Name, ErrNothingToCopy)
	}
	s.clipboard = imaging.Crop(src, content)
	s.logger.Debug("copied", slog.String("layer", l.Name), slog.String("bounds", content.String()))
	return nil
}

// Paste adds the clipboard as a new layer above the active layer, centered
// on the canvas.
func (s *Session) Paste() (*artwork.Layer, error) {
	if s.clipboard == nil {
		return nil, ErrClipboardEmpty
	}
	doc, _, err := s.current()
	if err != nil {
		return nil, err
	}
	n := 1
	doc.Walk(func(*artwork.Layer) bool { n++; return true })
	l, err := s.AddLayer(fmt.Sprintf("Layer %d", n))
	if err != nil {
		return nil, err
	}
	cb := s.clipboard.Bounds()
	at := image.Pt((doc.Width-cb.Dx())/2, (doc.Height-cb.Dy())/2)
	draw.Draw(l.Pixels, cb.Sub(cb.Min).Add(at), s.clipboard, cb.Min, draw.Src)
	return l, nil
}

func contains(doc *artwork.Document, target *artwork.Layer) bool {
	found := false
	doc.Walk(func(l *artwork.Layer) bool {
		found = l == target
		return !found
	})
	return found
}
