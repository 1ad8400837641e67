package host

import (
	"errors"
	"image"
	"image/color"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/region"
)

var (
	// ErrNoDocument is returned when an operation needs an active document.
	ErrNoDocument = errors.New("no active document")
	// ErrNoLayer is returned when an operation needs an active layer.
	ErrNoLayer = errors.New("no active layer")
	// ErrNotPixelLayer is returned for pixel operations on a group.
	ErrNotPixelLayer = errors.New("layer has no pixels")
	// ErrNoMask is returned when a layer lacks the requested mask.
	ErrNoMask = errors.New("layer has no such mask")
	// ErrNothingToCopy is returned when the copied area has no content.
	ErrNothingToCopy = errors.New("selected area is empty")
	// ErrClipboardEmpty is returned by Paste before any Copy.
	ErrClipboardEmpty = errors.New("clipboard is empty")
	// ErrNoChannel is returned when a stored channel does not exist.
	ErrNoChannel = errors.New("no such channel")
)

// Documents manages open documents.
type Documents interface {
	// Attach registers an already loaded document and makes it active.
	Attach(doc *artwork.Document)
	// OpenImage opens an image file as a single-layer document and makes it active.
	OpenImage(path string) (*artwork.Document, error)
	// NewDocument creates a transparent document with one empty layer and makes it active.
	NewDocument(name string, width, height int, resolution float64) *artwork.Document
	// Close discards doc without saving.
	Close(doc *artwork.Document)
	// SavePNG flattens doc and writes it as PNG with alpha.
	SavePNG(doc *artwork.Document, path string) error
	ActiveDocument() *artwork.Document
	SetActiveDocument(doc *artwork.Document) error
}

// Layers manages the active layer of the active document.
type Layers interface {
	ActiveLayer() *artwork.Layer
	SetActiveLayer(l *artwork.Layer) error
	// AddLayer creates an empty pixel layer directly above the active layer
	// and makes it active.
	AddLayer(name string) (*artwork.Layer, error)
	DeleteLayer(l *artwork.Layer) error
	TranslateLayer(l *artwork.Layer, dx, dy int) error
}

// Selections manages the selection and stored channels of the active document.
type Selections interface {
	// Selection returns a copy of the selection; false when nothing is selected.
	Selection() (*region.Mask, bool)
	// SetSelection replaces the selection. A nil or empty mask deselects.
	SetSelection(m *region.Mask)
	Deselect()
	SelectAll()
	SelectRect(r image.Rectangle)
	// SelectTransparency selects the non-transparent pixels of l.
	SelectTransparency(l *artwork.Layer) error
	// SelectVectorMask selects the area enclosed by l's vector mask.
	SelectVectorMask(l *artwork.Layer) error
	// SelectLayerMask selects the area revealed by l's raster mask.
	SelectLayerMask(l *artwork.Layer) error
	// StoreChannel saves the selection under name.
	StoreChannel(name string) error
	// IntersectChannel intersects the selection with a stored channel.
	IntersectChannel(name string) error
	DeleteChannel(name string)
}

// Painting covers the foreground color register, fill and sampling.
type Painting interface {
	Foreground() color.NRGBA
	SetForeground(c color.Color)
	// Fill paints the selection on the active layer with the foreground color.
	Fill() error
	// SampleColor reads the composite color of the active document at (x, y).
	SampleColor(x, y int) (color.NRGBA, error)
}

// Clipboard moves pixels between documents.
type Clipboard interface {
	// Copy copies the selected pixels of the active layer.
	Copy() error
	// Paste adds the clipboard content as a new layer in the active document.
	Paste() (*artwork.Layer, error)
}

// Editor is the full capability set of a layered-image editing host.
type Editor interface {
	Documents
	Layers
	Selections
	Painting
	Clipboard
}
