package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/groups"
)

// ErrTooFewLayers is returned when the artwork lacks a key, a paper and at
// least the layer slot between them.
var ErrTooFewLayers = errors.New("need at least 3 top-level layers: key on top, paper at the bottom")

// Plates is the plate layout of an artwork.
type Plates struct {
	Key   *artwork.Layer
	Paper *artwork.Layer
	// Colors are ordered bottom to top.
	Colors []*artwork.Layer
}

// DiscoverPlates reads the plate layout: the top layer is the key, the
// bottom layer the paper, and every visible pixel layer between them a
// color plate. A visible plate container from an earlier import counts as
// the plate it wraps.
func DiscoverPlates(doc *artwork.Document) (Plates, error) {
	n := len(doc.Layers)
	if n < 3 {
		return Plates{}, fmt.Errorf("%q has %d: %w", doc.Name, n, ErrTooFewLayers)
	}
	p := Plates{Key: doc.Layers[0], Paper: doc.Layers[n-1]}
	for i := n - 2; i >= 1; i-- {
		if l := plateOf(doc.Layers[i]); l != nil {
			p.Colors = append(p.Colors, l)
		}
	}
	return p, nil
}

func plateOf(l *artwork.Layer) *artwork.Layer {
	if !l.Visible {
		return nil
	}
	if l.IsPixel() {
		return l
	}
	if !strings.HasPrefix(l.Name, groups.GroupPrefix) {
		return nil
	}
	for _, child := range l.Children {
		if child.IsPixel() && !groups.IsTrap(child) && groups.GroupName(child.Name) == l.Name {
			return child
		}
	}
	return nil
}
