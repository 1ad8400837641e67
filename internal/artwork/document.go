// Package artwork models a layered artwork document: a canvas with a tree of
// pixel layers and groups, each carrying blend mode, opacity, fill opacity
// and visibility, plus optional raster and vector masks.
//
// Documents are stored on disk as a bundle directory holding artwork.toml
// and one canvas-sized PNG per pixel layer (and per raster mask).
package artwork

import (
	"fmt"
	"image"
)

// Document is a layered artwork.
type Document struct {
	Name       string
	Width      int
	Height     int
	Resolution float64
	// Layers are the top-level layers, ordered top to bottom.
	Layers []*Layer
	// Dir is the bundle directory the document was loaded from, if any.
	Dir string
}

// NewDocument returns an empty document.
func NewDocument(name string, width, height int, resolution float64) *Document {
	return &Document{Name: name, Width: width, Height: height, Resolution: resolution}
}

// Canvas returns the document rectangle with its origin at (0,0).
func (d *Document) Canvas() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// Walk visits every layer depth first, top to bottom, parents before
// children. Returning false from fn stops the walk.
func (d *Document) Walk(fn func(*Layer) bool) {
	var walk func([]*Layer) bool
	walk = func(layers []*Layer) bool {
		for _, l := range layers {
			if !fn(l) {
				return false
			}
			if l.Group && !walk(l.Children) {
				return false
			}
		}
		return true
	}
	walk(d.Layers)
}

// FindAll returns every layer, at any depth, whose name matches and whose
// kind satisfies keep (nil keeps everything).
func (d *Document) FindAll(name string, keep func(*Layer) bool) []*Layer {
	var out []*Layer
	d.Walk(func(l *Layer) bool {
		if l.Name == name && (keep == nil || keep(l)) {
			out = append(out, l)
		}
		return true
	})
	return out
}

// FindIn returns every layer named name inside the subtree rooted at root,
// root excluded.
func FindIn(root *Layer, name string, keep func(*Layer) bool) []*Layer {
	var out []*Layer
	var walk func([]*Layer)
	walk = func(layers []*Layer) {
		for _, l := range layers {
			if l.Name == name && (keep == nil || keep(l)) {
				out = append(out, l)
			}
			if l.Group {
				walk(l.Children)
			}
		}
	}
	walk(root.Children)
	return out
}

// siblings returns the slice holding l: the parent's children or the top level.
func (d *Document) siblings(parent *Layer) *[]*Layer {
	if parent == nil {
		return &d.Layers
	}
	return &parent.Children
}

// IndexOf returns the position of l among its siblings, or -1.
func (d *Document) IndexOf(l *Layer) int {
	for i, s := range *d.siblings(l.Parent) {
		if s == l {
			return i
		}
	}
	return -1
}

// Insert places l at index among parent's children (nil parent means the
// top level). Index 0 is the top of the stack; out-of-range indexes clamp.
func (d *Document) Insert(parent *Layer, index int, l *Layer) error {
	if parent != nil && !parent.Group {
		return fmt.Errorf("insert %q: parent %q is not a group", l.Name, parent.Name)
	}
	list := d.siblings(parent)
	if index < 0 {
		index = 0
	}
	if index > len(*list) {
		index = len(*list)
	}
	*list = append(*list, nil)
	copy((*list)[index+1:], (*list)[index:])
	(*list)[index] = l
	l.Parent = parent
	return nil
}

// InsertAbove places l directly above ref, in ref's container.
func (d *Document) InsertAbove(ref, l *Layer) error {
	idx := d.IndexOf(ref)
	if idx < 0 {
		return fmt.Errorf("insert %q: reference layer %q is not in the document", l.Name, ref.Name)
	}
	return d.Insert(ref.Parent, idx, l)
}

// Remove detaches l from its container. It reports false if l was not found.
func (d *Document) Remove(l *Layer) bool {
	list := d.siblings(l.Parent)
	for i, s := range *list {
		if s == l {
			*list = append((*list)[:i], (*list)[i+1:]...)
			l.Parent = nil
			return true
		}
	}
	return false
}

// RemoveWhere removes every layer, at any depth, matching fn and returns
// the number removed. Groups that match are removed with their children.
func (d *Document) RemoveWhere(fn func(*Layer) bool) int {
	var prune func(parent *Layer) int
	prune = func(parent *Layer) int {
		list := d.siblings(parent)
		kept := (*list)[:0]
		removed := 0
		for _, l := range *list {
			if fn(l) {
				l.Parent = nil
				removed++
				continue
			}
			kept = append(kept, l)
		}
		for i := len(kept); i < len(*list); i++ {
			(*list)[i] = nil
		}
		*list = kept
		for _, l := range kept {
			if l.Group {
				removed += prune(l)
			}
		}
		return removed
	}
	return prune(nil)
}

// Wrap replaces l with a new group named name holding l, at l's position.
func (d *Document) Wrap(l *Layer, name string) (*Layer, error) {
	idx := d.IndexOf(l)
	if idx < 0 {
		return nil, fmt.Errorf("wrap %q: layer is not in the document", l.Name)
	}
	parent := l.Parent
	g := NewGroup(name)
	(*d.siblings(parent))[idx] = g
	g.Parent = parent
	g.Children = []*Layer{l}
	l.Parent = g
	return g, nil
}
