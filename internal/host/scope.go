package host

import (
	"image/color"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/region"
)

// Scope snapshots the active document, its active layer and selection, and
// the foreground color. The returned func restores them; it is meant to be
// deferred so every exit path restores the editor state. Restoring skips
// anything that no longer exists (a closed document, a deleted layer).
func Scope(ed Editor) (restore func()) {
	doc := ed.ActiveDocument()
	layer := ed.ActiveLayer()
	sel, hasSel := ed.Selection()
	fg := ed.Foreground()

	return func() {
		restoreScope(ed, doc, layer, sel, hasSel, fg)
	}
}

func restoreScope(ed Editor, doc *artwork.Document, layer *artwork.Layer, sel *region.Mask, hasSel bool, fg color.NRGBA) {
	ed.SetForeground(fg)
	if doc == nil || ed.SetActiveDocument(doc) != nil {
		return
	}
	if layer != nil {
		_ = ed.SetActiveLayer(layer)
	}
	if hasSel {
		ed.SetSelection(sel)
	} else {
		ed.Deselect()
	}
}

// Solo hides every top-level layer of doc, then shows l together with its
// ancestors. The returned func restores the previous visibility of every
// layer it touched.
func Solo(doc *artwork.Document, l *artwork.Layer) (restore func()) {
	saved := make(map[*artwork.Layer]bool)
	for _, top := range doc.Layers {
		saved[top] = top.Visible
		top.Visible = false
	}
	for n := l; n != nil; n = n.Parent {
		if _, ok := saved[n]; !ok {
			saved[n] = n.Visible
		}
		n.Visible = true
	}
	return func() {
		for layer, visible := range saved {
			layer.Visible = visible
		}
	}
}
