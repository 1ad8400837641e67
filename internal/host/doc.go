// Package host defines the editing capabilities the trapping workflow needs
// from a layered-image editor and provides Session, an in-process
// implementation over artwork documents.
//
// # Capabilities
//
// An Editor exposes documents, layers, a per-document selection and stored
// selection channels, a foreground color register, fill, composite color
// sampling, and a clipboard. Workflow components depend only on Editor.
//
// # Active State
//
// The active document, its active layer, its selection and the foreground
// color are mutable session state. Components that change them take a
// snapshot with Scope and restore it with defer:
//
//	restore := host.Scope(ed)
//	defer restore()
//
// # Clipboard Behaviour
//
// Session reproduces the behaviour of desktop editors when moving pixels
// between documents: Copy trims the copied pixels to their content bounds,
// and Paste places that content centered on the destination canvas in a new
// layer. Callers that need the original coordinates must realign pasted
// content themselves.
package host
