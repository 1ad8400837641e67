// Package imaging provides the image file and color helpers shared by the
// editor session and the job-folder tooling.
//
// Mask, trap and layer images are exchanged as canvas-sized PNG files with
// straight (non-premultiplied) alpha. Open always yields *image.NRGBA with
// its origin at (0,0), and Save writes lossless PNG so alpha survives the
// round trip through the trapping engine.
//
// # Coordinate System
//
// All pixel coordinates are 0-based, with (0,0) at the top-left corner.
// Rectangles are half-open: Min is inclusive, Max is exclusive.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The remaining functions
// are stateless.
//
// # Color Representation
//
// Describe reports a color as hex "#RRGGBB" (alpha excluded), 8-bit RGB and
// RGBA components, and HSL with hue 0-360 and saturation and lightness
// 0-100. Sampled inks are logged in this form.
package imaging
