package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// ImageCache provides caching of decoded PNG files to avoid redundant disk reads.
//
// The cache stores decoded images keyed by their file path. Once an image is
// loaded, subsequent Load() calls for the same path return the cached copy
// without disk I/O. Mask and trap files are immutable once written within a
// run, so a cached copy never goes stale during a run.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/jobs/poster__2026-01-02__10-00-00/traps/TRAP__Red_over_KEY.png")
//	if err != nil {
//	    return err
//	}
//	cache.Evict(path) // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*image.NRGBA
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// Parameters:
//   - path: File path to the image. PNG is the interchange format; JPEG and
//     GIF decode too but carry no usable alpha.
//
// Returns:
//   - *image.NRGBA: The decoded image with its origin at (0,0). Callers must
//     treat it as read-only since it is shared through the cache.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached using the exact path string provided. Different paths to
// the same file (e.g., relative vs absolute) result in separate cache entries.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Open decodes an image file without caching and normalizes it to NRGBA.
func Open(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return imaging.Clone(img), nil
}

// Save writes img losslessly as PNG with alpha, creating parent directories
// as needed. The highest compression level is used; masks are mostly flat
// and compress very well.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return nil
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format: "png", "jpeg", "gif", or "unknown".
	// Detection is based on file extension, not file contents.
	Format string `json:"format"`

	// HasContent reports whether any pixel has non-zero alpha.
	HasContent bool `json:"has_content"`

	// ContentBounds is the tight bounding box of the non-transparent pixels.
	ContentBounds image.Rectangle `json:"content_bounds"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Inspect loads an image through the cache and reports its dimensions, format
// and content extent. It is used to validate that a mask or trap file matches
// the canvas it claims to belong to.
func Inspect(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch filepath.Ext(path) {
	case ".png", ".PNG":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	content := OpaqueBounds(img)
	return &ImageInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		HasContent:    !content.Empty(),
		ContentBounds: content,
		FileSizeBytes: stat.Size(),
	}, nil
}

// OpaqueBounds returns the tight bounding box of the pixels with non-zero
// alpha, or the zero rectangle if the image is fully transparent.
func OpaqueBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for i := 0; i < b.Dx(); i++ {
			if row[i*4+3] == 0 {
				continue
			}
			x := b.Min.X + i
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
