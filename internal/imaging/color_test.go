package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	img := createInMemoryImage(100, 100, color.NRGBA{255, 128, 64, 255})

	got, err := SampleColor(img, 50, 50)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if got != (color.NRGBA{255, 128, 64, 255}) {
		t.Errorf("got %v, want (255,128,64,255)", got)
	}
}

func TestSampleColor_Unpremultiplies(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{128, 0, 0, 128}) // premultiplied half-transparent red

	got, err := SampleColor(img, 1, 1)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if got.R != 255 || got.A != 128 {
		t.Errorf("got %v, want R=255 A=128", got)
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.NRGBA{255, 0, 0, 255})

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 50},
		{"negative y", 50, -1},
		{"x too large", 100, 50},
		{"y too large", 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SampleColor(img, tt.x, tt.y); err == nil {
				t.Error("SampleColor should fail for out-of-bounds coordinates")
			}
		})
	}
}

func TestDescribe_KnownColors(t *testing.T) {
	tests := []struct {
		name    string
		color   color.NRGBA
		wantHex string
		wantHue int
	}{
		{"pure red", color.NRGBA{255, 0, 0, 255}, "#FF0000", 0},
		{"pure green", color.NRGBA{0, 255, 0, 255}, "#00FF00", 120},
		{"pure blue", color.NRGBA{0, 0, 255, 255}, "#0000FF", 240},
		{"white", color.NRGBA{255, 255, 255, 255}, "#FFFFFF", 0},
		{"black", color.NRGBA{0, 0, 0, 255}, "#000000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.color)
			if got.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", got.Hex, tt.wantHex)
			}
			if got.HSL.H != tt.wantHue {
				t.Errorf("Hue: got %d, want %d", got.HSL.H, tt.wantHue)
			}
			if got.RGBA.A != 255 {
				t.Errorf("Alpha: got %d, want 255", got.RGBA.A)
			}
		})
	}
}
