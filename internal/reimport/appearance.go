package reimport

import (
	"fmt"

	"github.com/ironsheep/smart-trapper/internal/artwork"
)

type appearanceAttr struct {
	name  string
	apply func(dst, src *artwork.Layer) error
}

var appearanceAttrs = []appearanceAttr{
	{"blend_mode", func(dst, src *artwork.Layer) error {
		mode, err := artwork.ParseBlendMode(string(src.BlendMode))
		if err != nil {
			return err
		}
		dst.BlendMode = mode
		return nil
	}},
	{"opacity", func(dst, src *artwork.Layer) error {
		if !validPercent(src.Opacity) {
			return fmt.Errorf("opacity %v out of range", src.Opacity)
		}
		dst.Opacity = src.Opacity
		return nil
	}},
	{"fill_opacity", func(dst, src *artwork.Layer) error {
		if dst.Group {
			return fmt.Errorf("groups have no fill opacity")
		}
		if !validPercent(src.FillOpacity) {
			return fmt.Errorf("fill opacity %v out of range", src.FillOpacity)
		}
		dst.FillOpacity = src.FillOpacity
		return nil
	}},
	{"visible", func(dst, src *artwork.Layer) error {
		dst.Visible = src.Visible
		return nil
	}},
}

func validPercent(v float64) bool {
	return v >= 0 && v <= 100
}
