package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/smart-trapper/internal/artwork"
)

// Mode tells the engine how to treat overlapping plates.
type Mode string

const (
	// ModePlates knocks plates out of each other before trapping.
	ModePlates Mode = "plates"
	// ModeOverprint keeps intentional overlaps and traps outer boundaries only.
	ModeOverprint Mode = "overprint"
)

// ParseMode accepts "plates" or "overprint", case-insensitively. An empty
// string is plates.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModePlates):
		return ModePlates, nil
	case string(ModeOverprint):
		return ModeOverprint, nil
	}
	return "", fmt.Errorf("unknown trapping mode %q (want plates or overprint)", s)
}

// OverlapLayers returns the visible top-level pixel layers whose blend mode,
// opacity or fill opacity suggests the artwork relies on overlapping inks.
func OverlapLayers(doc *artwork.Document) []*artwork.Layer {
	var out []*artwork.Layer
	for _, l := range doc.Layers {
		if l.IsPixel() && l.Visible && l.HasNonDefaultAppearance() {
			out = append(out, l)
		}
	}
	return out
}

// DefaultTrapWidth scales the baseline width to the document resolution:
// round(baselineWidth * resolution / baselineResolution), never negative.
func DefaultTrapWidth(resolution, baselineWidth, baselineResolution float64) int {
	if baselineResolution <= 0 {
		return int(math.Max(0, math.Round(baselineWidth)))
	}
	w := math.Round(baselineWidth * resolution / baselineResolution)
	if w < 0 || math.IsNaN(w) {
		return 0
	}
	return int(w)
}

// ParseTrapWidth reads an operator-supplied width. Empty, unparsable or
// negative input yields def; fractions are rounded.
func ParseTrapWidth(input string, def int) int {
	s := strings.TrimSpace(input)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return int(math.Round(v))
}
