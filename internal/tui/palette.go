package tui

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// palette is the set of colors the picker cycles through: white, warm
// white, then twelve fully saturated hues 30 degrees apart.
var palette = buildPalette()

func buildPalette() []colorful.Color {
	p := []colorful.Color{
		{R: 1, G: 1, B: 1},
		colorful.Color{R: 1, G: 0.85, B: 0.66},
	}
	for h := 0.0; h < 360; h += 30 {
		p = append(p, colorful.Hsv(h, 1, 1))
	}
	return p
}

// nearestSwatch returns the palette index perceptually closest to c.
func nearestSwatch(c color.RGBA) int {
	target, _ := colorful.MakeColor(c)
	best, bestDist := 0, -1.0
	for i, sw := range palette {
		d := target.DistanceLab(sw)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// stepColor moves delta swatches from the one nearest c, wrapping.
func stepColor(c color.RGBA, delta int) color.RGBA {
	n := len(palette)
	i := ((nearestSwatch(c)+delta)%n + n) % n
	return toRGBA(palette[i])
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func hexOf(c color.RGBA) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}
