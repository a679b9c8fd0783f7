package service

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// AdjustColor multiplies RGB by brightness, then stretches contrast around mid-gray
// by the contrast factor. Alpha is left untouched.
func AdjustColor(img image.Image, brightness, contrast float64) *image.NRGBA {
	var lut [256]uint8
	for i := range lut {
		v := float64(i) * brightness
		v = (v-127.5)*contrast + 127.5
		lut[i] = uint8(math.Round(math.Min(math.Max(v, 0), 255)))
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}
