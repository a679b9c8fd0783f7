package service

import (
	"image"

	"github.com/disintegration/imaging"
)

// CleanAlpha zeroes every pixel whose alpha is below threshold so later stages see a
// clean foreground/background split. Pixels at or above the threshold are kept as is.
func CleanAlpha(img image.Image, threshold uint8) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 0; i < len(dst.Pix); i += 4 {
		if dst.Pix[i+3] < threshold {
			dst.Pix[i] = 0
			dst.Pix[i+1] = 0
			dst.Pix[i+2] = 0
			dst.Pix[i+3] = 0
		}
	}
	return dst
}

// foregroundMask returns a w*h byte mask (0 or 255) of pixels with alpha > floor,
// and the number of foreground pixels.
func foregroundMask(img *image.NRGBA, floor uint8) ([]byte, int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	mask := make([]byte, w*h)
	count := 0
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] > floor {
				mask[y*w+x] = 255
				count++
			}
		}
	}
	return mask, count
}
