package service

import (
	"image"

	"github.com/disintegration/imaging"
)

// SplitViews detects photos holding a front and a back view side by side. When the
// image is wider than height*aspect it is cut into a left half [0, w/2) and a right
// half [w/2, w); otherwise the image is returned as the only element.
func SplitViews(img image.Image, aspect float64) []*image.NRGBA {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	if w < 2 || float64(w) <= float64(h)*aspect {
		return []*image.NRGBA{src}
	}

	half := w / 2
	return []*image.NRGBA{
		imaging.Crop(src, image.Rect(0, 0, half, h)),
		imaging.Crop(src, image.Rect(half, 0, w, h)),
	}
}
