package service

import (
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// regionAlphaFloor separates foreground from background for contour detection.
const regionAlphaFloor = 1

// ExtractRegion crops the image to the bounding box of its largest external contour.
// Contours enclosing fewer than minArea pixels are treated as noise. If nothing
// survives the filter the input is returned unchanged.
//
// Garments split into several disconnected pieces keep only the largest piece.
func ExtractRegion(img image.Image, minArea float64) *image.NRGBA {
	src := imaging.Clone(img)

	box, ok := largestRegion(src, minArea)
	if !ok {
		return src
	}
	return imaging.Crop(src, box)
}

// largestRegion returns the bounding box of the largest contour with area >= minArea.
// Equal areas keep the contour OpenCV reports first.
func largestRegion(img *image.NRGBA, minArea float64) (image.Rectangle, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}, false
	}

	mask, count := foregroundMask(img, regionAlphaFloor)
	if count == 0 {
		return image.Rectangle{}, false
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, mask)
	if err != nil {
		return image.Rectangle{}, false
	}
	defer mat.Close()

	contours := gocv.FindContours(mat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best image.Rectangle
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := enclosedArea(c)
		if area < minArea || area <= bestArea {
			continue
		}
		bestArea = area
		best = gocv.BoundingRect(c)
	}

	if bestArea < 0 {
		return image.Rectangle{}, false
	}
	return best, true
}

// enclosedArea approximates the number of pixels covered by a filled contour.
// ContourArea measures the polygon through pixel centres, which misses half a
// pixel along the boundary; Pick's theorem adds it back (exact for axis aligned shapes).
func enclosedArea(c gocv.PointVector) float64 {
	return gocv.ContourArea(c) + gocv.ArcLength(c, true)/2 + 1
}
