package service

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// angleEpsilon is the smallest tilt (degrees) worth a resampling pass.
const angleEpsilon = 0.01

// Straighten levels the garment: it fits the minimum-area rectangle around all
// foreground pixels (alpha > 0) and rotates the image so that rectangle becomes axis
// aligned. The canvas grows to hold the rotated content; uncovered corners are
// transparent. Empty cutouts are returned unchanged.
func Straighten(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)

	angle, ok := dominantAngle(src)
	if !ok || math.Abs(angle) < angleEpsilon {
		return src
	}

	// angle is measured clockwise in image coordinates; imaging rotates counter-clockwise.
	return imaging.Rotate(src, angle, color.Transparent)
}

// dominantAngle returns the tilt of the foreground's minimum-area rectangle in degrees,
// folded into (-45, 45]. ok is false when there is no foreground.
func dominantAngle(img *image.NRGBA) (float64, bool) {
	w := img.Bounds().Dx()
	mask, count := foregroundMask(img, 0)
	if count == 0 {
		return 0, false
	}

	points := make([]image.Point, 0, count)
	for i, v := range mask {
		if v != 0 {
			points = append(points, image.Pt(i%w, i/w))
		}
	}

	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	rect := gocv.MinAreaRect2(pv)
	if len(rect.Points) < 2 {
		return 0, true
	}

	// Measure from the box corners instead of rect.Angle, whose range differs
	// between OpenCV releases.
	p0, p1 := rect.Points[0], rect.Points[1]
	theta := math.Atan2(float64(p1.Y-p0.Y), float64(p1.X-p0.X)) * 180 / math.Pi
	return normalizeAngle(theta), true
}

// normalizeAngle maps any rectangle edge angle into (-45, 45]. It first reduces to
// (-90, 90], then shifts angles below -45 up by 90 and angles above 45 down by 90.
// A rectangle's two edge directions always fold to the same value; an exact ±45 tie
// resolves to +45.
func normalizeAngle(theta float64) float64 {
	for theta <= -90 {
		theta += 180
	}
	for theta > 90 {
		theta -= 180
	}
	if theta <= -45 {
		theta += 90
	}
	if theta > 45 {
		theta -= 90
	}
	return theta
}
