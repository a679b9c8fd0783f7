package service

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// warpStretch widens the garment slightly to approximate drape. It is a fixed
	// simplification, not mesh warping.
	warpStretch = 1.05
	// garmentBlurSigma softens jagged edges before the final paste.
	garmentBlurSigma = 1.0
	// maxGarmentSpan bounds the fitted garment relative to the template size.
	maxGarmentSpan = 4.0
	// maxShadowBlurRadius bounds the Gaussian kernel of the shadow.
	maxShadowBlurRadius = 100.0
)

// Composite fits a normalized garment onto a copy of template. The result always has
// the template's size; garment pixels pushed off the canvas are dropped. Template
// pixels not touched by the shadow or the garment are copied unchanged.
//
// The shadow layer sits below the template, so the shadow only shows where the
// template itself is transparent.
func Composite(garment, template image.Image, params FitParams) *image.NRGBA {
	canvas := imaging.Clone(template)
	tw, th := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	g := fitGarment(imaging.Clone(garment), params.ScaleFactor, tw, th)
	gw, gh := g.Bounds().Dx(), g.Bounds().Dy()
	if gw == 0 || gh == 0 {
		return canvas
	}

	x := floorHalf(tw-gw) + params.XOffset
	y := floorHalf(th-gh) + params.YOffset

	if params.Shadow {
		radius := min(params.ShadowBlurRadius, maxShadowBlurRadius)
		shadow := shadowLayer(g, tw, th, image.Pt(x, y).Add(params.ShadowOffset), radius)
		underlay(canvas, shadow)
	}

	g = imaging.Blur(g, garmentBlurSigma)
	overlay(canvas, g, image.Pt(x, y))

	return canvas
}

// fitGarment applies the uniform scale and the horizontal warp stretch. The result
// never exceeds maxGarmentSpan times the template in either direction.
func fitGarment(g *image.NRGBA, scale float64, tw, th int) *image.NRGBA {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return g
	}

	if !(scale > 0) {
		scale = 1
	}
	limit := min(
		float64(max(1, tw))*maxGarmentSpan/(float64(w)*warpStretch),
		float64(max(1, th))*maxGarmentSpan/float64(h),
	)
	scale = min(scale, limit)

	if scale != 1 {
		g = imaging.Resize(g, scaled(w, scale), scaled(h, scale), imaging.Lanczos)
		w, h = g.Bounds().Dx(), g.Bounds().Dy()
	}
	return imaging.Resize(g, scaled(w, warpStretch), h, imaging.Lanczos)
}

// overlay blends src over dst with its top-left corner at pos. Pixels of src with
// zero alpha leave dst untouched.
func overlay(dst, src *image.NRGBA, pos image.Point) {
	r := src.Bounds().Add(pos.Sub(src.Bounds().Min)).Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s := src.PixOffset(x-pos.X+src.Bounds().Min.X, y-pos.Y+src.Bounds().Min.Y)
			if src.Pix[s+3] == 0 {
				continue
			}
			d := dst.PixOffset(x, y)
			blendOver(dst.Pix[d:d+4:d+4], src.Pix[s:s+4:s+4], dst.Pix[d:d+4:d+4])
		}
	}
}

// underlay puts layer (same size as dst) below dst. Only pixels where layer is
// visible and dst is not opaque change.
func underlay(dst, layer *image.NRGBA) {
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			d := dst.PixOffset(dst.Rect.Min.X+x, dst.Rect.Min.Y+y)
			l := layer.PixOffset(layer.Rect.Min.X+x, layer.Rect.Min.Y+y)
			if layer.Pix[l+3] == 0 || dst.Pix[d+3] == 255 {
				continue
			}
			blendOver(dst.Pix[d:d+4:d+4], dst.Pix[d:d+4:d+4], layer.Pix[l:l+4:l+4])
		}
	}
}

// blendOver writes top composited over bottom into out. All three are non
// premultiplied RGBA quadruples; out may alias either input.
func blendOver(out, top, bottom []uint8) {
	ta := float64(top[3]) / 255
	ba := float64(bottom[3]) / 255
	oa := ta + ba*(1-ta)
	if oa == 0 {
		out[0], out[1], out[2], out[3] = 0, 0, 0, 0
		return
	}

	var c [3]uint8
	for i := range c {
		v := (float64(top[i])*ta + float64(bottom[i])*ba*(1-ta)) / oa
		c[i] = uint8(math.Round(math.Min(math.Max(v, 0), 255)))
	}
	out[0], out[1], out[2] = c[0], c[1], c[2]
	out[3] = uint8(math.Round(oa * 255))
}

// shadowLayer renders the garment silhouette in black at pos on a transparent
// tw x th layer and blurs it with a Gaussian of the given radius.
func shadowLayer(g *image.NRGBA, tw, th int, pos image.Point, radius float64) *image.NRGBA {
	silhouette := imaging.AdjustFunc(g, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{A: c.A}
	})

	layer := imaging.New(tw, th, color.Transparent)
	layer = imaging.Paste(layer, silhouette, pos)
	if radius > 0 {
		layer = imaging.Blur(layer, radius)
	}
	return layer
}

func scaled(n int, f float64) int {
	return max(1, int(math.Round(float64(n)*f)))
}

// floorHalf divides by two rounding towards negative infinity.
func floorHalf(n int) int {
	return int(math.Floor(float64(n) / 2))
}
