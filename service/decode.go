package service

import (
	"bytes"
	"image"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeOptions restricts what DecodeImage accepts.
type DecodeOptions struct {
	AllowedTypes []string
	MaxDimension int
	// MaxPixels rejects images whose declared width*height exceeds it before the
	// raster is decoded. Zero disables the check.
	MaxPixels int64
}

// DecodeImage sniffs, decodes and normalizes an uploaded image: EXIF orientation is
// applied and the longest side is limited to MaxDimension. Anything that is not a
// decodable image of an allowed type fails with ErrInvalidImage.
func DecodeImage(data []byte, opts DecodeOptions) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, newError(KindInvalidImage, nil, "empty upload")
	}

	mime := mimetype.Detect(data)
	if len(opts.AllowedTypes) > 0 && !slices.ContainsFunc(opts.AllowedTypes, mime.Is) {
		return nil, newError(KindInvalidImage, nil, "unsupported type %s", mime.String())
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindInvalidImage, err, "decode failed")
	}
	if pixels := int64(header.Width) * int64(header.Height); opts.MaxPixels > 0 && pixels > opts.MaxPixels {
		return nil, newError(KindInvalidImage, nil, "%dx%d exceeds the %d pixel limit", header.Width, header.Height, opts.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindInvalidImage, err, "decode failed")
	}
	if img.Bounds().Empty() {
		return nil, newError(KindInvalidImage, nil, "image has no pixels")
	}

	img = applyOrientation(img, exifOrientation(data))

	out := toNRGBA(img)
	if opts.MaxDimension > 0 {
		out = resizeWithinMax(out, opts.MaxDimension)
	}
	return out, nil
}

// exifOrientation reads the EXIF orientation tag, defaulting to 1 (upright).
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// resizeWithinMax 缩放（最长边 <= maxSize）
func resizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return toNRGBA(resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3))
}

// toNRGBA returns img as an *image.NRGBA with its origin at (0, 0).
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
