package service

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDecodeOpts = DecodeOptions{
	AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
	MaxDimension: 2048,
}

func TestDecodeImage(t *testing.T) {
	src := canvasWithRects(64, 48, red, image.Rect(8, 8, 56, 40))

	img, err := DecodeImage(encodePNG(t, src), testDecodeOpts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	assert.Equal(t, src.Pix, img.Pix)
}

func TestDecodeImage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts DecodeOptions
	}{
		{"empty", nil, testDecodeOpts},
		{"garbage", []byte("definitely not an image"), testDecodeOpts},
		{"truncated png", encodePNG(t, canvasWithRects(32, 32, red))[:40], DecodeOptions{}},
		{"type not allowed", encodePNG(t, canvasWithRects(8, 8, red)), DecodeOptions{AllowedTypes: []string{"image/jpeg"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeImage(tt.data, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidImage))
		})
	}
}

func TestDecodeImage_MaxDimension(t *testing.T) {
	src := canvasWithRects(400, 200, red, image.Rect(0, 0, 400, 200))

	img, err := DecodeImage(encodePNG(t, src), DecodeOptions{MaxDimension: 100})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}

// withDeclaredSize rewrites the IHDR of a PNG so it claims w x h pixels.
func withDeclaredSize(png []byte, w, h uint32) []byte {
	out := append([]byte(nil), png...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeImage_MaxPixels(t *testing.T) {
	data := withDeclaredSize(encodePNG(t, canvasWithRects(4, 4, red)), 30000, 30000)
	require.Less(t, len(data), 1024)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 30000, cfg.Width)

	opts := testDecodeOpts
	opts.MaxPixels = 40_000_000
	_, err = DecodeImage(data, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImage))
	assert.ErrorContains(t, err, "pixel limit")

	src := canvasWithRects(64, 64, red)
	img, err := DecodeImage(encodePNG(t, src), opts)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
}

func TestApplyOrientation(t *testing.T) {
	src := canvasWithRects(4, 2, red, image.Rect(0, 0, 1, 1))

	assert.Equal(t, image.Rect(0, 0, 4, 2), applyOrientation(src, 1).Bounds())
	assert.Equal(t, image.Rect(0, 0, 2, 4), applyOrientation(src, 6).Bounds())
	assert.Equal(t, image.Rect(0, 0, 2, 4), applyOrientation(src, 8).Bounds())

	flipped := toNRGBA(applyOrientation(src, 2))
	assert.Equal(t, red, flipped.NRGBAAt(3, 0))
}

func TestExifOrientation_Missing(t *testing.T) {
	assert.Equal(t, 1, exifOrientation(encodePNG(t, canvasWithRects(4, 4, red))))
}

func TestToNRGBA_ResetsOrigin(t *testing.T) {
	src := canvasWithRects(10, 10, red, image.Rect(5, 5, 10, 10))
	sub := src.SubImage(image.Rect(5, 5, 10, 10))

	out := toNRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 5, 5), out.Bounds())
	assert.Equal(t, red, out.NRGBAAt(0, 0))
}
