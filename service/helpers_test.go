package service

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// canvasWithRects returns a transparent w x h image with each rect filled in c.
func canvasWithRects(w, h int, c color.NRGBA, rects ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

// writeTemplate saves an opaque w x h template filled with c and returns its path.
func writeTemplate(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	path := filepath.Join(dir, name+".png")
	require.NoError(t, imaging.Save(imaging.New(w, h, c), path))
	return path
}

func farFuture() time.Time {
	return time.Now().Add(365 * 24 * time.Hour)
}
