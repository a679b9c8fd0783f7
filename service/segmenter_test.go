package service

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/utils/httpclient"
	"gocv.io/x/gocv"
)

func TestRemoteSegmenter(t *testing.T) {
	cutout := canvasWithRects(16, 16, red, image.Rect(4, 4, 12, 12))
	cutoutPNG := encodePNG(t, cutout)

	var received image.Image
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		received, _ = imaging.Decode(bytes.NewReader(data))

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutoutPNG)
	}))
	defer srv.Close()

	seg := NewRemoteSegmenter(srv.URL, 5*time.Second, httpclient.NewHTTPClient())
	out, err := seg.Segment(context.Background(), imaging.New(16, 16, white))
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, image.Rect(0, 0, 16, 16), received.Bounds())
	assert.Equal(t, cutout.Pix, imaging.Clone(out).Pix)
}

func TestRemoteSegmenter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	seg := NewRemoteSegmenter(srv.URL, time.Second, httpclient.NewHTTPClient())
	_, err := seg.Segment(context.Background(), imaging.New(8, 8, white))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestRemoteSegmenter_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a png"))
	}))
	defer srv.Close()

	seg := NewRemoteSegmenter(srv.URL, time.Second, httpclient.NewHTTPClient())
	_, err := seg.Segment(context.Background(), imaging.New(8, 8, white))
	assert.ErrorContains(t, err, "decode cutout")
}

func TestNewSegmenter(t *testing.T) {
	seg, err := NewSegmenter(&config.SegmentationConfig{Provider: "none"})
	require.NoError(t, err)
	assert.IsType(t, PassthroughSegmenter{}, seg)

	seg, err = NewSegmenter(&config.SegmentationConfig{Provider: "http", Endpoint: "http://localhost:5000/remove"})
	require.NoError(t, err)
	assert.IsType(t, &RemoteSegmenter{}, seg)

	seg, err = NewSegmenter(&config.SegmentationConfig{Provider: "grabcut", Iterations: 3, WorkSize: 400})
	require.NoError(t, err)
	assert.IsType(t, &GrabCutSegmenter{}, seg)

	_, err = NewSegmenter(&config.SegmentationConfig{Provider: "http"})
	assert.Error(t, err)

	_, err = NewSegmenter(&config.SegmentationConfig{Provider: "magic"})
	assert.ErrorContains(t, err, "unknown segmentation provider")
}

func TestPassthroughSegmenter(t *testing.T) {
	img := imaging.New(4, 4, red)
	out, err := PassthroughSegmenter{}.Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestGrabCutSegmenter(t *testing.T) {
	// plain backdrop, so the rectangle seeded path runs
	img := imaging.New(300, 300, white)
	img = imaging.Paste(img, imaging.New(60, 60, red), image.Pt(120, 120))

	seg := NewGrabCutSegmenter(5, 800)
	out, err := seg.Segment(context.Background(), img)
	require.NoError(t, err)

	cutout := imaging.Clone(out)
	assert.Equal(t, img.Bounds(), cutout.Bounds())
	assert.Equal(t, uint8(0), cutout.NRGBAAt(2, 2).A, "frame is background")
	assert.Equal(t, uint8(255), cutout.NRGBAAt(150, 150).A, "garment is kept")
	assert.Equal(t, uint8(255), cutout.NRGBAAt(150, 150).R)

	src, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, sceneSimple, analyzeScene(&src))
}

func TestGrabCutSegmenter_TooSmall(t *testing.T) {
	_, err := NewGrabCutSegmenter(5, 800).Segment(context.Background(), imaging.New(8, 8, red))
	assert.ErrorContains(t, err, "too small")
}
