package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/utils/httpclient"
)

// Segmenter isolates the garment from its background and returns an RGBA cutout.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// NewSegmenter picks the segmentation backend named in the configuration.
func NewSegmenter(cfg *config.SegmentationConfig) (Segmenter, error) {
	switch cfg.Provider {
	case "", "none":
		return PassthroughSegmenter{}, nil
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("segmentation endpoint is required for provider http")
		}
		return NewRemoteSegmenter(cfg.Endpoint, cfg.Timeout, httpclient.NewHTTPClient()), nil
	case "grabcut":
		return NewGrabCutSegmenter(cfg.Iterations, cfg.WorkSize), nil
	case "onnx":
		return NewONNXSegmenter(cfg.ModelPath, cfg.LibraryPath)
	default:
		return nil, fmt.Errorf("unknown segmentation provider %q", cfg.Provider)
	}
}

// PassthroughSegmenter treats every upload as an existing cutout.
type PassthroughSegmenter struct{}

func (PassthroughSegmenter) Segment(_ context.Context, img image.Image) (image.Image, error) {
	return img, nil
}

// RemoteSegmenter posts the image as multipart field "file" to a background removal
// service and expects the PNG cutout as the response body.
type RemoteSegmenter struct {
	endpoint string
	timeout  time.Duration
	cli      httpclient.IClient
}

func NewRemoteSegmenter(endpoint string, timeout time.Duration, cli httpclient.IClient) *RemoteSegmenter {
	return &RemoteSegmenter{
		endpoint: endpoint,
		timeout:  timeout,
		cli:      cli,
	}
}

func (s *RemoteSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "garment.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(encoded.Bytes()); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = writer.Close()

	var resp []byte
	reqParam := &httpclient.RequestParam{
		RequestURI: s.endpoint,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
		Timeout:    s.timeout,
	}
	if err := s.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	cutout, err := imaging.Decode(bytes.NewReader(resp))
	if err != nil {
		return nil, fmt.Errorf("decode cutout: %w", err)
	}
	return cutout, nil
}
