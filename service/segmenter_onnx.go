package service

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	onnxInputSize  = 320
	onnxInputName  = "input.1"
	onnxOutputName = "1959"
)

var (
	onnxMean = [3]float32{0.485, 0.456, 0.406}
	onnxStd  = [3]float32{0.229, 0.224, 0.225}

	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXSegmenter runs a u2netp style saliency model locally and turns its mask into
// the alpha channel of the cutout.
type ONNXSegmenter struct {
	session   *ort.DynamicAdvancedSession
	sessionMu sync.Mutex
	pool      *tensorPool
}

func NewONNXSegmenter(modelPath, libraryPath string) (*ONNXSegmenter, error) {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ORT env: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(2)
	options.SetInterOpNumThreads(1)
	options.SetCpuMemArena(false)
	options.SetMemPattern(true)

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXSegmenter{
		session: session,
		pool:    newTensorPool(),
	}, nil
}

func (s *ONNXSegmenter) Close() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

func (s *ONNXSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := s.pool.getInput()
	if err != nil {
		return nil, err
	}
	output, err := s.pool.getOutput()
	if err != nil {
		s.pool.putInput(input)
		return nil, err
	}
	defer func() {
		s.pool.putInput(input)
		s.pool.putOutput(output)
	}()

	resized := imaging.Resize(img, onnxInputSize, onnxInputSize, imaging.Linear)
	fillInput(input.GetData(), resized)

	s.sessionMu.Lock()
	err = s.session.Run([]ort.Value{input}, []ort.Value{output})
	s.sessionMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	mask := image.NewGray(image.Rect(0, 0, onnxInputSize, onnxInputSize))
	for i, v := range output.GetData() {
		p := 1 / (1 + math.Exp(-float64(v)))
		mask.Pix[i] = uint8(math.Round(p * 255))
	}

	return applyMask(img, mask), nil
}

// fillInput writes the normalized CHW planes of a 320x320 image into data.
func fillInput(data []float32, img *image.NRGBA) {
	plane := onnxInputSize * onnxInputSize
	for y := 0; y < onnxInputSize; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+onnxInputSize*4]
		for x := 0; x < onnxInputSize; x++ {
			base := x * 4
			for c := 0; c < 3; c++ {
				data[c*plane+y*onnxInputSize+x] = (float32(row[base+c])/255.0 - onnxMean[c]) / onnxStd[c]
			}
		}
	}
}

type tensorPool struct {
	inputPool  sync.Pool
	outputPool sync.Pool
}

func newTensorPool() *tensorPool {
	return &tensorPool{}
}

func (p *tensorPool) getInput() (*ort.Tensor[float32], error) {
	if t, ok := p.inputPool.Get().(*ort.Tensor[float32]); ok {
		return t, nil
	}
	t, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, onnxInputSize, onnxInputSize))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	return t, nil
}

func (p *tensorPool) putInput(t *ort.Tensor[float32]) {
	p.inputPool.Put(t)
}

func (p *tensorPool) getOutput() (*ort.Tensor[float32], error) {
	if t, ok := p.outputPool.Get().(*ort.Tensor[float32]); ok {
		return t, nil
	}
	t, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, onnxInputSize, onnxInputSize))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	return t, nil
}

func (p *tensorPool) putOutput(t *ort.Tensor[float32]) {
	p.outputPool.Put(t)
}
