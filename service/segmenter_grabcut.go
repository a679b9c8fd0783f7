package service

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCut mask labels.
const (
	gcBackground   = 0
	gcForeground   = 1
	gcProbBack     = 2
	gcProbFore     = 3
	grabCutMinSide = 16
)

type sceneLevel string

const (
	sceneSimple  sceneLevel = "simple"
	sceneMedium  sceneLevel = "medium"
	sceneComplex sceneLevel = "complex"
)

// GrabCutSegmenter separates a garment photo from its background without a model.
// Plain backdrops are seeded with a border rectangle, busy ones with a gradient
// saliency mask.
type GrabCutSegmenter struct {
	iterations int
	workSize   int
}

func NewGrabCutSegmenter(iterations, workSize int) *GrabCutSegmenter {
	return &GrabCutSegmenter{
		iterations: max(1, iterations),
		workSize:   max(grabCutMinSide, workSize),
	}
}

func (s *GrabCutSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() < grabCutMinSide || b.Dy() < grabCutMinSide {
		return nil, fmt.Errorf("image %dx%d too small for grabcut", b.Dx(), b.Dy())
	}

	// 缩放到工作尺寸以控制耗时
	work := img
	if max(b.Dx(), b.Dy()) > s.workSize {
		work = imaging.Fit(img, s.workSize, s.workSize, imaging.Box)
	}

	src, err := gocv.ImageToMatRGB(work)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	level := analyzeScene(&src)
	mask, err := s.cut(&src, level)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	utils.Logger.Debug("grabcut finished",
		zap.String("scene", string(level)),
		zap.Int("width", src.Cols()),
		zap.Int("height", src.Rows()))

	alpha, err := maskToGray(&mask)
	if err != nil {
		return nil, err
	}
	return applyMask(img, alpha), nil
}

// cut runs GrabCut and returns a cleaned 0/255 foreground mask the size of src.
func (s *GrabCutSegmenter) cut(src *gocv.Mat, level sceneLevel) (gocv.Mat, error) {
	w, h := src.Cols(), src.Rows()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := s.iterations
	var labels gocv.Mat
	if level == sceneSimple {
		iterations = max(1, s.iterations-2)
		border := max(1, w/20)
		labels = gocv.NewMat()
		gocv.GrabCut(*src, &labels, image.Rect(border, border, w-border, h-border),
			&bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)
	} else {
		if level == sceneComplex {
			iterations += 2
		}
		labels = saliencySeed(src)
		gocv.GrabCut(*src, &labels, image.Rectangle{}, &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)
	}
	defer labels.Close()

	if labels.Empty() {
		return gocv.NewMat(), fmt.Errorf("grabcut produced no mask")
	}

	fg := foregroundLabels(&labels)
	defer fg.Close()

	kernelSize := 3
	if level == sceneComplex {
		kernelSize = 5
	}
	return smoothMask(&fg, kernelSize), nil
}

// analyzeScene grades how busy the backdrop is from edge density and colour spread.
func analyzeScene(img *gocv.Mat) sceneLevel {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)
	edgeDensity := float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	spread := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		spread += stddev.GetDoubleAt(i, 0)
	}
	spread /= float64(max(1, stddev.Rows()))

	switch {
	case edgeDensity < 0.05 && spread < 30:
		return sceneSimple
	case edgeDensity > 0.15 || spread > 60:
		return sceneComplex
	default:
		return sceneMedium
	}
}

// saliencySeed labels high-gradient areas as probable foreground, a thin frame as
// certain background and everything else as probable background.
func saliencySeed(img *gocv.Mat) gocv.Mat {
	w, h := img.Cols(), img.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	absY := gocv.NewMat()
	defer absY.Close()
	gocv.ConvertScaleAbs(gradX, &absX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absX, 0.5, absY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Pt(21, 21), 0, 0, gocv.BorderDefault)

	salient := gocv.NewMat()
	defer salient.Close()
	gocv.Threshold(blurred, &salient, 0, 255, gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(11, 11))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(salient, &dilated, kernel)

	labels := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	frame := max(1, w*3/100)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8 = gcProbBack
			switch {
			case x < frame || x >= w-frame || y < frame || y >= h-frame:
				v = gcBackground
			case dilated.GetUCharAt(y, x) > 128:
				v = gcProbFore
			}
			labels.SetUCharAt(y, x, v)
		}
	}
	return labels
}

// foregroundLabels turns GrabCut labels into a 0/255 mask of certain and probable foreground.
func foregroundLabels(labels *gocv.Mat) gocv.Mat {
	fg := gocv.NewMatWithSize(labels.Rows(), labels.Cols(), gocv.MatTypeCV8U)
	for y := 0; y < labels.Rows(); y++ {
		for x := 0; x < labels.Cols(); x++ {
			switch labels.GetUCharAt(y, x) {
			case gcForeground, gcProbFore:
				fg.SetUCharAt(y, x, 255)
			default:
				fg.SetUCharAt(y, x, 0)
			}
		}
	}
	return fg
}

// smoothMask removes speckles and fills pinholes with an open then close.
func smoothMask(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	return closed
}

func maskToGray(mask *gocv.Mat) (*image.Gray, error) {
	if mask.Empty() {
		return nil, fmt.Errorf("empty mask")
	}
	g := image.NewGray(image.Rect(0, 0, mask.Cols(), mask.Rows()))
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			g.Pix[y*g.Stride+x] = mask.GetUCharAt(y, x)
		}
	}
	return g, nil
}

// applyMask scales alpha to img's size and multiplies it into img's alpha channel.
func applyMask(img image.Image, alpha *image.Gray) *image.NRGBA {
	b := img.Bounds()
	scaledAlpha := imaging.Resize(alpha, b.Dx(), b.Dy(), imaging.Linear)

	cutout := imaging.Clone(img)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*cutout.Stride + x*4 + 3
			// Resize returns NRGBA; all channels carry the gray value.
			a := scaledAlpha.Pix[y*scaledAlpha.Stride+x*4]
			cutout.Pix[i] = uint8(uint16(cutout.Pix[i]) * uint16(a) / 255)
		}
	}
	return cutout
}
