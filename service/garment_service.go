package service

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/model"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

// GenerateRequest is one generation job: a required front photo, an optional back
// photo and the fit parameters to apply to both.
type GenerateRequest struct {
	GarmentType string
	Front       []byte
	Back        []byte
	Params      FitParams
}

// GarmentService 负责生成任务的调度：解码、抠图、管线处理、保存与缓存
type GarmentService struct {
	pipeline     *Pipeline
	segmenter    Segmenter
	outputs      *OutputStore
	cache        JobCache
	decodeOpts   DecodeOptions
	defaults     FitParams
	semaphore    chan struct{}
	queueTimeout time.Duration
}

// NewGarmentService wires the job dependencies. cache may be nil.
func NewGarmentService(cfg *config.Config, pipeline *Pipeline, segmenter Segmenter, outputs *OutputStore, cache JobCache) *GarmentService {
	return &GarmentService{
		pipeline:  pipeline,
		segmenter: segmenter,
		outputs:   outputs,
		cache:     cache,
		decodeOpts: DecodeOptions{
			AllowedTypes: cfg.Upload.AllowedTypes,
			MaxDimension: cfg.Upload.MaxDimension,
			MaxPixels:    cfg.Upload.MaxPixels,
		},
		defaults:     NewFitParams(&cfg.Pipeline),
		semaphore:    make(chan struct{}, max(1, cfg.Worker.MaxConcurrent)),
		queueTimeout: time.Duration(cfg.Worker.QueueTimeout) * time.Second,
	}
}

// DefaultParams returns a copy of the configured fit parameters.
func (s *GarmentService) DefaultParams() FitParams {
	return s.defaults
}

type viewSource struct {
	label string
	data  []byte
}

type rendered struct {
	view string
	img  *image.NRGBA
}

// Generate runs a job. Parameters and the garment type are checked before any upload
// is decoded. Nothing is written to the output store unless every view of every
// uploaded image was processed.
func (s *GarmentService) Generate(ctx context.Context, req GenerateRequest) (*model.JobResult, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	template, err := s.pipeline.Template(req.GarmentType)
	if err != nil {
		return nil, err
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-s.semaphore }()

	startTime := time.Now()
	md5 := s.jobKey(req)

	if cached := s.cachedResult(ctx, md5); cached != nil {
		utils.Logger.Info("cache hit", zap.String("md5", md5))
		return cached, nil
	}

	sources := []viewSource{{label: "front", data: req.Front}}
	if len(req.Back) > 0 {
		sources = append(sources, viewSource{label: "back", data: req.Back})
	}

	var (
		results  []rendered
		warnings []string
	)
	for _, src := range sources {
		img, err := DecodeImage(src.data, s.decodeOpts)
		if err != nil {
			return nil, fmt.Errorf("%s image: %w", src.label, err)
		}

		cutout, warning := s.segment(ctx, img)
		if warning != "" {
			warnings = append(warnings, src.label+": "+warning)
		}

		composites := s.pipeline.fit(cutout, template, req.Params)
		for i, c := range composites {
			results = append(results, rendered{view: viewName(src.label, i, len(composites)), img: c})
		}
	}

	outputs, err := s.save(results)
	if err != nil {
		return nil, err
	}

	result := &model.JobResult{
		JobID:       utils.GenerateID(),
		MD5:         md5,
		GarmentType: normalizeGarmentType(req.GarmentType),
		Outputs:     outputs,
		Stages:      s.pipeline.StageNames(),
		Warnings:    warnings,
		Timestamp:   time.Now().Unix(),
	}

	if s.cache != nil {
		if err := s.cache.SetJobResult(ctx, md5, result); err != nil {
			utils.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}

	utils.Logger.Info("garment job finished",
		zap.String("job_id", result.JobID),
		zap.String("md5", md5),
		zap.String("garment_type", result.GarmentType),
		zap.Int("outputs", len(outputs)),
		zap.Duration("duration", time.Since(startTime)))

	return result, nil
}

// acquire takes a worker slot, waiting at most the queue timeout.
func (s *GarmentService) acquire(ctx context.Context) error {
	select {
	case s.semaphore <- struct{}{}:
		return nil
	default:
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		return newError(KindBusy, waitCtx.Err(), "processing queue is full, retry later")
	}
}

// Lookup returns a previous job result by its md5, or nil when unknown or expired.
func (s *GarmentService) Lookup(ctx context.Context, md5 string) (*model.JobResult, error) {
	if s.cache == nil {
		return nil, nil
	}
	result, err := s.cache.GetJobResult(ctx, md5)
	if err != nil || result == nil {
		return nil, err
	}
	if !s.outputs.Exists(outputIDs(result)...) {
		return nil, nil
	}
	return result, nil
}

// segment isolates the garment. A failing segmenter is not fatal: the original
// image is used and a warning is returned.
func (s *GarmentService) segment(ctx context.Context, img image.Image) (image.Image, string) {
	cutout, err := s.segmenter.Segment(ctx, img)
	if err != nil {
		utils.Logger.Warn("segmentation failed, using original image", zap.Error(err))
		return img, newError(KindSegmentationFailure, err, "used original image").Error()
	}
	return cutout, ""
}

func (s *GarmentService) cachedResult(ctx context.Context, md5 string) *model.JobResult {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetJobResult(ctx, md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		return nil
	}
	if cached == nil || !s.outputs.Exists(outputIDs(cached)...) {
		return nil
	}
	cached.Cached = true
	return cached
}

func (s *GarmentService) save(results []rendered) ([]model.Output, error) {
	outputs := make([]model.Output, 0, len(results))
	for _, r := range results {
		id, err := s.outputs.Save(r.img)
		if err != nil {
			s.outputs.Delete(outputIDs(&model.JobResult{Outputs: outputs})...)
			return nil, fmt.Errorf("save output: %w", err)
		}
		b := r.img.Bounds()
		outputs = append(outputs, model.Output{
			ID:     id,
			View:   r.view,
			Width:  b.Dx(),
			Height: b.Dy(),
		})
	}
	return outputs, nil
}

// jobKey hashes everything that determines the outputs.
func (s *GarmentService) jobKey(req GenerateRequest) string {
	params, _ := json.Marshal(req.Params)
	return utils.CombinedMD5(
		req.Front,
		req.Back,
		[]byte(normalizeGarmentType(req.GarmentType)),
		params,
		[]byte(fmt.Sprint(s.pipeline.StageNames())),
	)
}

func viewName(label string, i, n int) string {
	if n == 1 {
		return label
	}
	if i == 0 {
		return label + "_left"
	}
	return label + "_right"
}

func outputIDs(r *model.JobResult) []string {
	ids := make([]string, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		ids = append(ids, o.ID)
	}
	return ids
}
