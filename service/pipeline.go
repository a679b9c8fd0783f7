package service

import (
	"image"

	"github.com/zkaueo/roblox-clothing-ia/config"
)

// Stage is one step of the per-view normalization.
type Stage struct {
	Name  string
	Apply func(img *image.NRGBA, params FitParams) *image.NRGBA
}

var (
	cleanStage = Stage{Name: "clean_alpha", Apply: func(img *image.NRGBA, p FitParams) *image.NRGBA {
		return CleanAlpha(img, p.AlphaThreshold)
	}}
	straightenStage = Stage{Name: "straighten", Apply: func(img *image.NRGBA, _ FitParams) *image.NRGBA {
		return Straighten(img)
	}}
	extractStage = Stage{Name: "extract_region", Apply: func(img *image.NRGBA, p FitParams) *image.NRGBA {
		return ExtractRegion(img, p.MinRegionArea)
	}}
	adjustStage = Stage{Name: "adjust_color", Apply: func(img *image.NRGBA, p FitParams) *image.NRGBA {
		return AdjustColor(img, p.Brightness, p.Contrast)
	}}
)

// Pipeline turns a garment cutout into one composite per detected view.
// It holds no per-job state and is safe for concurrent use.
type Pipeline struct {
	templates TemplateLoader
	split     bool
	stages    []Stage
}

// NewPipeline builds the stage list from the configuration switches. Alpha cleaning
// and region extraction always run; splitting, straightening and colour adjustment
// are optional.
func NewPipeline(templates TemplateLoader, cfg *config.PipelineConfig) *Pipeline {
	stages := []Stage{cleanStage}
	if cfg.Straighten {
		stages = append(stages, straightenStage)
	}
	stages = append(stages, extractStage)
	if cfg.Adjust {
		stages = append(stages, adjustStage)
	}

	return &Pipeline{
		templates: templates,
		split:     cfg.Split,
		stages:    stages,
	}
}

// StageNames lists the enabled per-view stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages)+1)
	if p.split {
		names = append(names, "split_views")
	}
	for _, s := range p.stages {
		names = append(names, s.Name)
	}
	return append(names, "composite")
}

// Template resolves the template for garmentType.
func (p *Pipeline) Template(garmentType string) (*image.NRGBA, error) {
	return p.templates.Load(garmentType)
}

// NormalizeAndFit runs the pipeline and returns one composite per garment view (1 or 2).
// Only template resolution can fail; the geometric stages degrade to passthrough.
func (p *Pipeline) NormalizeAndFit(cutout image.Image, garmentType string, params FitParams) ([]*image.NRGBA, error) {
	template, err := p.Template(garmentType)
	if err != nil {
		return nil, err
	}
	return p.fit(cutout, template, params), nil
}

// fit runs the stages against an already resolved template. template is only read.
func (p *Pipeline) fit(cutout image.Image, template *image.NRGBA, params FitParams) []*image.NRGBA {
	var views []*image.NRGBA
	if p.split {
		views = SplitViews(cutout, params.DualViewAspect)
	} else {
		views = []*image.NRGBA{toNRGBA(cutout)}
	}

	outputs := make([]*image.NRGBA, 0, len(views))
	for _, view := range views {
		for _, s := range p.stages {
			view = s.Apply(view, params)
		}
		outputs = append(outputs, Composite(view, template, params))
	}
	return outputs
}
