package service

import (
	"image"
	"math"

	"github.com/zkaueo/roblox-clothing-ia/config"
)

// FitParams controls how a normalized garment is cleaned, coloured and placed.
type FitParams struct {
	XOffset          int         `json:"x_offset"`
	YOffset          int         `json:"y_offset"`
	ScaleFactor      float64     `json:"scale_factor"`
	Brightness       float64     `json:"brightness"`
	Contrast         float64     `json:"contrast"`
	Shadow           bool        `json:"shadow"`
	ShadowOffset     image.Point `json:"shadow_offset"`
	ShadowBlurRadius float64     `json:"shadow_blur_radius"`
	AlphaThreshold   uint8       `json:"alpha_threshold"`
	MinRegionArea    float64     `json:"min_region_area"`
	DualViewAspect   float64     `json:"dual_view_aspect_threshold"`
}

// Upper bounds accepted by Validate.
const (
	MaxScaleFactor      = 8.0
	MaxColorFactor      = 10.0
	MaxShadowBlurRadius = maxShadowBlurRadius
	MaxDualViewAspect   = 100.0
)

// Validate rejects parameters that are NaN, infinite or outside their working range.
func (p FitParams) Validate() error {
	checks := []struct {
		name   string
		v      float64
		lo, hi float64
		openLo bool
	}{
		{"scale_factor", p.ScaleFactor, 0, MaxScaleFactor, true},
		{"brightness", p.Brightness, 0, MaxColorFactor, false},
		{"contrast", p.Contrast, 0, MaxColorFactor, false},
		{"shadow_blur_radius", p.ShadowBlurRadius, 0, MaxShadowBlurRadius, false},
		{"dual_view_aspect_threshold", p.DualViewAspect, 0, MaxDualViewAspect, false},
		{"min_region_area", p.MinRegionArea, 0, math.MaxFloat64, false},
	}
	for _, c := range checks {
		inRange := c.v >= c.lo && c.v <= c.hi
		if c.openLo {
			inRange = c.v > c.lo && c.v <= c.hi
		}
		if !inRange {
			if c.openLo {
				return newError(KindInvalidParams, nil, "%s must be in (%g, %g], got %g", c.name, c.lo, c.hi, c.v)
			}
			return newError(KindInvalidParams, nil, "%s must be in [%g, %g], got %g", c.name, c.lo, c.hi, c.v)
		}
	}
	return nil
}

// NewFitParams builds the default parameters from configuration.
func NewFitParams(cfg *config.PipelineConfig) FitParams {
	return FitParams{
		XOffset:          cfg.XOffset,
		YOffset:          cfg.YOffset,
		ScaleFactor:      cfg.ScaleFactor,
		Brightness:       cfg.Brightness,
		Contrast:         cfg.Contrast,
		Shadow:           cfg.Shadow,
		ShadowOffset:     image.Pt(cfg.ShadowOffsetX, cfg.ShadowOffsetY),
		ShadowBlurRadius: cfg.ShadowBlurRadius,
		AlphaThreshold:   uint8(min(max(cfg.AlphaThreshold, 0), 255)),
		MinRegionArea:    cfg.MinRegionArea,
		DualViewAspect:   cfg.DualViewAspect,
	}
}

// DefaultFitParams returns the built-in defaults.
func DefaultFitParams() FitParams {
	return FitParams{
		ScaleFactor:      1.0,
		Brightness:       1.1,
		Contrast:         1.15,
		Shadow:           true,
		ShadowOffset:     image.Pt(5, 5),
		ShadowBlurRadius: 5,
		AlphaThreshold:   10,
		MinRegionArea:    500,
		DualViewAspect:   1.3,
	}
}
