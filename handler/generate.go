package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/model"
	"github.com/zkaueo/roblox-clothing-ia/service"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

// Generator runs garment jobs.
type Generator interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*model.JobResult, error)
	Lookup(ctx context.Context, md5 string) (*model.JobResult, error)
	DefaultParams() service.FitParams
}

// OutputLocator resolves output ids to files.
type OutputLocator interface {
	Path(id string) (string, error)
}

type GenerateHandler struct {
	cfg       *config.Config
	generator Generator
	outputs   OutputLocator
}

func NewGenerateHandler(cfg *config.Config, generator Generator, outputs OutputLocator) *GenerateHandler {
	return &GenerateHandler{
		cfg:       cfg,
		generator: generator,
		outputs:   outputs,
	}
}

// Generate 处理衣物图片上传并生成模板合成图
func (h *GenerateHandler) Generate(c *gin.Context) {
	front, err := h.readImage(c, "front_image", true)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	back, err := h.readImage(c, "back_image", false)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	garmentType := c.PostForm("garment_type")
	if garmentType == "" {
		h.badRequest(c, errors.New("garment_type is required"))
		return
	}

	params, err := parseFitParams(c, h.generator.DefaultParams())
	if err != nil {
		h.badRequest(c, err)
		return
	}

	utils.Logger.Info("garment uploaded",
		zap.String("garment_type", garmentType),
		zap.Int("front_size", len(front)),
		zap.Int("back_size", len(back)))

	result, err := h.generator.Generate(c.Request.Context(), service.GenerateRequest{
		GarmentType: garmentType,
		Front:       front,
		Back:        back,
		Params:      params,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "processed"
	if result.Cached {
		message = "processed (cached)"
	}
	c.JSON(http.StatusOK, model.GenerateResponse{
		Success: true,
		Message: message,
		Data:    withURLs(result),
	})
}

// GetJob 根据MD5获取任务结果
func (h *GenerateHandler) GetJob(c *gin.Context) {
	md5 := c.Param("md5")
	result, err := h.generator.Lookup(c.Request.Context(), md5)
	if err != nil {
		utils.Logger.Error("failed to get job result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "lookup failed",
			Error:   err.Error(),
		})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.GenerateResponse{
		Success: true,
		Message: "found",
		Data:    withURLs(result),
	})
}

// GetOutput serves a generated PNG.
func (h *GenerateHandler) GetOutput(c *gin.Context) {
	path, err := h.outputs.Path(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "output not found",
		})
		return
	}
	c.File(path)
}

func (h *GenerateHandler) readImage(c *gin.Context, field string, required bool) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s is required: %w", field, err)
	}

	if file.Size > h.cfg.Upload.MaxSize {
		return nil, fmt.Errorf("%s exceeds the size limit (%d MB)", field, h.cfg.Upload.MaxSize/(1024*1024))
	}

	return readFormFile(file)
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Filename, err)
	}
	return data, nil
}

func (h *GenerateHandler) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: "invalid request",
		Error:   err.Error(),
	})
}

func (h *GenerateHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := service.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		utils.Logger.Error("failed to process garment", zap.Error(err))
	} else {
		utils.Logger.Warn("garment rejected", zap.Error(err))
	}

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: "processing failed",
		Kind:    string(kind),
		Error:   err.Error(),
	})
}

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidImage, service.KindUnknownGarmentType, service.KindInvalidParams:
		return http.StatusBadRequest
	case service.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseFitParams overrides defaults with any fit fields present in the form.
func parseFitParams(c *gin.Context, p service.FitParams) (service.FitParams, error) {
	ints := map[string]*int{
		"x_offset":        &p.XOffset,
		"y_offset":        &p.YOffset,
		"shadow_offset_x": &p.ShadowOffset.X,
		"shadow_offset_y": &p.ShadowOffset.Y,
	}
	for key, dst := range ints {
		if v, ok := c.GetPostForm(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, fmt.Errorf("%s must be an integer", key)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"scale_factor":               &p.ScaleFactor,
		"brightness":                 &p.Brightness,
		"contrast":                   &p.Contrast,
		"shadow_blur_radius":         &p.ShadowBlurRadius,
		"min_region_area":            &p.MinRegionArea,
		"dual_view_aspect_threshold": &p.DualViewAspect,
	}
	for key, dst := range floats {
		if v, ok := c.GetPostForm(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return p, fmt.Errorf("%s must be a non-negative number", key)
			}
			*dst = f
		}
	}
	if v, ok := c.GetPostForm("alpha_threshold"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return p, errors.New("alpha_threshold must be between 0 and 255")
		}
		p.AlphaThreshold = uint8(n)
	}

	if v, ok := c.GetPostForm("shadow"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, errors.New("shadow must be a boolean")
		}
		p.Shadow = b
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func withURLs(result *model.JobResult) *model.JobResult {
	for i := range result.Outputs {
		result.Outputs[i].URL = "/api/v1/output/" + result.Outputs[i].ID
	}
	return result
}
