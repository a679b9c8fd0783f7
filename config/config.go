package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Templates    map[string]string  `mapstructure:"templates"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Output       OutputConfig       `mapstructure:"output"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	LogLevel     string        `mapstructure:"log_level"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	MaxDimension int      `mapstructure:"max_dimension"`
	MaxPixels    int64    `mapstructure:"max_pixels"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// PipelineConfig holds the default fit parameters and the stage switches.
type PipelineConfig struct {
	Split      bool `mapstructure:"split"`
	Straighten bool `mapstructure:"straighten"`
	Adjust     bool `mapstructure:"adjust"`
	Shadow     bool `mapstructure:"shadow"`

	XOffset          int     `mapstructure:"x_offset"`
	YOffset          int     `mapstructure:"y_offset"`
	ScaleFactor      float64 `mapstructure:"scale_factor"`
	Brightness       float64 `mapstructure:"brightness"`
	Contrast         float64 `mapstructure:"contrast"`
	ShadowOffsetX    int     `mapstructure:"shadow_offset_x"`
	ShadowOffsetY    int     `mapstructure:"shadow_offset_y"`
	ShadowBlurRadius float64 `mapstructure:"shadow_blur_radius"`
	AlphaThreshold   int     `mapstructure:"alpha_threshold"`
	MinRegionArea    float64 `mapstructure:"min_region_area"`
	DualViewAspect   float64 `mapstructure:"dual_view_aspect_threshold"`
}

type SegmentationConfig struct {
	// Provider is one of "none", "http", "grabcut" or "onnx".
	Provider    string        `mapstructure:"provider"`
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ModelPath   string        `mapstructure:"model_path"`
	LibraryPath string        `mapstructure:"library_path"`
	Iterations  int           `mapstructure:"iterations"`
	WorkSize    int           `mapstructure:"work_size"`
}

type OutputConfig struct {
	Dir       string        `mapstructure:"dir"`
	Retention time.Duration `mapstructure:"retention"`
	SweepSpec string        `mapstructure:"sweep_spec"`
}

type WorkerConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	QueueTimeout  int `mapstructure:"queue_timeout"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.max_dimension", d.Upload.MaxDimension)
	v.SetDefault("upload.max_pixels", d.Upload.MaxPixels)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("pipeline.split", d.Pipeline.Split)
	v.SetDefault("pipeline.straighten", d.Pipeline.Straighten)
	v.SetDefault("pipeline.adjust", d.Pipeline.Adjust)
	v.SetDefault("pipeline.shadow", d.Pipeline.Shadow)
	v.SetDefault("pipeline.x_offset", d.Pipeline.XOffset)
	v.SetDefault("pipeline.y_offset", d.Pipeline.YOffset)
	v.SetDefault("pipeline.scale_factor", d.Pipeline.ScaleFactor)
	v.SetDefault("pipeline.brightness", d.Pipeline.Brightness)
	v.SetDefault("pipeline.contrast", d.Pipeline.Contrast)
	v.SetDefault("pipeline.shadow_offset_x", d.Pipeline.ShadowOffsetX)
	v.SetDefault("pipeline.shadow_offset_y", d.Pipeline.ShadowOffsetY)
	v.SetDefault("pipeline.shadow_blur_radius", d.Pipeline.ShadowBlurRadius)
	v.SetDefault("pipeline.alpha_threshold", d.Pipeline.AlphaThreshold)
	v.SetDefault("pipeline.min_region_area", d.Pipeline.MinRegionArea)
	v.SetDefault("pipeline.dual_view_aspect_threshold", d.Pipeline.DualViewAspect)

	v.SetDefault("templates", d.Templates)

	v.SetDefault("segmentation.provider", d.Segmentation.Provider)
	v.SetDefault("segmentation.endpoint", d.Segmentation.Endpoint)
	v.SetDefault("segmentation.timeout", d.Segmentation.Timeout)
	v.SetDefault("segmentation.model_path", d.Segmentation.ModelPath)
	v.SetDefault("segmentation.library_path", d.Segmentation.LibraryPath)
	v.SetDefault("segmentation.iterations", d.Segmentation.Iterations)
	v.SetDefault("segmentation.work_size", d.Segmentation.WorkSize)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.retention", d.Output.Retention)
	v.SetDefault("output.sweep_spec", d.Output.SweepSpec)

	v.SetDefault("worker.max_concurrent", d.Worker.MaxConcurrent)
	v.SetDefault("worker.queue_timeout", d.Worker.QueueTimeout)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			LogLevel:     "info",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			MaxDimension: 2048,
			MaxPixels:    40_000_000,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		},
		Pipeline: PipelineConfig{
			Split:            true,
			Straighten:       true,
			Adjust:           true,
			Shadow:           true,
			XOffset:          0,
			YOffset:          0,
			ScaleFactor:      1.0,
			Brightness:       1.1,
			Contrast:         1.15,
			ShadowOffsetX:    5,
			ShadowOffsetY:    5,
			ShadowBlurRadius: 5,
			AlphaThreshold:   10,
			MinRegionArea:    500,
			DualViewAspect:   1.3,
		},
		Templates: map[string]string{
			"shirt":  "./templates/shirt.png",
			"pants":  "./templates/pants.png",
			"hoodie": "./templates/hoodie.png",
		},
		Segmentation: SegmentationConfig{
			Provider:   "none",
			Timeout:    30 * time.Second,
			Iterations: 5,
			WorkSize:   800,
		},
		Output: OutputConfig{
			Dir:       "./outputs",
			Retention: 72 * time.Hour,
			SweepSpec: "@every 1h",
		},
		Worker: WorkerConfig{
			MaxConcurrent: 3,
			QueueTimeout:  30,
		},
	}
}
