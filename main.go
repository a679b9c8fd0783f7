package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/handler"
	"github.com/zkaueo/roblox-clothing-ia/middleware"
	"github.com/zkaueo/roblox-clothing-ia/service"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Server.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting garment server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 初始化Redis，连接失败时不使用缓存
	var cache service.JobCache
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
		cache = redisService
	}
	defer redisService.Close()

	// 模板
	templates := service.NewTemplateStore(cfg.Templates)
	templates.Preload()

	// 抠图
	segmenter, err := service.NewSegmenter(&cfg.Segmentation)
	if err != nil {
		utils.Logger.Fatal("failed to create segmenter", zap.Error(err))
	}
	if closer, ok := segmenter.(io.Closer); ok {
		defer closer.Close()
	}
	utils.Logger.Info("segmenter ready", zap.String("provider", cfg.Segmentation.Provider))

	// 输出目录与定时清理
	outputs, err := service.NewOutputStore(&cfg.Output)
	if err != nil {
		utils.Logger.Fatal("failed to create output store", zap.Error(err))
	}
	sweeper, err := outputs.StartSweeper(cfg.Output.SweepSpec)
	if err != nil {
		utils.Logger.Fatal("failed to start output sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	pipeline := service.NewPipeline(templates, &cfg.Pipeline)
	garmentService := service.NewGarmentService(cfg, pipeline, segmenter, outputs, cache)

	// 初始化Handler
	generateHandler := handler.NewGenerateHandler(cfg, garmentService, outputs)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "running",
			"garment_types": templates.Types(),
			"stages":        pipeline.StageNames(),
		})
	})

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/generate", generateHandler.Generate)
		api.GET("/output/:id", generateHandler.GetOutput)
		api.GET("/job/:md5", generateHandler.GetJob)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
