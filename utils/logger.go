package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is replaced by InitLogger; the no-op default keeps packages usable before that.
var Logger = zap.NewNop()

// InitLogger builds the global logger. release mode logs JSON, any other mode logs
// coloured console output. An empty level keeps the mode's default.
func InitLogger(mode, level string) error {
	var config zap.Config
	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	Logger = logger.With(zap.String("service", "roblox-clothing-ia"))
	return nil
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
