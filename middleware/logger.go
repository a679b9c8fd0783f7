package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 请求日志：4xx 记为 warn，5xx 记为 error
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if c.Request.ContentLength > 0 {
			fields = append(fields, zap.Int64("body_size", c.Request.ContentLength))
		}
		// only read the form if the handler already parsed it
		if form := c.Request.MultipartForm; form != nil {
			if v := form.Value["garment_type"]; len(v) > 0 {
				fields = append(fields, zap.String("garment_type", v[0]))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		if ce := utils.Logger.Check(levelFor(status), "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
