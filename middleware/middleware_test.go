package middleware

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(), CORS())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.POST("/upload", func(c *gin.Context) {
		if c.PostForm("garment_type") == "cape" {
			_ = c.Error(errors.New("garment type \"cape\" is not registered"))
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return r
}

func TestCORS(t *testing.T) {
	r := newRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := utils.Logger
	utils.Logger = zap.New(core)
	defer func() { utils.Logger = prev }()

	r := newRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping?x=1", nil))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "/ping", fields["path"])
		assert.Equal(t, "x=1", fields["query"])
		assert.Equal(t, int64(http.StatusOK), fields["status"])
	}
}

func observeRequests(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	prev := utils.Logger
	utils.Logger = zap.New(core)
	t.Cleanup(func() { utils.Logger = prev })
	return logs
}

func postForm(t *testing.T, r *gin.Engine, garmentType string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	assert.NoError(t, w.WriteField("garment_type", garmentType))
	assert.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestLogger_UploadFields(t *testing.T) {
	logs := observeRequests(t)
	r := newRouter()

	postForm(t, r, "shirt")
	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "shirt", fields["garment_type"])
		assert.Greater(t, fields["body_size"], int64(0))
		assert.NotContains(t, fields, "errors")
	}
}

func TestLogger_Levels(t *testing.T) {
	logs := observeRequests(t)
	r := newRouter()

	postForm(t, r, "cape")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "cape", entries[0].ContextMap()["garment_type"])
		assert.Contains(t, entries[0].ContextMap()["errors"], `garment type "cape" is not registered`)

		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.NotContains(t, entries[1].ContextMap(), "garment_type")
	}
}
