package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestCombinedMD5(t *testing.T) {
	// boundaries between parts matter
	assert.NotEqual(t, CombinedMD5([]byte("ab"), []byte("c")), CombinedMD5([]byte("a"), []byte("bc")))
	assert.Equal(t, CombinedMD5([]byte("a"), []byte("b")), CombinedMD5([]byte("a"), []byte("b")))
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()
	assert.NotEqual(t, a, b)
	assert.True(t, ValidID(a))
	assert.False(t, ValidID("../../etc/passwd"))
	assert.False(t, ValidID(""))
}

func TestLoggerDefault(t *testing.T) {
	assert.NotNil(t, Logger)
	Logger.Info("no-op logger accepts writes")
	prev := Logger
	defer func() { Logger = prev }()

	assert.NoError(t, InitLogger("release", ""))
	assert.NotNil(t, Logger)

	assert.NoError(t, InitLogger("debug", "warn"))
	assert.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, InitLogger("debug", "loud"))
}
