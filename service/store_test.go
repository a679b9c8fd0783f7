package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/model"
	"github.com/zkaueo/roblox-clothing-ia/utils"
)

func newTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc := NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestRedisService_JobResult(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, svc.Ping(ctx))

	got, err := svc.GetJobResult(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got, "miss is not an error")

	result := &model.JobResult{
		JobID:       "job-1",
		MD5:         "abc",
		GarmentType: "shirt",
		Outputs:     []model.Output{{ID: "o1", View: "front", Width: 585, Height: 559}},
		Stages:      []string{"clean_alpha", "composite"},
	}
	require.NoError(t, svc.SetJobResult(ctx, "abc", result))

	got, err = svc.GetJobResult(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, result, got)
	assert.Equal(t, time.Hour, mr.TTL("job:abc"))

	mr.FastForward(2 * time.Hour)
	got, err = svc.GetJobResult(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisService_CorruptEntry(t *testing.T) {
	svc, mr := newTestRedis(t)
	require.NoError(t, mr.Set("job:bad", "{not json"))

	_, err := svc.GetJobResult(context.Background(), "bad")
	assert.Error(t, err)
}

func newTestOutputStore(t *testing.T, retention time.Duration) *OutputStore {
	t.Helper()
	store, err := NewOutputStore(&config.OutputConfig{Dir: filepath.Join(t.TempDir(), "outputs"), Retention: retention})
	require.NoError(t, err)
	return store
}

func TestOutputStore_SaveAndPath(t *testing.T) {
	store := newTestOutputStore(t, time.Hour)
	img := canvasWithRects(20, 10, red, image.Rect(0, 0, 10, 10))

	id, err := store.Save(img)
	require.NoError(t, err)
	assert.True(t, utils.ValidID(id))

	path, err := store.Path(id)
	require.NoError(t, err)
	saved, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, imaging.Clone(saved).Pix)

	assert.True(t, store.Exists(id))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	store.Delete(id)
	assert.False(t, store.Exists(id))
	_, err = store.Path(id)
	assert.True(t, errors.Is(err, ErrOutputNotFound))
}

func TestOutputStore_InvalidID(t *testing.T) {
	store := newTestOutputStore(t, time.Hour)
	for _, id := range []string{"", "../../etc/passwd", "abc", utils.GenerateID()} {
		_, err := store.Path(id)
		assert.ErrorIs(t, err, ErrOutputNotFound, "id %q", id)
	}
	store.Delete("../../etc/passwd")
}

func TestOutputStore_Sweep(t *testing.T) {
	store := newTestOutputStore(t, time.Hour)
	for i := 0; i < 3; i++ {
		_, err := store.Save(imaging.New(4, 4, red))
		require.NoError(t, err)
	}

	n, err := store.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.Sweep(time.Now().Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	keep := newTestOutputStore(t, 0)
	_, err = keep.Save(imaging.New(4, 4, red))
	require.NoError(t, err)
	n, err = keep.Sweep(time.Now().Add(1000 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "zero retention keeps everything")
}

func TestOutputStore_StartSweeper(t *testing.T) {
	store := newTestOutputStore(t, time.Hour)

	c, err := store.StartSweeper("@every 1h")
	require.NoError(t, err)
	c.Stop()

	_, err = store.StartSweeper("every now and then")
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("front image: %w", newError(KindInvalidImage, errors.New("eof"), "decode failed"))

	assert.True(t, errors.Is(err, ErrInvalidImage))
	assert.False(t, errors.Is(err, ErrBusy))
	assert.Equal(t, KindInvalidImage, KindOf(err))
	assert.Equal(t, "front image: invalid_image: decode failed: eof", err.Error())

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
