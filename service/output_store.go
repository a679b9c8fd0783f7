package service

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/robfig/cron/v3"
	"github.com/zkaueo/roblox-clothing-ia/config"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

var ErrOutputNotFound = errors.New("output not found")

const outputExt = ".png"

// OutputStore persists composites as PNG files named by generated id.
type OutputStore struct {
	dir       string
	retention time.Duration
}

func NewOutputStore(cfg *config.OutputConfig) (*OutputStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &OutputStore{
		dir:       cfg.Dir,
		retention: cfg.Retention,
	}, nil
}

// Save encodes img and returns its id. The file is written under a temporary name
// and renamed, so readers never see a partial PNG.
func (s *OutputStore) Save(img image.Image) (string, error) {
	id := utils.GenerateID()

	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.file(id)); err != nil {
		return "", fmt.Errorf("rename output: %w", err)
	}
	return id, nil
}

// Path returns the file backing id, or ErrOutputNotFound.
func (s *OutputStore) Path(id string) (string, error) {
	if !utils.ValidID(id) {
		return "", ErrOutputNotFound
	}
	p := s.file(id)
	if _, err := os.Stat(p); err != nil {
		return "", ErrOutputNotFound
	}
	return p, nil
}

// Exists reports whether every id still has a file.
func (s *OutputStore) Exists(ids ...string) bool {
	for _, id := range ids {
		if _, err := s.Path(id); err != nil {
			return false
		}
	}
	return true
}

// Delete removes outputs, ignoring ids that are already gone.
func (s *OutputStore) Delete(ids ...string) {
	for _, id := range ids {
		if !utils.ValidID(id) {
			continue
		}
		if err := os.Remove(s.file(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.Logger.Warn("failed to delete output", zap.String("id", id), zap.Error(err))
		}
	}
}

// Sweep deletes outputs older than the retention period and returns how many went.
func (s *OutputStore) Sweep(now time.Time) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), outputExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.retention {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			utils.Logger.Warn("failed to sweep output", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// StartSweeper schedules Sweep with a cron spec such as "@every 1h".
// The caller stops the returned scheduler.
func (s *OutputStore) StartSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(time.Now())
		if err != nil {
			utils.Logger.Warn("output sweep failed", zap.Error(err))
			return
		}
		utils.Logger.Info("output sweep finished", zap.Int("removed", n))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep spec %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func (s *OutputStore) file(id string) string {
	return filepath.Join(s.dir, id+outputExt)
}
