package service

import (
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/zkaueo/roblox-clothing-ia/utils"
	"go.uber.org/zap"
)

// TemplateLoader resolves a garment type to its template image.
type TemplateLoader interface {
	Load(garmentType string) (*image.NRGBA, error)
}

// TemplateStore maps garment types to template files. Templates are decoded on first
// use and then shared read-only; callers must not modify the returned image.
type TemplateStore struct {
	paths map[string]string

	mu     sync.Mutex
	loaded map[string]*image.NRGBA
}

func NewTemplateStore(paths map[string]string) *TemplateStore {
	normalized := make(map[string]string, len(paths))
	for k, v := range paths {
		normalized[normalizeGarmentType(k)] = v
	}
	return &TemplateStore{
		paths:  normalized,
		loaded: make(map[string]*image.NRGBA),
	}
}

// Load returns the template for garmentType. Unregistered types fail with
// ErrUnknownGarmentType, registered types without a readable asset with
// ErrTemplateNotFound.
func (s *TemplateStore) Load(garmentType string) (*image.NRGBA, error) {
	key := normalizeGarmentType(garmentType)
	path, ok := s.paths[key]
	if !ok {
		return nil, newError(KindUnknownGarmentType, nil, "garment type %q is not registered", garmentType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tpl, ok := s.loaded[key]; ok {
		return tpl, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, newError(KindTemplateNotFound, err, "template for %q", key)
	}

	tpl := imaging.Clone(img)
	s.loaded[key] = tpl
	return tpl, nil
}

// Preload decodes every registered template, logging the ones that fail.
func (s *TemplateStore) Preload() {
	for _, t := range s.Types() {
		if _, err := s.Load(t); err != nil {
			utils.Logger.Warn("template unavailable",
				zap.String("garment_type", t),
				zap.Error(err))
			continue
		}
		utils.Logger.Info("template loaded", zap.String("garment_type", t))
	}
}

// Types lists the registered garment types in sorted order.
func (s *TemplateStore) Types() []string {
	types := make([]string, 0, len(s.paths))
	for k := range s.paths {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

func normalizeGarmentType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
