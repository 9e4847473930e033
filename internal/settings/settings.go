// Package settings serves the global store settings through a read-through
// cache that every write invalidates.
package settings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/visioncraft/storefront/internal/models"
)

// Store is the durable key/value table.
type Store interface {
	All(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, values map[string]string) error
}

// Cache holds the merged settings map. Load returns ok=false on a miss.
//
// Every Invalidate advances the cache generation. Save only stores values when
// the generation still equals the one read before the store was queried, so a
// fill that raced with a write is dropped instead of resurrecting old values.
type Cache interface {
	Load(ctx context.Context) (values map[string]string, ok bool, err error)
	Generation(ctx context.Context) (int64, error)
	Save(ctx context.Context, generation int64, values map[string]string) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	store  Store
	cache  Cache
	logger *zap.Logger
}

func NewService(store Store, cache Cache, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// Get returns every setting with defaults filled in for keys never written.
// Cache failures fall through to the store.
func (s *Service) Get(ctx context.Context) (map[string]string, error) {
	if cached, ok, err := s.cache.Load(ctx); err != nil {
		s.logger.Warn("settings cache read failed", zap.Error(err))
	} else if ok {
		return copyMap(cached), nil
	}

	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("settings cache generation read failed", zap.Error(genErr))
	}

	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	merged := models.DefaultSettings()
	for k, v := range stored {
		merged[k] = v
	}

	if genErr == nil {
		if err := s.cache.Save(ctx, generation, merged); err != nil {
			s.logger.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return copyMap(merged), nil
}

// Value returns one setting, or "" when it is neither stored nor defaulted.
func (s *Service) Value(ctx context.Context, key string) (string, error) {
	all, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return all[key], nil
}

// Set writes values and drops the cache. Last writer wins.
func (s *Service) Set(ctx context.Context, values map[string]string) error {
	clean := make(map[string]string, len(values))
	for k, v := range values {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return nil
	}

	if err := s.store.Upsert(ctx, clean); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		// A stale entry would outlive the write; surface it.
		return fmt.Errorf("failed to invalidate settings cache: %w", err)
	}
	s.logger.Info("settings updated", zap.Int("keys", len(clean)))
	return nil
}

func (s *Service) MaintenanceMode(ctx context.Context) bool {
	v, err := s.Value(ctx, models.SettingMaintenanceMode)
	if err != nil {
		s.logger.Warn("maintenance mode lookup failed", zap.Error(err))
		return false
	}
	return v == "true"
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
