package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynamic-pricing-service/internal/entity"
)

// ErrProductNotFound is returned by admin operations on an unknown product.
var ErrProductNotFound = errors.New("product not found")

const settingsUpdateAttempts = 3

// HistoryReader lists audit rows, newest first.
type HistoryReader interface {
	ListByProduct(ctx context.Context, productID string, limit int) ([]entity.PricingHistoryEntry, error)
}

// ConfigService backs the administrative interface for per-product pricing settings.
type ConfigService struct {
	products ProductSource
	configs  ConfigStore
	history  HistoryReader
	now      Clock
}

// NewConfigService creates a ConfigService.
func NewConfigService(products ProductSource, configs ConfigStore, history HistoryReader, now Clock) *ConfigService {
	if now == nil {
		now = time.Now
	}
	return &ConfigService{products: products, configs: configs, history: history, now: now}
}

// GetConfig returns the product's config, creating the default one on first access.
func (s *ConfigService) GetConfig(ctx context.Context, productID string) (*entity.PricingConfig, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return s.configs.CreateDefault(ctx, productID)
	}
	return cfg, nil
}

// UpdateSettings writes the tunables without touching the experiment state.
// It retries a few times when the engine commits in between.
func (s *ConfigService) UpdateSettings(ctx context.Context, productID string, settings entity.Settings) (*entity.PricingConfig, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= settingsUpdateAttempts; attempt++ {
		cfg, err := s.GetConfig(ctx, productID)
		if err != nil {
			return nil, err
		}

		next := *cfg
		next.RevenueDropThreshold = settings.RevenueDropThreshold
		next.PriceStepPercent = settings.PriceStepPercent
		next.ObservationWindowHours = settings.ObservationWindowHours
		next.WaitHoursAfterRevert = settings.WaitHoursAfterRevert
		next.UpdatedAt = s.now().UTC()

		ok, err := s.configs.CompareAndSwap(ctx, productID, cfg.Version, next, nil)
		if err != nil {
			return nil, fmt.Errorf("save pricing settings: %w", err)
		}
		if ok {
			next.Version = cfg.Version + 1
			return &next, nil
		}
		logger.Warn().Msgf("Pricing config of product %s changed concurrently, retrying (%d/%d)", productID, attempt, settingsUpdateAttempts)
	}
	return nil, ErrVersionConflict
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// History returns the newest entries first. limit defaults to 100 and is capped at 500.
func (s *ConfigService) History(ctx context.Context, productID string, limit int) ([]entity.PricingHistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return s.history.ListByProduct(ctx, productID, limit)
}

func (s *ConfigService) ensureProduct(ctx context.Context, productID string) error {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return nil
}
