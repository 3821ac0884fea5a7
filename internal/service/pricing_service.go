package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"dynamic-pricing-service/internal/entity"

	"golang.org/x/sync/errgroup"
)

// ErrStoreDomainMismatch is returned when a caller overrides the store domain without its own token.
var ErrStoreDomainMismatch = errors.New("store domain does not match the stored storefront")

// StoreRunner runs one store.
type StoreRunner interface {
	Run(ctx context.Context, storeID string, creds entity.Credentials) (entity.RunStats, error)
}

// PricingService is the entry point used by the HTTP API, the scheduler and the run-trigger consumer.
type PricingService struct {
	stores           StoreSource
	runner           StoreRunner
	storeConcurrency int
}

// NewPricingService creates a PricingService. storeConcurrency bounds RunAllStores.
func NewPricingService(stores StoreSource, runner StoreRunner, storeConcurrency int) *PricingService {
	if storeConcurrency <= 0 {
		storeConcurrency = 2
	}
	return &PricingService{
		stores:           stores,
		runner:           runner,
		storeConcurrency: storeConcurrency,
	}
}

// RunPricingAlgorithm runs the engine for one store. Success is false only when the run
// could not start; individual product failures are reported in Errors.
func (s *PricingService) RunPricingAlgorithm(ctx context.Context, storeID, storeDomain string, creds entity.Credentials) entity.RunResult {
	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error loading store %s", storeID)
		return failed(fmt.Errorf("load store %s: %w", storeID, err))
	}
	if store == nil {
		return failed(fmt.Errorf("store %s not found", storeID))
	}
	if !store.AutoPricingEnabled {
		logger.Info().Msgf("Auto pricing disabled for store %s, nothing to do", storeID)
		return entity.RunResult{Success: true, Errors: []string{}}
	}

	creds, err = resolveCredentials(*store, storeDomain, creds)
	if err != nil {
		logger.Warn().Err(err).Msgf("Refusing pricing run for store %s", storeID)
		return failed(err)
	}

	stats, err := s.runner.Run(ctx, storeID, creds)
	if err != nil {
		logger.Error().Err(err).Msgf("Pricing run for store %s failed", storeID)
		res := failed(err)
		res.Stats = stats
		return res
	}

	logger.Info().Msgf("Pricing run for store %s: processed=%d increased=%d kept=%d reverted=%d waiting=%d skipped=%d resumed=%d errors=%d",
		storeID, stats.Processed, stats.Increased, stats.Kept, stats.Reverted, stats.Waiting, stats.Skipped, stats.Resumed, stats.Errors)

	errs := stats.ErrorMessages
	if errs == nil {
		errs = []string{}
	}
	return entity.RunResult{Success: true, Stats: stats, Errors: errs}
}

// RunAllStores runs every store with auto pricing enabled, a bounded number at a time.
func (s *PricingService) RunAllStores(ctx context.Context) (map[string]entity.RunResult, error) {
	stores, err := s.stores.ListEnabledStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]entity.RunResult, len(stores))
	)
	var g errgroup.Group
	g.SetLimit(s.storeConcurrency)
	for _, st := range stores {
		st := st
		g.Go(func() error {
			res := s.RunPricingAlgorithm(ctx, st.ID, st.Domain, st.Credentials())
			mu.Lock()
			results[st.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// resolveCredentials picks the storefront to call. The stored access token is only
// ever sent to the stored domain; a caller naming another domain must bring its own token.
func resolveCredentials(store entity.Store, storeDomain string, creds entity.Credentials) (entity.Credentials, error) {
	if storeDomain != "" {
		creds.StoreDomain = storeDomain
	}
	if creds.AccessToken != "" {
		if creds.StoreDomain == "" {
			creds.StoreDomain = store.Domain
		}
		return creds, nil
	}

	if creds.StoreDomain != "" && !sameDomain(creds.StoreDomain, store.Domain) {
		return creds, fmt.Errorf("%w: %s is not the domain of store %s", ErrStoreDomainMismatch, creds.StoreDomain, store.ID)
	}
	creds.StoreDomain = store.Domain
	creds.AccessToken = store.AccessToken
	return creds, nil
}

func sameDomain(a, b string) bool {
	return normalizeDomain(a) == normalizeDomain(b)
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimRight(d, "/")
}

func failed(err error) entity.RunResult {
	return entity.RunResult{Success: false, Errors: []string{err.Error()}}
}
