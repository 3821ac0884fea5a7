package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dynamic-pricing-service/internal/entity"
)

// Evaluator is the decision step the coordinator runs per product.
type Evaluator interface {
	Evaluate(ctx context.Context, product entity.Product, cfg entity.PricingConfig, creds entity.Credentials) (entity.Outcome, error)
}

// CoordinatorOptions tunes a Coordinator.
type CoordinatorOptions struct {
	WorkerCount int           // products evaluated in parallel within a store
	RunTimeout  time.Duration // overall deadline of one store run; 0 disables it
}

// Coordinator runs the engine over all eligible products of a store.
type Coordinator struct {
	products ProductSource
	configs  ConfigStore
	engine   Evaluator
	locker   Locker

	workerCount int
	runTimeout  time.Duration
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(products ProductSource, configs ConfigStore, engine Evaluator, locker Locker, opts CoordinatorOptions) *Coordinator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 5
	}
	return &Coordinator{
		products:    products,
		configs:     configs,
		engine:      engine,
		locker:      locker,
		workerCount: opts.WorkerCount,
		runTimeout:  opts.RunTimeout,
	}
}

// Run evaluates every eligible product of the store once. Per-product failures are
// counted in the stats; the returned error is only set when the run could not start.
// Products not yet started when the deadline hits are left out of the stats.
func (c *Coordinator) Run(ctx context.Context, storeID string, creds entity.Credentials) (entity.RunStats, error) {
	var stats entity.RunStats

	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	products, err := c.products.ListEligible(ctx, storeID)
	if err != nil {
		return stats, fmt.Errorf("list products for store %s: %w", storeID, err)
	}
	if len(products) == 0 {
		logger.Info().Msgf("No eligible products for store %s", storeID)
		return stats, nil
	}

	workers := c.workerCount
	if workers > len(products) {
		workers = len(products)
	}

	jobs := make(chan entity.Product, len(products))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if ctx.Err() != nil {
					continue
				}
				outcome, err := c.processProduct(ctx, p, creds)
				if err != nil {
					logger.Error().Err(err).Msgf("Error processing product %s", p.ID)
				}
				mu.Lock()
				stats.Record(p.ID, outcome, err)
				mu.Unlock()
			}
		}()
	}

	for _, p := range products {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		logger.Warn().Msgf("Run for store %s stopped early: %d of %d products processed", storeID, stats.Processed, len(products))
	}
	return stats, nil
}

// processProduct holds the product lock across read-decide-write.
func (c *Coordinator) processProduct(ctx context.Context, p entity.Product, creds entity.Credentials) (outcome entity.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = entity.OutcomeError, fmt.Errorf("panic: %v", r)
		}
	}()

	release, err := c.locker.Acquire(ctx, lockKey(p.ID))
	if errors.Is(err, ErrLockBusy) {
		logger.Info().Msgf("Product %s is being processed by another run, skipping", p.ID)
		return entity.OutcomeSkipped, nil
	}
	if err != nil {
		return entity.OutcomeError, fmt.Errorf("acquire lock: %w", err)
	}
	defer release()

	current, err := c.products.GetProduct(ctx, p.ID)
	if err != nil {
		return entity.OutcomeError, fmt.Errorf("reload product: %w", err)
	}
	if current == nil {
		return entity.OutcomeSkipped, nil
	}

	cfg, err := c.loadConfig(ctx, p.ID)
	if err != nil {
		return entity.OutcomeError, err
	}

	return c.engine.Evaluate(ctx, *current, *cfg, creds)
}

func (c *Coordinator) loadConfig(ctx context.Context, productID string) (*entity.PricingConfig, error) {
	cfg, err := c.configs.Get(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg, err = c.configs.CreateDefault(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("create default pricing config: %w", err)
	}
	return cfg, nil
}

func lockKey(productID string) string {
	return "pricing-lock:" + productID
}
