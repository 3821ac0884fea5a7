package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/revenue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// WindowCalculator computes the revenue comparison for a product.
type WindowCalculator interface {
	Compute(ctx context.Context, productID string, lastChange *time.Time, window time.Duration, now time.Time) (revenue.Windows, error)
}

// Engine decides, per product, whether to increase, keep or revert a price.
//
// The storefront call always happens before the config write. When it fails nothing
// is persisted. When it succeeds the config and product price are committed in one
// CompareAndSwap; the history row is appended afterwards on a best-effort basis.
type Engine struct {
	configs ConfigStore
	applier PriceApplier
	history HistoryRecorder
	windows WindowCalculator
	now     Clock
}

// NewEngine creates an Engine. A nil clock means time.Now.
func NewEngine(configs ConfigStore, applier PriceApplier, history HistoryRecorder, windows WindowCalculator, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		configs: configs,
		applier: applier,
		history: history,
		windows: windows,
		now:     now,
	}
}

// Evaluate runs one state machine step for the product.
func (e *Engine) Evaluate(ctx context.Context, product entity.Product, cfg entity.PricingConfig, creds entity.Credentials) (entity.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return entity.OutcomeError, err
	}

	now := e.now().UTC()

	switch cfg.CurrentState {
	case entity.StateStable:
		return e.evaluateStable(ctx, product, cfg, creds, now)
	case entity.StateIncreased:
		return e.evaluateIncreased(ctx, product, cfg, creds, now)
	case entity.StateWaiting:
		return e.evaluateWaiting(ctx, cfg, now)
	}
	return entity.OutcomeError, fmt.Errorf("%w: unknown state %q", entity.ErrInvalidConfig, cfg.CurrentState)
}

func (e *Engine) evaluateStable(ctx context.Context, product entity.Product, cfg entity.PricingConfig, creds entity.Credentials, now time.Time) (entity.Outcome, error) {
	if !product.AutoPricingEnabled || !product.IsActive {
		return entity.OutcomeSkipped, nil
	}
	if cfg.NextEligibleAt != nil && now.Before(*cfg.NextEligibleAt) {
		return entity.OutcomeSkipped, nil
	}

	before := product.CurrentPrice
	if !before.IsPositive() {
		return entity.OutcomeError, fmt.Errorf("%w: current price %s is not positive", entity.ErrInvalidConfig, before)
	}
	step := decimal.NewFromFloat(cfg.PriceStepPercent)
	after := entity.RoundPrice(before.Mul(decimal.NewFromInt(1).Add(step)))
	if !after.GreaterThan(before) {
		return entity.OutcomeError, fmt.Errorf("%w: step %v does not change price %s", entity.ErrInvalidConfig, cfg.PriceStepPercent, before)
	}

	err := e.applier.SetPrice(ctx, PriceRequest{
		ProductID:   product.ID,
		ExternalID:  product.ExternalID,
		NewPrice:    after,
		Credentials: creds,
		DecisionKey: decisionKey(product.ID, cfg.Version, entity.KindIncrease),
	})
	if err != nil {
		return entity.OutcomeError, fmt.Errorf("apply increase %s -> %s: %w", before, after, err)
	}

	next := cfg
	next.CurrentState = entity.StateIncreased
	next.LastPriceChangeAt = &now
	next.NextEligibleAt = nil
	next.RevertedFromPrice = nil
	next.UpdatedAt = now

	if err := e.commit(ctx, product.ID, cfg.Version, next, &PriceChange{CurrentPrice: after, BasePrice: before}); err != nil {
		return entity.OutcomeError, err
	}

	e.record(ctx, entity.PricingHistoryEntry{
		ProductID:     product.ID,
		CreatedAt:     now,
		Kind:          entity.KindIncrease,
		PriceBefore:   before,
		PriceAfter:    after,
		RevenueBefore: decimal.Zero,
		RevenueAfter:  decimal.Zero,
		Reason:        fmt.Sprintf("price step %s%%", step.Shift(2).String()),
	})

	logger.Info().Msgf("Increased price of product %s from %s to %s", product.ID, before, after)
	return entity.OutcomeIncreased, nil
}

func (e *Engine) evaluateIncreased(ctx context.Context, product entity.Product, cfg entity.PricingConfig, creds entity.Credentials, now time.Time) (entity.Outcome, error) {
	changedAt := *cfg.LastPriceChangeAt
	if now.Before(changedAt.Add(cfg.ObservationWindow())) {
		return entity.OutcomeWaiting, nil
	}

	w, err := e.windows.Compute(ctx, product.ID, &changedAt, cfg.ObservationWindow(), now)
	if err != nil {
		return entity.OutcomeError, err
	}
	drop, ok := w.Drop()
	if !ok {
		logger.Info().Msgf("Insufficient sales data for product %s, extending observation", product.ID)
		return entity.OutcomeWaiting, nil
	}

	threshold := decimal.NewFromFloat(cfg.RevenueDropThreshold)
	if drop.GreaterThanOrEqual(threshold) {
		return e.revert(ctx, product, cfg, creds, w, drop, now)
	}
	return e.keep(ctx, product, cfg, w, drop, now)
}

func (e *Engine) revert(ctx context.Context, product entity.Product, cfg entity.PricingConfig, creds entity.Credentials, w revenue.Windows, drop decimal.Decimal, now time.Time) (entity.Outcome, error) {
	current := product.CurrentPrice
	restore := product.BasePrice
	if !restore.IsPositive() {
		return entity.OutcomeError, fmt.Errorf("%w: no pre-increase price to restore", entity.ErrInvalidConfig)
	}

	err := e.applier.SetPrice(ctx, PriceRequest{
		ProductID:   product.ID,
		ExternalID:  product.ExternalID,
		NewPrice:    restore,
		Credentials: creds,
		DecisionKey: decisionKey(product.ID, cfg.Version, entity.KindRevert),
	})
	if err != nil {
		return entity.OutcomeError, fmt.Errorf("apply revert %s -> %s: %w", current, restore, err)
	}

	eligible := now.Add(cfg.WaitAfterRevert())
	next := cfg
	next.CurrentState = entity.StateWaiting
	next.LastPriceChangeAt = &now
	next.NextEligibleAt = &eligible
	next.RevertedFromPrice = &current
	next.UpdatedAt = now

	if err := e.commit(ctx, product.ID, cfg.Version, next, &PriceChange{CurrentPrice: restore, BasePrice: restore}); err != nil {
		return entity.OutcomeError, err
	}

	e.record(ctx, entity.PricingHistoryEntry{
		ProductID:     product.ID,
		CreatedAt:     now,
		Kind:          entity.KindRevert,
		PriceBefore:   current,
		PriceAfter:    restore,
		RevenueBefore: w.BeforeRevenue,
		RevenueAfter:  w.AfterRevenue,
		Reason:        fmt.Sprintf("revenue dropped %s%% (threshold %s%%)", percent(drop), percent(decimal.NewFromFloat(cfg.RevenueDropThreshold))),
	})

	logger.Info().Msgf("Reverted price of product %s from %s to %s, eligible again at %s", product.ID, current, restore, eligible.Format(time.RFC3339))
	return entity.OutcomeReverted, nil
}

func (e *Engine) keep(ctx context.Context, product entity.Product, cfg entity.PricingConfig, w revenue.Windows, drop decimal.Decimal, now time.Time) (entity.Outcome, error) {
	current := product.CurrentPrice

	next := cfg
	next.CurrentState = entity.StateStable
	next.LastPriceChangeAt = nil
	next.NextEligibleAt = nil
	next.RevertedFromPrice = nil
	next.UpdatedAt = now

	if err := e.commit(ctx, product.ID, cfg.Version, next, &PriceChange{CurrentPrice: current, BasePrice: current}); err != nil {
		return entity.OutcomeError, err
	}

	e.record(ctx, entity.PricingHistoryEntry{
		ProductID:     product.ID,
		CreatedAt:     now,
		Kind:          entity.KindKeep,
		PriceBefore:   current,
		PriceAfter:    current,
		RevenueBefore: w.BeforeRevenue,
		RevenueAfter:  w.AfterRevenue,
		Reason:        fmt.Sprintf("revenue change -%s%% within threshold %s%%", percent(drop), percent(decimal.NewFromFloat(cfg.RevenueDropThreshold))),
	})

	logger.Info().Msgf("Kept price %s for product %s as new baseline", current, product.ID)
	return entity.OutcomeKept, nil
}

func (e *Engine) evaluateWaiting(ctx context.Context, cfg entity.PricingConfig, now time.Time) (entity.Outcome, error) {
	if now.Before(*cfg.NextEligibleAt) {
		return entity.OutcomeWaiting, nil
	}

	next := cfg
	next.CurrentState = entity.StateStable
	next.NextEligibleAt = nil
	next.RevertedFromPrice = nil
	next.UpdatedAt = now

	if err := e.commit(ctx, cfg.ProductID, cfg.Version, next, nil); err != nil {
		return entity.OutcomeError, err
	}
	return entity.OutcomeResumed, nil
}

func (e *Engine) commit(ctx context.Context, productID string, version int64, next entity.PricingConfig, price *PriceChange) error {
	// The storefront may already hold the new price; a run deadline must not strand it uncommitted.
	ctx = context.WithoutCancel(ctx)

	ok, err := e.configs.CompareAndSwap(ctx, productID, version, next, price)
	if err != nil {
		return fmt.Errorf("save pricing config: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: expected version %d", ErrVersionConflict, version)
	}
	return nil
}

// record appends history. A failure here never undoes the committed transition.
func (e *Engine) record(ctx context.Context, entry entity.PricingHistoryEntry) {
	entry.ID = uuid.NewString()
	if err := e.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error().Err(err).Msgf("Error appending %s history for product %s", entry.Kind, entry.ProductID)
	}
}

func decisionKey(productID string, version int64, kind entity.TransitionKind) string {
	return fmt.Sprintf("%s:%d:%s", productID, version, kind)
}

func percent(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(2)
}
