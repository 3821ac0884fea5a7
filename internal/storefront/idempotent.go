package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynamic-pricing-service/internal/service"

	"github.com/go-redis/redis/v8"
)

// ErrDecisionInFlight means an earlier attempt of the same decision started but never finished.
var ErrDecisionInFlight = errors.New("price decision already in flight")

const (
	decisionPending = "pending"
	decisionApplied = "applied"
)

// IdempotentApplier runs each pricing decision against the storefront at most once.
//
// A decision key moves pending -> applied. An applied key means the storefront already has the
// price (the process died before committing), so the call is skipped and the commit can proceed.
// A failed call deletes the key so the next run may try again. A pending key only lives as
// long as one storefront call can take, so a crash mid-call does not block the product for long.
type IdempotentApplier struct {
	next       service.PriceApplier
	rdb        *redis.Client
	pendingTTL time.Duration
	appliedTTL time.Duration
}

// NewIdempotentApplier wraps next. pendingTTL should exceed the storefront call timeout.
func NewIdempotentApplier(next service.PriceApplier, rdb *redis.Client, pendingTTL, appliedTTL time.Duration) *IdempotentApplier {
	if pendingTTL <= 0 {
		pendingTTL = defaultTimeout + 20*time.Second
	}
	if appliedTTL <= 0 {
		appliedTTL = 24 * time.Hour
	}
	return &IdempotentApplier{next: next, rdb: rdb, pendingTTL: pendingTTL, appliedTTL: appliedTTL}
}

// SetPrice implements service.PriceApplier.
func (a *IdempotentApplier) SetPrice(ctx context.Context, req service.PriceRequest) error {
	if req.DecisionKey == "" {
		return a.next.SetPrice(ctx, req)
	}
	key := "pricing-decision:" + req.DecisionKey

	ok, err := a.rdb.SetNX(ctx, key, decisionPending, a.pendingTTL).Result()
	if err != nil {
		return fmt.Errorf("could not reserve decision %s: %v", req.DecisionKey, err)
	}
	if !ok {
		state, err := a.rdb.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("could not read decision %s: %v", req.DecisionKey, err)
		}
		if state == decisionApplied {
			logger.Info().Msgf("Decision %s already applied on the storefront, skipping call", req.DecisionKey)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDecisionInFlight, req.DecisionKey)
	}

	if err := a.next.SetPrice(ctx, req); err != nil {
		if delErr := a.rdb.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			logger.Error().Err(delErr).Msgf("Error clearing decision key %s", key)
		}
		return err
	}

	if err := a.rdb.Set(context.WithoutCancel(ctx), key, decisionApplied, a.appliedTTL).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error marking decision %s applied", req.DecisionKey)
	}
	return nil
}
