package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/service"

	"github.com/shopspring/decimal"
)

// PricingConfigRepository persists pricing configs with optimistic versioning.
type PricingConfigRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPricingConfigRepository creates a new instance of PricingConfigRepository.
func NewPricingConfigRepository(db *sql.DB) *PricingConfigRepository {
	return &PricingConfigRepository{db: db, now: time.Now}
}

// Get fetches the config of a product; nil, nil when none exists yet.
func (r *PricingConfigRepository) Get(ctx context.Context, productID string) (*entity.PricingConfig, error) {
	query := `SELECT product_id, revenue_drop_threshold, price_step_percent, observation_window_hours, wait_hours_after_revert,
		current_state, last_price_change_at, next_eligible_at, reverted_from_price, version, updated_at
		FROM pricing_configs WHERE product_id = ?`

	var (
		c            entity.PricingConfig
		state        string
		lastChange   sql.NullTime
		nextEligible sql.NullTime
		reverted     decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, query, productID).Scan(&c.ProductID, &c.RevenueDropThreshold, &c.PriceStepPercent,
		&c.ObservationWindowHours, &c.WaitHoursAfterRevert, &state, &lastChange, &nextEligible, &reverted, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	c.CurrentState, err = entity.ParsePricingState(state)
	if err != nil {
		return nil, err
	}
	c.LastPriceChangeAt = timePtr(lastChange)
	c.NextEligibleAt = timePtr(nextEligible)
	if reverted.Valid {
		c.RevertedFromPrice = &reverted.Decimal
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// CreateDefault inserts the default config unless one exists, then reads back whatever is stored.
func (r *PricingConfigRepository) CreateDefault(ctx context.Context, productID string) (*entity.PricingConfig, error) {
	c := entity.NewDefaultConfig(productID, r.now().UTC())
	query := `INSERT IGNORE INTO pricing_configs (product_id, revenue_drop_threshold, price_step_percent, observation_window_hours,
		wait_hours_after_revert, current_state, version, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, c.ProductID, c.RevenueDropThreshold, c.PriceStepPercent, c.ObservationWindowHours,
		c.WaitHoursAfterRevert, string(c.CurrentState), c.Version, c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	stored, err := r.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotFound
	}
	return stored, nil
}

// CompareAndSwap updates the config only when its version still matches and, when price is set,
// writes the product price in the same transaction.
func (r *PricingConfigRepository) CompareAndSwap(ctx context.Context, productID string, expectedVersion int64, next entity.PricingConfig, price *service.PriceChange) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	var reverted decimal.NullDecimal
	if next.RevertedFromPrice != nil {
		reverted = decimal.NewNullDecimal(*next.RevertedFromPrice)
	}

	configQuery := `UPDATE pricing_configs SET revenue_drop_threshold = ?, price_step_percent = ?, observation_window_hours = ?,
		wait_hours_after_revert = ?, current_state = ?, last_price_change_at = ?, next_eligible_at = ?, reverted_from_price = ?,
		version = version + 1, updated_at = ? WHERE product_id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, configQuery, next.RevenueDropThreshold, next.PriceStepPercent, next.ObservationWindowHours,
		next.WaitHoursAfterRevert, string(next.CurrentState), nullTime(next.LastPriceChangeAt), nullTime(next.NextEligibleAt),
		reverted, next.UpdatedAt.UTC(), productID, expectedVersion)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if n == 0 {
		tx.Rollback()
		return false, nil
	}

	if price != nil {
		productQuery := `UPDATE products SET current_price = ?, base_price = ? WHERE id = ?`
		// MySQL reports 0 affected rows when the values are unchanged, so the count is not checked here.
		_, err := tx.ExecContext(ctx, productQuery, entity.RoundPrice(price.CurrentPrice), entity.RoundPrice(price.BasePrice), productID)
		if err != nil {
			tx.Rollback()
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
