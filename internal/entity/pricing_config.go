package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned when a pricing config holds values outside their allowed range.
var ErrInvalidConfig = errors.New("invalid pricing config")

// PricingState is the position of a product in the price experiment cycle.
type PricingState string

const (
	StateStable    PricingState = "STABLE"
	StateIncreased PricingState = "INCREASED"
	StateWaiting   PricingState = "WAITING"
)

// ParsePricingState maps a stored value onto a PricingState. Empty means STABLE.
func ParsePricingState(s string) (PricingState, error) {
	switch PricingState(strings.ToUpper(strings.TrimSpace(s))) {
	case "", StateStable:
		return StateStable, nil
	case StateIncreased:
		return StateIncreased, nil
	case StateWaiting:
		return StateWaiting, nil
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrInvalidConfig, s)
}

// Defaults for lazily created configs.
const (
	DefaultRevenueDropThreshold   = 0.15
	DefaultPriceStepPercent       = 0.05
	DefaultObservationWindowHours = 72
	DefaultWaitHoursAfterRevert   = 168
)

// PricingConfig holds the per-product tunables and the experiment state.
// Version is bumped on every successful write and is what CompareAndSwap checks.
type PricingConfig struct {
	ProductID              string           `json:"product_id"`
	RevenueDropThreshold   float64          `json:"revenue_drop_threshold"`
	PriceStepPercent       float64          `json:"price_step_percent"`
	ObservationWindowHours int              `json:"observation_window_hours"`
	WaitHoursAfterRevert   int              `json:"wait_hours_after_revert"`
	CurrentState           PricingState     `json:"current_state"`
	LastPriceChangeAt      *time.Time       `json:"last_price_change_at"`
	NextEligibleAt         *time.Time       `json:"next_eligible_at"`
	RevertedFromPrice      *decimal.Decimal `json:"reverted_from_price"`
	Version                int64            `json:"version"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// NewDefaultConfig returns the config every product starts with.
func NewDefaultConfig(productID string, now time.Time) PricingConfig {
	return PricingConfig{
		ProductID:              productID,
		RevenueDropThreshold:   DefaultRevenueDropThreshold,
		PriceStepPercent:       DefaultPriceStepPercent,
		ObservationWindowHours: DefaultObservationWindowHours,
		WaitHoursAfterRevert:   DefaultWaitHoursAfterRevert,
		CurrentState:           StateStable,
		Version:                1,
		UpdatedAt:              now,
	}
}

// ObservationWindow returns the observation window as a duration.
func (c PricingConfig) ObservationWindow() time.Duration {
	return time.Duration(c.ObservationWindowHours) * time.Hour
}

// WaitAfterRevert returns the cooldown after a revert as a duration.
func (c PricingConfig) WaitAfterRevert() time.Duration {
	return time.Duration(c.WaitHoursAfterRevert) * time.Hour
}

// Validate checks tunables and the state invariants.
func (c PricingConfig) Validate() error {
	if err := ValidateSettings(c.RevenueDropThreshold, c.PriceStepPercent, c.ObservationWindowHours, c.WaitHoursAfterRevert); err != nil {
		return err
	}

	switch c.CurrentState {
	case StateStable:
	case StateIncreased:
		if c.LastPriceChangeAt == nil {
			return fmt.Errorf("%w: state INCREASED without last_price_change_at", ErrInvalidConfig)
		}
	case StateWaiting:
		if c.NextEligibleAt == nil {
			return fmt.Errorf("%w: state WAITING without next_eligible_at", ErrInvalidConfig)
		}
		if c.LastPriceChangeAt != nil && !c.NextEligibleAt.After(*c.LastPriceChangeAt) {
			return fmt.Errorf("%w: next_eligible_at must be after last_price_change_at", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidConfig, c.CurrentState)
	}

	return nil
}

// ValidateSettings checks the four administrator-settable values.
func ValidateSettings(threshold, step float64, observationHours, waitHours int) error {
	if !(threshold > 0 && threshold <= 1) {
		return fmt.Errorf("%w: revenue_drop_threshold %v not in (0,1]", ErrInvalidConfig, threshold)
	}
	if !(step > 0 && step <= 1) {
		return fmt.Errorf("%w: price_step_percent %v not in (0,1]", ErrInvalidConfig, step)
	}
	if observationHours <= 0 {
		return fmt.Errorf("%w: observation_window_hours must be positive, got %d", ErrInvalidConfig, observationHours)
	}
	if waitHours <= 0 {
		return fmt.Errorf("%w: wait_hours_after_revert must be positive, got %d", ErrInvalidConfig, waitHours)
	}
	return nil
}

// Settings is the administrator-editable subset of PricingConfig.
type Settings struct {
	RevenueDropThreshold   float64 `json:"revenue_drop_threshold"`
	PriceStepPercent       float64 `json:"price_step_percent"`
	ObservationWindowHours int     `json:"observation_window_hours"`
	WaitHoursAfterRevert   int     `json:"wait_hours_after_revert"`
}

// Validate checks the settings ranges.
func (s Settings) Validate() error {
	return ValidateSettings(s.RevenueDropThreshold, s.PriceStepPercent, s.ObservationWindowHours, s.WaitHoursAfterRevert)
}

/*
MySQL schema:

CREATE TABLE pricing_configs (
	product_id VARCHAR(64) PRIMARY KEY,
	revenue_drop_threshold DOUBLE NOT NULL,
	price_step_percent DOUBLE NOT NULL,
	observation_window_hours INT NOT NULL,
	wait_hours_after_revert INT NOT NULL,
	current_state VARCHAR(16) NOT NULL,
	last_price_change_at DATETIME(6) NULL,
	next_eligible_at DATETIME(6) NULL,
	reverted_from_price DECIMAL(12,2) NULL,
	version BIGINT NOT NULL,
	updated_at DATETIME(6) NOT NULL
);
*/
