package service

import (
	"context"
	"errors"
	"time"

	"dynamic-pricing-service/internal/entity"

	"github.com/shopspring/decimal"
)

var (
	// ErrVersionConflict means another writer committed first; the transition was not persisted.
	ErrVersionConflict = errors.New("pricing config version conflict")

	// ErrLockBusy means another run holds the product.
	ErrLockBusy = errors.New("product is locked by another run")
)

// PriceChange is the product price write committed together with a config update.
type PriceChange struct {
	CurrentPrice decimal.Decimal
	BasePrice    decimal.Decimal
}

// ConfigStore persists one PricingConfig per product with optimistic concurrency.
type ConfigStore interface {
	// Get returns nil, nil when the product has no config yet.
	Get(ctx context.Context, productID string) (*entity.PricingConfig, error)
	// CreateDefault creates the default config, or returns the existing one if a concurrent caller won.
	CreateDefault(ctx context.Context, productID string) (*entity.PricingConfig, error)
	// CompareAndSwap writes next (and price, if not nil) only when the stored version equals
	// expectedVersion. The stored version becomes expectedVersion+1. Returns false on conflict.
	CompareAndSwap(ctx context.Context, productID string, expectedVersion int64, next entity.PricingConfig, price *PriceChange) (bool, error)
}

// PriceApplier mutates the price on the storefront.
type PriceApplier interface {
	SetPrice(ctx context.Context, req PriceRequest) error
}

// PriceRequest describes one storefront price mutation. DecisionKey identifies the
// decision it belongs to, so an applier can refuse to run the same decision twice.
type PriceRequest struct {
	ProductID   string
	ExternalID  string
	NewPrice    decimal.Decimal
	Credentials entity.Credentials
	DecisionKey string
}

// HistoryRecorder appends audit rows.
type HistoryRecorder interface {
	Append(ctx context.Context, entry entity.PricingHistoryEntry) error
}

// ProductSource lists the products a run works on.
type ProductSource interface {
	// ListEligible returns the store's products with auto pricing enabled that are active.
	ListEligible(ctx context.Context, storeID string) ([]entity.Product, error)
	// GetProduct re-reads one product; nil, nil when it no longer exists.
	GetProduct(ctx context.Context, productID string) (*entity.Product, error)
}

// StoreSource lists connected stores.
type StoreSource interface {
	GetStore(ctx context.Context, storeID string) (*entity.Store, error)
	ListEnabledStores(ctx context.Context) ([]entity.Store, error)
}

// Locker provides per-product mutual exclusion across runs.
type Locker interface {
	// Acquire returns a release func, or ErrLockBusy if the key is held.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Clock returns the evaluation time.
type Clock func() time.Time
