package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dynamic-pricing-service/internal/entity"
)

// ErrNotFound is returned when a row a write depends on does not exist.
var ErrNotFound = errors.New("not found")

// ProductRepository reads products and stores from MySQL.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db}
}

const productColumns = `id, store_id, external_id, title, current_price, base_price, auto_pricing_enabled, is_active`

// ListEligible fetches the store's active products that have auto pricing enabled.
func (r *ProductRepository) ListEligible(ctx context.Context, storeID string) ([]entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE store_id = ? AND auto_pricing_enabled = TRUE AND is_active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.ExternalID, &p.Title, &p.CurrentPrice, &p.BasePrice, &p.AutoPricingEnabled, &p.IsActive); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct fetches one product; nil, nil when it does not exist.
func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	var p entity.Product
	err := r.db.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.StoreID, &p.ExternalID, &p.Title, &p.CurrentPrice, &p.BasePrice, &p.AutoPricingEnabled, &p.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetStore fetches one store; nil, nil when it does not exist.
func (r *ProductRepository) GetStore(ctx context.Context, storeID string) (*entity.Store, error) {
	query := `SELECT id, domain, access_token, auto_pricing_enabled FROM stores WHERE id = ?`
	var s entity.Store
	err := r.db.QueryRowContext(ctx, query, storeID).Scan(&s.ID, &s.Domain, &s.AccessToken, &s.AutoPricingEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListEnabledStores fetches the stores that opted into auto pricing.
func (r *ProductRepository) ListEnabledStores(ctx context.Context) ([]entity.Store, error) {
	query := `SELECT id, domain, access_token, auto_pricing_enabled FROM stores WHERE auto_pricing_enabled = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []entity.Store
	for rows.Next() {
		var s entity.Store
		if err := rows.Scan(&s.ID, &s.Domain, &s.AccessToken, &s.AutoPricingEnabled); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
