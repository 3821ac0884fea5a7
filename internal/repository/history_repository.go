package repository

import (
	"context"
	"database/sql"
	"time"

	"dynamic-pricing-service/internal/entity"
)

// HistoryRepository stores the pricing audit trail and reads daily sales.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new instance of HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db}
}

// Append inserts one audit row. Rows are never updated.
func (r *HistoryRepository) Append(ctx context.Context, e entity.PricingHistoryEntry) error {
	query := `INSERT INTO pricing_history (id, product_id, created_at, kind, price_before, price_after, revenue_before, revenue_after, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.ProductID, e.CreatedAt.UTC(), string(e.Kind),
		e.PriceBefore, e.PriceAfter, e.RevenueBefore, e.RevenueAfter, e.Reason)
	return err
}

// ListByProduct returns the latest rows of a product, newest first.
func (r *HistoryRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]entity.PricingHistoryEntry, error) {
	query := `SELECT id, product_id, created_at, kind, price_before, price_after, revenue_before, revenue_after, reason
		FROM pricing_history WHERE product_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []entity.PricingHistoryEntry{}
	for rows.Next() {
		var (
			e    entity.PricingHistoryEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.CreatedAt, &kind, &e.PriceBefore, &e.PriceAfter, &e.RevenueBefore, &e.RevenueAfter, &e.Reason); err != nil {
			return nil, err
		}
		e.Kind = entity.TransitionKind(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRecords returns daily sales with from <= sale_date < to, oldest first.
func (r *HistoryRepository) ListRecords(ctx context.Context, productID string, from, to time.Time) ([]entity.SalesRecord, error) {
	query := `SELECT product_id, sale_date, units_sold, revenue, price_in_effect
		FROM sales_records WHERE product_id = ? AND sale_date >= ? AND sale_date < ? ORDER BY sale_date`
	rows, err := r.db.QueryContext(ctx, query, productID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []entity.SalesRecord
	for rows.Next() {
		var s entity.SalesRecord
		if err := rows.Scan(&s.ProductID, &s.Date, &s.UnitsSold, &s.Revenue, &s.PriceInEffect); err != nil {
			return nil, err
		}
		s.Date = s.Date.UTC()
		records = append(records, s)
	}
	return records, rows.Err()
}
