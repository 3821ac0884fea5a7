package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var configCols = []string{"product_id", "revenue_drop_threshold", "price_step_percent", "observation_window_hours",
	"wait_hours_after_revert", "current_state", "last_price_change_at", "next_eligible_at", "reverted_from_price", "version", "updated_at"}

func TestPricingConfigRepository_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_configs WHERE product_id = ?")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(configCols))

	cfg, err := NewPricingConfigRepository(db).Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricingConfigRepository_GetIncreased(t *testing.T) {
	db, mock := newMock(t)
	changed := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_configs WHERE product_id = ?")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(configCols).
			AddRow("p1", 0.15, 0.05, 72, 168, "INCREASED", changed, nil, nil, int64(4), changed))

	cfg, err := NewPricingConfigRepository(db).Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, entity.StateIncreased, cfg.CurrentState)
	require.NotNil(t, cfg.LastPriceChangeAt)
	assert.True(t, changed.Equal(*cfg.LastPriceChangeAt))
	assert.Nil(t, cfg.NextEligibleAt)
	assert.Nil(t, cfg.RevertedFromPrice)
	assert.Equal(t, int64(4), cfg.Version)
}

func TestPricingConfigRepository_CreateDefaultReadsBack(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO pricing_configs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_configs WHERE product_id = ?")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(configCols).
			AddRow("p1", 0.2, 0.1, 24, 48, "STABLE", nil, nil, nil, int64(3), now))

	repo := NewPricingConfigRepository(db)
	repo.now = func() time.Time { return now }
	cfg, err := repo.CreateDefault(context.Background(), "p1")
	require.NoError(t, err)
	// an existing row wins over the defaults
	assert.Equal(t, 0.2, cfg.RevenueDropThreshold)
	assert.Equal(t, int64(3), cfg.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricingConfigRepository_CompareAndSwap(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	next := entity.NewDefaultConfig("p1", now)
	next.CurrentState = entity.StateIncreased
	next.LastPriceChangeAt = &now
	price := &service.PriceChange{CurrentPrice: decimal.RequireFromString("105"), BasePrice: decimal.RequireFromString("100")}

	t.Run("commits config and price together", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pricing_configs SET")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "INCREASED",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET current_price = ?, base_price = ? WHERE id = ?")).
			WithArgs("105", "100", "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := NewPricingConfigRepository(db).CompareAndSwap(context.Background(), "p1", 1, next, price)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pricing_configs SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		ok, err := NewPricingConfigRepository(db).CompareAndSwap(context.Background(), "p1", 1, next, price)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("price write failure rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pricing_configs SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET")).
			WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		ok, err := NewPricingConfigRepository(db).CompareAndSwap(context.Background(), "p1", 1, next, price)
		assert.Error(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_ListEligible(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "store_id", "external_id", "title", "current_price", "base_price", "auto_pricing_enabled", "is_active"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE store_id = ? AND auto_pricing_enabled = TRUE AND is_active = TRUE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("p1", "s1", "v-1", "Mug", "100.00", "100.00", true, true).
			AddRow("p2", "s1", "v-2", "Cap", "19.99", "19.99", true, true))

	products, err := NewProductRepository(db).ListEligible(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, decimal.RequireFromString("19.99").Equal(products[1].CurrentPrice))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetStoreMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stores WHERE id = ?")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	s, err := NewProductRepository(db).GetStore(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestHistoryRepository_ListRecords(t *testing.T) {
	db, mock := newMock(t)
	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sales_records WHERE product_id = ? AND sale_date >= ? AND sale_date < ?")).
		WithArgs("p1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "sale_date", "units_sold", "revenue", "price_in_effect"}).
			AddRow("p1", from, 3, "300.00", "100.00"))

	records, err := NewHistoryRepository(db).ListRecords(context.Background(), "p1", from, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].UnitsSold)
	assert.True(t, decimal.NewFromInt(300).Equal(records[0].Revenue))
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.PutProduct(entity.Product{ID: "p1", StoreID: "s1", CurrentPrice: decimal.NewFromInt(100), BasePrice: decimal.NewFromInt(100), AutoPricingEnabled: true, IsActive: true})

	cfg, err := m.CreateDefault(ctx, "p1")
	require.NoError(t, err)
	again, err := m.CreateDefault(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Version, again.Version)

	next := *cfg
	next.CurrentState = entity.StateStable
	ok, err := m.CompareAndSwap(ctx, "p1", cfg.Version, next, &service.PriceChange{CurrentPrice: decimal.NewFromInt(105), BasePrice: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.CompareAndSwap(ctx, "p1", cfg.Version, next, nil)
	require.NoError(t, err)
	assert.False(t, ok, "second swap with the old version must fail")

	p, _ := m.GetProduct(ctx, "p1")
	assert.True(t, decimal.NewFromInt(105).Equal(p.CurrentPrice))
	stored, _ := m.Get(ctx, "p1")
	assert.Equal(t, cfg.Version+1, stored.Version)
}

func TestMemoryStore_ListEligibleAndHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.PutProduct(entity.Product{ID: "a", StoreID: "s1", AutoPricingEnabled: true, IsActive: true})
	m.PutProduct(entity.Product{ID: "b", StoreID: "s1", AutoPricingEnabled: false, IsActive: true})
	m.PutProduct(entity.Product{ID: "c", StoreID: "s1", AutoPricingEnabled: true, IsActive: false})
	m.PutProduct(entity.Product{ID: "d", StoreID: "s2", AutoPricingEnabled: true, IsActive: true})

	products, err := m.ListEligible(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "a", products[0].ID)

	require.NoError(t, m.Append(ctx, entity.PricingHistoryEntry{ID: "1", ProductID: "a", Kind: entity.KindIncrease}))
	require.NoError(t, m.Append(ctx, entity.PricingHistoryEntry{ID: "2", ProductID: "a", Kind: entity.KindKeep}))
	entries, err := m.ListByProduct(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.KindKeep, entries[0].Kind)
}
