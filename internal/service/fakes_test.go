package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/repository"
	"dynamic-pricing-service/internal/revenue"
	"dynamic-pricing-service/internal/service"

	"github.com/shopspring/decimal"
)

var changeAt = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeApplier struct {
	mu    sync.Mutex
	calls []service.PriceRequest
	fail  map[string]error
	delay time.Duration
}

func (a *fakeApplier) SetPrice(_ context.Context, req service.PriceRequest) error {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req)
	if err := a.fail[req.ProductID]; err != nil {
		return err
	}
	return nil
}

func (a *fakeApplier) Calls() []service.PriceRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]service.PriceRequest(nil), a.calls...)
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, entity.PricingHistoryEntry) error {
	return errors.New("history unavailable")
}

// conflictingStore loses every CompareAndSwap until conflicts runs out.
type conflictingStore struct {
	*repository.MemoryStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) CompareAndSwap(ctx context.Context, productID string, expectedVersion int64, next entity.PricingConfig, price *service.PriceChange) (bool, error) {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()
	return s.MemoryStore.CompareAndSwap(ctx, productID, expectedVersion, next, price)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id string, price string) entity.Product {
	return entity.Product{
		ID:                 id,
		StoreID:            "s1",
		ExternalID:         "ext-" + id,
		CurrentPrice:       dec(price),
		BasePrice:          dec(price),
		AutoPricingEnabled: true,
		IsActive:           true,
	}
}

// increasedConfig is a config right after an increase at changeAt.
func increasedConfig(productID string) entity.PricingConfig {
	c := entity.NewDefaultConfig(productID, changeAt)
	c.CurrentState = entity.StateIncreased
	at := changeAt
	c.LastPriceChangeAt = &at
	return c
}

// dailySales spreads total revenue evenly over the given days starting at from.
func dailySales(productID string, from time.Time, days int, total string) []entity.SalesRecord {
	per := dec(total).Div(decimal.NewFromInt(int64(days)))
	out := make([]entity.SalesRecord, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, entity.SalesRecord{
			ProductID: productID,
			Date:      from.AddDate(0, 0, i),
			UnitsSold: 10,
			Revenue:   per,
		})
	}
	return out
}

type env struct {
	store   *repository.MemoryStore
	applier *fakeApplier
	clock   *clock
	engine  *service.Engine
}

func newEnv() *env {
	store := repository.NewMemoryStore()
	applier := &fakeApplier{fail: map[string]error{}}
	clk := &clock{now: changeAt}
	engine := service.NewEngine(store, applier, store, revenue.NewCalculator(store), clk.Now)
	return &env{store: store, applier: applier, clock: clk, engine: engine}
}

func (e *env) evaluate(productID string) (entity.Outcome, error) {
	ctx := context.Background()
	p, _ := e.store.GetProduct(ctx, productID)
	cfg, _ := e.store.Get(ctx, productID)
	if cfg == nil {
		cfg, _ = e.store.CreateDefault(ctx, productID)
	}
	return e.engine.Evaluate(ctx, *p, *cfg, entity.Credentials{StoreDomain: "shop.example", AccessToken: "tok"})
}

func (e *env) config(productID string) entity.PricingConfig {
	c, _ := e.store.Get(context.Background(), productID)
	return *c
}

func (e *env) product(productID string) entity.Product {
	p, _ := e.store.GetProduct(context.Background(), productID)
	return *p
}

func (e *env) history(productID string) []entity.PricingHistoryEntry {
	h, _ := e.store.ListByProduct(context.Background(), productID, 100)
	return h
}
