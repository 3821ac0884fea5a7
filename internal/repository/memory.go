package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/service"
)

// MemoryStore keeps stores, products, configs, sales and history in process memory.
// It is safe for concurrent use and is used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	stores   map[string]entity.Store
	products map[string]entity.Product
	configs  map[string]entity.PricingConfig
	sales    map[string][]entity.SalesRecord
	history  map[string][]entity.PricingHistoryEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores:   make(map[string]entity.Store),
		products: make(map[string]entity.Product),
		configs:  make(map[string]entity.PricingConfig),
		sales:    make(map[string][]entity.SalesRecord),
		history:  make(map[string][]entity.PricingHistoryEntry),
		now:      time.Now,
	}
}

// PutStore inserts or replaces a store.
func (m *MemoryStore) PutStore(s entity.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[s.ID] = s
}

// PutProduct inserts or replaces a product.
func (m *MemoryStore) PutProduct(p entity.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// PutConfig inserts or replaces a config as-is.
func (m *MemoryStore) PutConfig(c entity.PricingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.ProductID] = c
}

// AddSales appends daily sales records.
func (m *MemoryStore) AddSales(records ...entity.SalesRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.sales[r.ProductID] = append(m.sales[r.ProductID], r)
	}
}

// GetStore implements service.StoreSource.
func (m *MemoryStore) GetStore(_ context.Context, storeID string) (*entity.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[storeID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// ListEnabledStores implements service.StoreSource.
func (m *MemoryStore) ListEnabledStores(_ context.Context) ([]entity.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Store
	for _, s := range m.stores {
		if s.AutoPricingEnabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEligible implements service.ProductSource.
func (m *MemoryStore) ListEligible(_ context.Context, storeID string) ([]entity.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Product
	for _, p := range m.products {
		if p.StoreID == storeID && p.AutoPricingEnabled && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProduct implements service.ProductSource.
func (m *MemoryStore) GetProduct(_ context.Context, productID string) (*entity.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Get implements service.ConfigStore.
func (m *MemoryStore) Get(_ context.Context, productID string) (*entity.PricingConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[productID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CreateDefault implements service.ConfigStore.
func (m *MemoryStore) CreateDefault(_ context.Context, productID string) (*entity.PricingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.configs[productID]; ok {
		return &c, nil
	}
	c := entity.NewDefaultConfig(productID, m.now().UTC())
	m.configs[productID] = c
	return &c, nil
}

// CompareAndSwap implements service.ConfigStore. Config and price change are applied together.
func (m *MemoryStore) CompareAndSwap(_ context.Context, productID string, expectedVersion int64, next entity.PricingConfig, price *service.PriceChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.configs[productID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	if price != nil {
		p, ok := m.products[productID]
		if !ok {
			return false, ErrNotFound
		}
		p.CurrentPrice = price.CurrentPrice
		p.BasePrice = price.BasePrice
		m.products[productID] = p
	}

	next.ProductID = productID
	next.Version = expectedVersion + 1
	m.configs[productID] = next
	return true, nil
}

// ListRecords implements revenue.SalesSource.
func (m *MemoryStore) ListRecords(_ context.Context, productID string, from, to time.Time) ([]entity.SalesRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.SalesRecord
	for _, r := range m.sales[productID] {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Append implements service.HistoryRecorder.
func (m *MemoryStore) Append(_ context.Context, entry entity.PricingHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[entry.ProductID] = append(m.history[entry.ProductID], entry)
	return nil
}

// ListByProduct implements service.HistoryReader.
func (m *MemoryStore) ListByProduct(_ context.Context, productID string, limit int) ([]entity.PricingHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[productID]
	out := make([]entity.PricingHistoryEntry, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}
