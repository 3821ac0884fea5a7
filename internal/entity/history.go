package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionKind names the decision recorded in the pricing history.
type TransitionKind string

const (
	KindIncrease TransitionKind = "increase"
	KindKeep     TransitionKind = "keep"
	KindRevert   TransitionKind = "revert"
)

// PricingHistoryEntry is an immutable audit row. Entries are never updated or deleted.
type PricingHistoryEntry struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Kind          TransitionKind  `json:"kind"`
	PriceBefore   decimal.Decimal `json:"price_before"`
	PriceAfter    decimal.Decimal `json:"price_after"`
	RevenueBefore decimal.Decimal `json:"revenue_before"`
	RevenueAfter  decimal.Decimal `json:"revenue_after"`
	Reason        string          `json:"reason"`
}

// SalesRecord is one product's aggregated sales for one day.
type SalesRecord struct {
	ProductID     string          `json:"product_id"`
	Date          time.Time       `json:"date"`
	UnitsSold     int             `json:"units_sold"`
	Revenue       decimal.Decimal `json:"revenue"`
	PriceInEffect decimal.Decimal `json:"price_in_effect"`
}

/*
MySQL schema:

CREATE TABLE sales_records (
	product_id VARCHAR(64) NOT NULL,
	sale_date DATE NOT NULL,
	units_sold INT NOT NULL,
	revenue DECIMAL(14,2) NOT NULL,
	price_in_effect DECIMAL(12,2) NOT NULL,
	PRIMARY KEY (product_id, sale_date)
);

CREATE TABLE pricing_history (
	id CHAR(36) PRIMARY KEY,
	product_id VARCHAR(64) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	price_before DECIMAL(12,2) NOT NULL,
	price_after DECIMAL(12,2) NOT NULL,
	revenue_before DECIMAL(14,2) NOT NULL,
	revenue_after DECIMAL(14,2) NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX pricing_history_product_idx ON pricing_history(product_id, created_at);
*/
