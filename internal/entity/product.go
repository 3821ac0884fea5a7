package entity

import "github.com/shopspring/decimal"

// Product is the catalog view the pricing engine works on. Only CurrentPrice and
// BasePrice are ever written by the engine.
type Product struct {
	ID                 string          `json:"id"`
	StoreID            string          `json:"store_id"`
	ExternalID         string          `json:"external_id"`
	Title              string          `json:"title"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	BasePrice          decimal.Decimal `json:"base_price"` // price before the running experiment
	AutoPricingEnabled bool            `json:"auto_pricing_enabled"`
	IsActive           bool            `json:"is_active"`
}

// Store is a connected storefront. AutoPricingEnabled is the run-level switch.
type Store struct {
	ID                 string `json:"id"`
	Domain             string `json:"domain"`
	AccessToken        string `json:"-"`
	AutoPricingEnabled bool   `json:"auto_pricing_enabled"`
}

// Credentials carries what the storefront needs to accept a price mutation.
type Credentials struct {
	StoreDomain string `json:"store_domain"`
	AccessToken string `json:"access_token"`
}

// Credentials returns the storefront credentials kept for the store.
func (s Store) Credentials() Credentials {
	return Credentials{StoreDomain: s.Domain, AccessToken: s.AccessToken}
}

// RoundPrice rounds a price to cents.
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}

/*
MySQL schema:

CREATE TABLE stores (
	id VARCHAR(64) PRIMARY KEY,
	domain VARCHAR(255) NOT NULL,
	access_token VARCHAR(255) NOT NULL,
	auto_pricing_enabled BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE products (
	id VARCHAR(64) PRIMARY KEY,
	store_id VARCHAR(64) NOT NULL,
	external_id VARCHAR(64) NOT NULL,
	title VARCHAR(255) NOT NULL DEFAULT '',
	current_price DECIMAL(12,2) NOT NULL,
	base_price DECIMAL(12,2) NOT NULL,
	auto_pricing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX products_store_idx ON products(store_id, auto_pricing_enabled, is_active);
*/
