package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

var tables = []struct {
	name  string
	query string
}{
	{"stores", `
		CREATE TABLE IF NOT EXISTS stores (
			id VARCHAR(64) PRIMARY KEY,
			domain VARCHAR(255) NOT NULL,
			access_token VARCHAR(255) NOT NULL,
			auto_pricing_enabled BOOLEAN NOT NULL DEFAULT FALSE
		);
	`},
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			store_id VARCHAR(64) NOT NULL,
			external_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL DEFAULT '',
			current_price DECIMAL(12,2) NOT NULL,
			base_price DECIMAL(12,2) NOT NULL,
			auto_pricing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			INDEX products_store_idx (store_id, auto_pricing_enabled, is_active)
		);
	`},
	{"pricing_configs", `
		CREATE TABLE IF NOT EXISTS pricing_configs (
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
	`},
	{"sales_records", `
		CREATE TABLE IF NOT EXISTS sales_records (
			product_id VARCHAR(64) NOT NULL,
			sale_date DATE NOT NULL,
			units_sold INT NOT NULL,
			revenue DECIMAL(14,2) NOT NULL,
			price_in_effect DECIMAL(12,2) NOT NULL,
			PRIMARY KEY (product_id, sale_date)
		);
	`},
	{"pricing_history", `
		CREATE TABLE IF NOT EXISTS pricing_history (
			id CHAR(36) PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			price_before DECIMAL(12,2) NOT NULL,
			price_after DECIMAL(12,2) NOT NULL,
			revenue_before DECIMAL(14,2) NOT NULL,
			revenue_after DECIMAL(14,2) NOT NULL,
			reason TEXT NOT NULL,
			INDEX pricing_history_product_idx (product_id, created_at)
		);
	`},
}

// AutoMigrate creates the pricing tables if they do not exist, retrying each one.
func AutoMigrate(retries int, dbs ...*sql.DB) error {
	for _, db := range dbs {
		for _, t := range tables {
			if err := execWithRetry(db, t.query, retries); err != nil {
				return fmt.Errorf("migrate %s table: %w", t.name, err)
			}
		}
	}
	return nil
}

func execWithRetry(db *sql.DB, query string, retries int) error {
	_, err := db.Exec(query)
	for i := 0; err != nil && i < retries; i++ {
		time.Sleep(1 * time.Second)
		_, err = db.Exec(query)
	}
	return err
}
