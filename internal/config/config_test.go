package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.WorkerCount != 5 {
		t.Fatalf("WorkerCount = %d, want 5", cfg.WorkerCount)
	}
	if cfg.ScheduleInterval != 0 {
		t.Fatalf("ScheduleInterval = %v, want 0", cfg.ScheduleInterval)
	}
	if cfg.LockTTL != 2*time.Minute {
		t.Fatalf("LockTTL = %v, want 2m", cfg.LockTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("RUN_TIMEOUT", "30")
	t.Setenv("SCHEDULE_INTERVAL", "15")
	t.Setenv("STOREFRONT_RATE_LIMIT", "0.5")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "pricing")

	cfg := Load()
	if cfg.WorkerCount != 12 {
		t.Fatalf("WorkerCount = %d, want 12", cfg.WorkerCount)
	}
	if cfg.RunTimeout != 30*time.Second {
		t.Fatalf("RunTimeout = %v, want 30s", cfg.RunTimeout)
	}
	if cfg.ScheduleInterval != 15*time.Minute {
		t.Fatalf("ScheduleInterval = %v, want 15m", cfg.ScheduleInterval)
	}
	if cfg.StorefrontRateLimit != 0.5 {
		t.Fatalf("StorefrontRateLimit = %v, want 0.5", cfg.StorefrontRateLimit)
	}
	if cfg.StoreBackend != "memory" {
		t.Fatalf("StoreBackend = %q", cfg.StoreBackend)
	}
	if want := "root:@tcp(db:3306)/pricing?parseTime=true&loc=UTC"; cfg.DSN() != want {
		t.Fatalf("DSN = %q, want %q", cfg.DSN(), want)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	if got := Load().WorkerCount; got != 5 {
		t.Fatalf("WorkerCount = %d, want default 5", got)
	}
}

func TestKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	got := getKafkaBrokerURLs()
	if len(got) != 2 || got[1] != "k2:9092" {
		t.Fatalf("brokers = %v", got)
	}
	if w := NewKafkaWriter("pricing-topic"); w.Topic != "pricing-topic" {
		t.Fatalf("writer topic = %q", w.Topic)
	}
}
