// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the service.
type Config struct {
	HTTPAddr string
	LogLevel string

	StoreBackend     string // mysql or memory
	DBHost           string
	DBPort           string
	DBUser           string
	DBPass           string
	DBName           string
	DBConnectRetries int

	RedisAddr string

	KafkaEnabled bool
	PricingTopic string
	RunTopic     string
	GroupID      string

	JWTSecret string

	WorkerCount      int
	StoreConcurrency int
	RunTimeout       time.Duration
	LockTTL          time.Duration
	ScheduleInterval time.Duration

	StorefrontAPIVersion string
	StorefrontRateLimit  float64
	StorefrontBurst      int
	StorefrontTimeout    time.Duration

	RateLimit float64
	RateBurst int
}

// DSN returns the MySQL data source name.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

func durenvm(key string, defMin int) time.Duration {
	return time.Duration(atoienv(key, defMin)) * time.Minute
}

// Load reads an optional .env file and then the environment, with defaults.
func Load() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8083"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreBackend:     getenv("STORE_BACKEND", "mysql"),
		DBHost:           getenv("DB_HOST", "127.0.0.1"),
		DBPort:           getenv("DB_PORT", "3306"),
		DBUser:           getenv("DB_USER", "root"),
		DBPass:           getenv("DB_PASS", ""),
		DBName:           getenv("DB_NAME", "dynamic-pricing-db"),
		DBConnectRetries: atoienv("DB_CONNECT_RETRIES", 10),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaEnabled: getenv("KAFKA_ENABLED", "true") == "true",
		PricingTopic: getenv("KAFKA_PRICING_TOPIC", "pricing-topic"),
		RunTopic:     getenv("KAFKA_RUN_TOPIC", "pricing-run-topic"),
		GroupID:      getenv("KAFKA_GROUP_ID", "pricing-service-group"),

		JWTSecret: getenv("JWT_SECRET", "secret"),

		WorkerCount:      atoienv("WORKER_COUNT", 5),
		StoreConcurrency: atoienv("STORE_CONCURRENCY", 2),
		RunTimeout:       durenvs("RUN_TIMEOUT", 300),
		LockTTL:          durenvs("LOCK_TTL", 120),
		ScheduleInterval: durenvm("SCHEDULE_INTERVAL", 0),

		StorefrontAPIVersion: getenv("STOREFRONT_API_VERSION", "2024-01"),
		StorefrontRateLimit:  floatenv("STOREFRONT_RATE_LIMIT", 2),
		StorefrontBurst:      atoienv("STOREFRONT_BURST", 4),
		StorefrontTimeout:    durenvs("STOREFRONT_TIMEOUT", 10),

		RateLimit: floatenv("RATE_LIMIT", 1),
		RateBurst: atoienv("RATE_BURST", 3),
	}
}
