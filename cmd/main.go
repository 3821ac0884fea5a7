package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dynamic-pricing-service/internal/api"
	"dynamic-pricing-service/internal/config"
	"dynamic-pricing-service/internal/consumer"
	"dynamic-pricing-service/internal/events"
	"dynamic-pricing-service/internal/lock"
	"dynamic-pricing-service/internal/repository"
	"dynamic-pricing-service/internal/revenue"
	"dynamic-pricing-service/internal/service"
	"dynamic-pricing-service/internal/storefront"
	"dynamic-pricing-service/migrations"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func connectDBEnv(dsn, dbname string, retries int) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < retries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				log.Info().Msgf("Connected to DB %s", dbname)
				return db, nil
			}
		}
		log.Warn().Msgf("Retry %d: Failed to connect to DB %s: %v", i+1, dbname, err)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s after retries: %v", dbname, err)
}

// stores groups the persistence ports so both backends wire the same way.
type stores struct {
	products service.ProductSource
	shops    service.StoreSource
	configs  service.ConfigStore
	sales    revenue.SalesSource
	history  interface {
		service.HistoryRecorder
		service.HistoryReader
	}
}

func openStores(cfg config.Config) (stores, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{products: m, shops: m, configs: m, sales: m, history: m}, func() {}, nil
	}

	db, err := connectDBEnv(cfg.DSN(), cfg.DBName, cfg.DBConnectRetries)
	if err != nil {
		return stores{}, nil, err
	}
	if err := migrations.AutoMigrate(3, db); err != nil {
		db.Close()
		return stores{}, nil, err
	}

	productRepo := repository.NewProductRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	return stores{
		products: productRepo,
		shops:    productRepo,
		configs:  repository.NewPricingConfigRepository(db),
		sales:    historyRepo,
		history:  historyRepo,
	}, func() { db.Close() }, nil
}

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStores, err := openStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer closeStores()

	var applier service.PriceApplier = storefront.NewClient(storefront.ClientOptions{
		APIVersion: cfg.StorefrontAPIVersion,
		RateLimit:  cfg.StorefrontRateLimit,
		Burst:      cfg.StorefrontBurst,
		Timeout:    cfg.StorefrontTimeout,
	})
	var locker service.Locker = lock.NewKeyedLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		applier = storefront.NewIdempotentApplier(applier, rdb, cfg.StorefrontTimeout+20*time.Second, 0)
	}

	var recorder service.HistoryRecorder = st.history
	if cfg.KafkaEnabled {
		kafkaWriter := config.NewKafkaWriter(cfg.PricingTopic)
		defer kafkaWriter.Close()
		recorder = events.NewPublishingRecorder(st.history, kafkaWriter)
	}

	engine := service.NewEngine(st.configs, applier, recorder, revenue.NewCalculator(st.sales), time.Now)
	coordinator := service.NewCoordinator(st.products, st.configs, engine, locker, service.CoordinatorOptions{
		WorkerCount: cfg.WorkerCount,
		RunTimeout:  cfg.RunTimeout,
	})
	pricingService := service.NewPricingService(st.shops, coordinator, cfg.StoreConcurrency)
	configService := service.NewConfigService(st.products, st.configs, st.history, time.Now)

	if cfg.KafkaEnabled {
		runConsumer := consumer.NewConsumer(config.NewKafkaReader(cfg.RunTopic, cfg.GroupID), pricingService)
		go runConsumer.Start(ctx)
	}

	if cfg.ScheduleInterval > 0 {
		go schedule(ctx, cfg.ScheduleInterval, pricingService)
	}

	pricingHandler := api.NewPricingHandler(pricingService, configService, st.products)
	e := api.NewRouter(pricingHandler, api.RouterOptions{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down HTTP server")
	}
}

// schedule runs every enabled store on a fixed interval.
func schedule(ctx context.Context, every time.Duration, svc *service.PricingService) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := svc.RunAllStores(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Scheduled pricing run failed")
				continue
			}
			for storeID, res := range results {
				if !res.Success {
					log.Error().Msgf("Scheduled run for store %s failed: %v", storeID, res.Errors)
				}
			}
		}
	}
}
