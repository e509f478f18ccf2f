package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/broker"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/cache"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/consumer"
	carthttp "github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/http"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/repository"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/service"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/config"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/tracing"
	"github.com/NitheshChakaravarthySeelan/community-platform/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const serviceName = "cart-service"

func main() {
	cfg := config.LoadCartService()
	log := logger.New(serviceName, cfg.LogLevel)

	tp := tracing.Init(serviceName)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx := context.Background()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}

	var cartCache cache.CartCache = cache.Noop{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		log.Info("Redis ping succeeded")
		cartCache = cache.NewRedisCache(redisClient)
	}

	svc := service.NewCartService(repo, cartCache, log)

	// Saga reactor
	runCtx, stopReactor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var closers []io.Closer
	if cfg.EnableKafka {
		kafkaClient := broker.NewClient(cfg.KafkaBrokers)
		if !kafkaClient.Enabled() {
			log.Fatal("ENABLE_KAFKA is set but KAFKA_BROKERS is empty")
		}
		producer := kafkaClient.NewProducer(cfg.CheckoutTopic)
		reader := kafkaClient.NewConsumer(cfg.CheckoutTopic, cfg.KafkaGroupID)
		closers = append(closers, reader, producer)

		reactor := consumer.NewReactor(reader, producer, svc, log, metrics.NewSagaMetrics(reg, "cart_service"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.WithFields(logrus.Fields{
				"topic":    cfg.CheckoutTopic,
				"group_id": cfg.KafkaGroupID,
			}).Info("saga reactor started")
			reactor.Run(runCtx)
		}()
	} else {
		log.Info("kafka disabled, saga reactor not started")
	}

	handler := carthttp.NewCartHandler(svc, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      carthttp.NewRouter(handler, metrics.NewServerMetrics(reg, "cart_service"), reg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Cart service listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	stopReactor()
	wg.Wait()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.WithError(err).Error("failed to close kafka client")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := closeStore(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to close store")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shut down tracer provider")
	}
	log.Info("Cart service stopped")
}

func openStore(ctx context.Context, cfg *config.CartServiceConfig, log *logrus.Entry) (repository.CartRepository, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := repository.OpenPostgres(cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLRepository(db, repository.DialectPostgres)
		if err := repo.RunMigrations(); err != nil {
			return nil, nil, err
		}
		log.WithField("host", cfg.Postgres.Host).Info("Connected to PostgreSQL")
		return repo, func(context.Context) error { return repo.Close() }, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLRepository(db, repository.DialectSQLite)
		if err := repo.RunMigrations(); err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Opened SQLite store")
		return repo, func(context.Context) error { return repo.Close() }, nil

	case "mongo":
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(mongoDB)
		if err := repo.CreateIndexes(ctx, cfg.IdleCartTTL); err != nil {
			return nil, nil, err
		}
		log.Infof("Connected to MongoDB at %s", cfg.MongoURI)
		return repo, func(ctx context.Context) error { return mongoDB.Client().Disconnect(ctx) }, nil

	case "memory":
		log.Warn("using in-memory store, carts are lost on restart")
		return repository.NewMemoryRepository(), func(context.Context) error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
