package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/broker"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/config"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/gateway/checkout"
	h "github.com/NitheshChakaravarthySeelan/community-platform/internal/gateway/http"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/tracing"
	"github.com/NitheshChakaravarthySeelan/community-platform/pkg/circuitbreaker"
	"github.com/NitheshChakaravarthySeelan/community-platform/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "api-gateway"

func main() {
	cfg := config.LoadGateway()
	log := logger.New(serviceName, cfg.LogLevel)

	tp := tracing.Init(serviceName)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sagaMetrics := metrics.NewSagaMetrics(reg, "gateway")
	serverMetrics := metrics.NewServerMetrics(reg, "gateway")

	kafkaClient := broker.NewClient(cfg.KafkaBrokers)
	if !kafkaClient.Enabled() {
		log.Fatal("KAFKA_BROKERS must list at least one broker")
	}
	producer := kafkaClient.NewProducer(cfg.CheckoutTopic)
	log.WithField("topic", cfg.CheckoutTopic).Info("kafka producer ready")

	initiator := checkout.NewInitiator(producer, log, sagaMetrics)
	authClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	router := h.NewRouter(h.RouterDeps{
		Backends: cfg.Backends,
		Checkout: h.NewCheckoutHandler(initiator, cfg.RequestTimeout, cfg.MaxRequestBodySize),
		Proxy:    h.NewProxyHandler(cfg.RequestTimeout, cfg.MaxRequestBodySize, circuitbreaker.DefaultConfig(), log),
		Auth:     h.NewAuthenticator(authClient, cfg.Backends.Auth, log),
		Metrics:  serverMetrics,
		Gatherer: reg,
		Timeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("API Gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if err := producer.Close(); err != nil {
		log.WithError(err).Error("failed to close kafka producer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.WithError(err).Error("failed to shut down tracer provider")
	}

	log.Info("server exited")
}
