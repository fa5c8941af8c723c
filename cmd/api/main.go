package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/config"
	"github.com/ariefcatur/go-batch-orders/internal/gateway"
	"github.com/ariefcatur/go-batch-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-batch-orders/internal/kafka"
	"github.com/ariefcatur/go-batch-orders/internal/logging"
	"github.com/ariefcatur/go-batch-orders/internal/metrics"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"github.com/ariefcatur/go-batch-orders/internal/postgres"
	"github.com/ariefcatur/go-batch-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.MustNew(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	// Redis: snapshot order terminal untuk GET cepat
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unavailable, order lookups go to postgres", zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFinalized, 1024, logger)
	prod.Start(ctx)

	inv := gateway.New(cfg.InventoryURL, cfg.InventoryTimeout, cfg.InventoryRetries, cfg.InventoryRetryBackoff, logger)

	saga := &orders.Coordinator{
		Repo:      &orders.Repo{DB: db},
		Inventory: inv,
		Events:    prod,
		Metrics:   metrics.NewOrders(prometheus.DefaultRegisterer),
		Log:       logger,
		Service:   cfg.ServiceName,
	}

	router := httpx.NewRouter(logger, promhttp.Handler())
	(&httpx.OrdersHandler{
		Saga:  saga,
		Cache: &redisx.OrderCache{RDB: rdb},
		Log:   logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("inventory_url", cfg.InventoryURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
