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
	"github.com/ariefcatur/go-batch-orders/internal/httpx"
	"github.com/ariefcatur/go-batch-orders/internal/inventory"
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
	cfg := config.LoadInventory()

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

	// Redis: cache receipt untuk dedup retry. Kalau mati, deduksi tetap jalan tanpa dedup.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unavailable, request id replay disabled until it recovers", zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicInventoryDeducted, 1024, logger)
	prod.Start(ctx)

	svc := &inventory.Service{
		Store:       &inventory.PgStore{DB: db},
		Strategies:  inventory.NewRegistry(cfg.DefaultStrategy),
		Receipts:    &redisx.ReceiptCache{RDB: rdb},
		Events:      prod,
		Metrics:     metrics.NewInventory(prometheus.DefaultRegisterer),
		Log:         logger,
		ServiceName: cfg.ServiceName,
	}

	// Consumer: rekonsiliasi stok dari order yang FAILED
	rec := &inventory.Reconciler{Metrics: svc.Metrics, Log: logger}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, orders.TopicOrderFinalized, cfg.ConsumerWorkers, logger)
	consDone := make(chan struct{})
	go func() {
		defer close(consDone)
		logger.Info("consumer started", zap.String("topic", orders.TopicOrderFinalized), zap.Int("workers", cfg.ConsumerWorkers))
		if err := cons.Start(ctx, rec.HandleOrderFinalized); err != nil {
			logger.Error("consumer exit", zap.Error(err))
		}
	}()

	router := httpx.NewRouter(logger, promhttp.Handler())
	(&httpx.InventoryHandler{Service: svc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("default_strategy", svc.Strategies.Default().Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel() // stop consumer loop
	<-consDone
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
