package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-supplier-orders/internal/config"
	"github.com/ariefcatur/go-supplier-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-supplier-orders/internal/kafka"
	"github.com/ariefcatur/go-supplier-orders/internal/metrics"
	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/ariefcatur/go-supplier-orders/internal/postgres"
	"github.com/ariefcatur/go-supplier-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		return
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderLifecycle, 1024, log)
	prod.Start(ctx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sm := metrics.NewServerMetrics(reg, cfg.ServiceName)

	// Engine & handler
	repo := &orders.Repo{DB: db}
	svc := &orders.Service{
		Store:   repo,
		Catalog: repo,
		Policy:  cfg.Policy(),
		Log:     log,
	}
	router := httpx.NewRouter(sm, reg)
	auth := &httpx.Authenticator{Secret: []byte(cfg.JWTSecret)}
	oh := &httpx.OrdersHandler{
		Orders:  svc,
		Events:  prod,
		Cache:   &redisx.StatusCache{R: rdb},
		Service: cfg.ServiceName,
		Log:     log,
	}
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		oh.Register(r)
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error("server exit", "error", err)
		os.Exit(1)
	}
}
