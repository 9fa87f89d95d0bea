package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ariefcatur/go-supplier-orders/internal/audit"
	"github.com/ariefcatur/go-supplier-orders/internal/config"
	kafkax "github.com/ariefcatur/go-supplier-orders/internal/kafka"
	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/ariefcatur/go-supplier-orders/internal/postgres"
	"github.com/ariefcatur/go-supplier-orders/internal/redisx"
	"github.com/joho/godotenv"
)

// audit consumes order.lifecycle into order_audit_log.
//
//	audit                    run the consumer
//	audit history <order_id> print one order's trail as JSON
func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
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
	pglog := &audit.PGLog{DB: db}

	if len(os.Args) > 2 && os.Args[1] == "history" {
		orderID, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			log.Error("invalid order id", "arg", os.Args[2])
			os.Exit(2)
		}
		entries, err := pglog.History(ctx, orderID)
		if err != nil {
			log.Error("history", "error", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(entries)
		return
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Log:    pglog,
		Dedup:  &redisx.Deduper{R: rdb, Service: cfg.AuditGroup},
		Logger: log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, orders.TopicOrderLifecycle, cfg.AuditWorkers, log)
	log.Info("audit consumer started", "group", cfg.AuditGroup, "topic", orders.TopicOrderLifecycle, "workers", cfg.AuditWorkers)
	if err := cons.Start(ctx, svc.HandleLifecycle); err != nil {
		log.Error("consumer exit", "error", err)
		os.Exit(1)
	}
	log.Info("audit consumer stopped")
}
