package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TworzymyMarzenia3d/front-crm/internal/config"
	kafkax "github.com/TworzymyMarzenia3d/front-crm/internal/kafka"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/projector"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env).With("service", cfg.ServiceName+"-status-projector")

	if cfg.RedisAddr == "" || len(cfg.KafkaBrokers) == 0 {
		log.Error("status projector needs REDIS_ADDR and KAFKA_BROKERS")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error("redis ping", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	p := &projector.StatusProjector{
		Cache: &redisx.StatusCache{RDB: rdb},
		Dedup: &redisx.Dedup{RDB: rdb, Service: cfg.ProjectorGroup},
		Log:   log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderStatusChanged, cfg.ProjectorWorkers, log)

	log.Info("consumer started", "group", cfg.ProjectorGroup, "topic", orders.TopicOrderStatusChanged, "workers", cfg.ProjectorWorkers)
	if err := cons.Start(ctx, p.Handle); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("shutting down")
}
