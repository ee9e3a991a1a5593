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

	"github.com/TworzymyMarzenia3d/front-crm/internal/clients"
	"github.com/TworzymyMarzenia3d/front-crm/internal/config"
	"github.com/TworzymyMarzenia3d/front-crm/internal/fulfillment"
	"github.com/TworzymyMarzenia3d/front-crm/internal/httpx"
	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	kafkax "github.com/TworzymyMarzenia3d/front-crm/internal/kafka"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
	"github.com/TworzymyMarzenia3d/front-crm/internal/memstore"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/postgres"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/TworzymyMarzenia3d/front-crm/internal/schedule"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env).With("service", cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = memstore.New()
	default:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
				log.Error("migrate", "err", err)
				os.Exit(1)
			}
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		store = postgres.NewStore(db)
	}

	// Events
	var pub orders.Publisher = orders.NopPublisher{}
	var events *kafkax.EventPublisher
	// Producers outlive the signal context so in-flight requests can still
	// publish during shutdown; Close drains them.
	pubCtx, pubCancel := context.WithCancel(context.Background())
	defer pubCancel()
	if len(cfg.KafkaBrokers) > 0 {
		events = kafkax.NewEventPublisher(cfg.KafkaBrokers, 1024, log)
		events.Start(pubCtx)
		pub = events
	} else {
		log.Warn("KAFKA_BROKERS empty; events are dropped")
	}

	inv := &inventory.Service{Store: store, Publisher: pub, Log: log, ServiceName: cfg.ServiceName}
	ful := &fulfillment.Service{
		Store:       store,
		Inventory:   inv,
		Locker:      fulfillment.NewLocalLocker(),
		Publisher:   pub,
		Log:         log,
		ServiceName: cfg.ServiceName,
	}
	sched := &schedule.Service{Store: store, Publisher: pub, Log: log, ServiceName: cfg.ServiceName}

	h := &httpx.Handler{
		Clients:   &clients.Service{Store: store, Log: log},
		Inventory: inv,
		Orders:    ful,
		Schedule:  sched,
		Log:       log,
		Timeout:   cfg.RequestTimeout,
	}

	// Redis: cross-instance order locks, status cache, idempotency keys
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Error("redis ping", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		ful.Locker = redisx.NewLocker(rdb, cfg.OrderLockTTL)
		h.Status = &redisx.StatusCache{RDB: rdb}
		h.Idempotency = &redisx.Idempotency{RDB: rdb}
	}

	router := httpx.NewRouter(httpx.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        cfg.MetricsEnabled,
		AccessLog:      cfg.Env == "dev",
	})
	h.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	if events != nil {
		// Handlers still running after a timed-out Shutdown get
		// ErrProducerClosed from Publish; their events are logged as dropped.
		events.Close()
	}
}
