package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/slotbook-backend/api/routes"
	"github.com/angelmondragon/slotbook-backend/internal/catalog"
	"github.com/angelmondragon/slotbook-backend/internal/inventory"
	"github.com/angelmondragon/slotbook-backend/internal/jobs"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/reconcile"
	"github.com/angelmondragon/slotbook-backend/internal/reservations"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/db"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
	"github.com/angelmondragon/slotbook-backend/pkg/migrate"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cat, err := catalog.LoadFile(cfg.Catalog.PriceFile)
	if err != nil {
		logg.Error(context.Background(), "failed to load catalog prices", err)
		os.Exit(1)
	}

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	slotRepo := slots.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)

	slotStore, err := slots.NewStore(slotRepo, dbClient, cfg.Reservation.DefaultSlotCapacity, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create slot store", err)
		os.Exit(1)
	}

	engine, err := reservations.NewEngine(reservations.Config{
		HoldTTL:     cfg.Reservation.HoldTTL,
		MaxListDays: cfg.Reservation.MaxListDays,
		Location:    cfg.Reservation.Location(),
	}, reservations.Deps{
		Tx:      dbClient,
		Orders:  orderRepo,
		Slots:   slotRepo,
		Store:   slotStore,
		Outbox:  emitter,
		Metrics: reservationMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation engine", err)
		os.Exit(1)
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()), dbClient, emitter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orderRepo, dbClient, cat, ledger, engine, emitter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reconciler, err := reconcile.NewService(reconcile.Params{
		Tx:       dbClient,
		Slots:    slotRepo,
		Orders:   orderRepo,
		Outbox:   emitter,
		Metrics:  reservationMetrics,
		Logger:   logg,
		MaxDays:  cfg.Reservation.MaxReconcileDays,
		Location: cfg.Reservation.Location(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	runner, err := jobs.NewRunner(jobs.RunnerParams{
		Logger: logg,
		Locks: func(name string) (jobs.Lock, error) {
			return jobs.NewRedisLock(redisClient, redisClient.LockKey(name), 0)
		},
		Metrics: metrics.NewJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job runner", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"products": cat.Len(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Gatherer:     prometheus.DefaultGatherer,
			Slots:        engine,
			Reservations: engine,
			Drafts:       orderService,
			Orders:       orderService,
			SlotAdmin:    slotStore,
			Inventory:    ledger,
			Reconciler:   reconciler,
			Jobs:         runner,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
