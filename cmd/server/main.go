package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/studio-booking-backend/internal/app"
	"github.com/nekogravitycat/studio-booking-backend/internal/config"
	"github.com/nekogravitycat/studio-booking-backend/internal/db"
	"github.com/nekogravitycat/studio-booking-backend/internal/notify"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup completes before main exits.
func run() error {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  logFormat(cfg.IsProduction),
		Service: "studio-booking",
	})
	slog.SetDefault(log)

	var pool *pgxpool.Pool
	if cfg.StoreBackend == config.BackendPostgres {
		pool, err = db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("connect to db: %w", err)
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("prepare schema: %w", err)
		}
	}

	container, err := app.NewContainer(app.Config{
		IsProduction: cfg.IsProduction,
		ProdOrigins:  cfg.ProdOrigins,
		Logger:       log,
		StoreBackend: cfg.StoreBackend,
		DataDir:      cfg.DataDir,
		DBPool:       pool,
		JWTSecret:    cfg.JWTSecret,
		JWTTTL:       cfg.JWTAccessTokenTTL,
		HorizonDays:  cfg.BookingHorizonDays,
		MaxRetries:   cfg.MaxTransitionRetries,
		Location:     cfg.StudioLocation,
		Dispatch: notify.DispatcherConfig{
			Workers:   cfg.DispatchWorkers,
			QueueSize: cfg.DispatchQueueSize,
			Timeout:   cfg.DispatchTimeout,
		},
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaNotificationTopic,
	})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	container.Start()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server running", "addr", cfg.HTTPAddr, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server first so no new events are emitted while draining.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Warn("side effects not fully drained", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
	}

	log.Info("server exited gracefully")
	return nil
}

func logFormat(production bool) string {
	if production {
		return logger.FormatJSON
	}
	return logger.FormatText
}
