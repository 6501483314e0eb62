package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tyburd/mangabot/internal/api"
	"github.com/tyburd/mangabot/internal/app"
	"github.com/tyburd/mangabot/internal/config"
	"github.com/tyburd/mangabot/internal/logging"
	"github.com/tyburd/mangabot/internal/store"
	"github.com/tyburd/mangabot/internal/tracker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("mangabot_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close(db)

	sources, err := app.NewSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sources.Close()

	publisher, err := app.NewPublisher(cfg, sources.Transport)
	if err != nil {
		return err
	}

	svc := tracker.NewService(sources.Registry, store.NewRepository(db), tracker.NewSeriesLocks(), logger)
	poller := tracker.NewPoller(tracker.PollerConfig{
		Interval: cfg.PollInterval,
		Workers:  cfg.PollWorkers,
		Backoff: tracker.Backoff{
			MaxRetries:   cfg.PollMaxRetries,
			InitialDelay: tracker.DefaultBackoff.InitialDelay,
			MaxDelay:     tracker.DefaultBackoff.MaxDelay,
		},
	}, svc, publisher, app.NewNotifier(cfg, logger), logger)

	var auth api.AuthService
	if cfg.AdminEnabled() {
		auth = api.NewAuthService(cfg.JWTSecret, cfg.AdminKeyHash, cfg.AccessTokenTTL)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterDeps{
		Tracker:  svc,
		Poller:   poller,
		Registry: sources.Registry,
		Auth:     auth,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	poller.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("mangabot_stopped_gracefully")
	return nil
}
