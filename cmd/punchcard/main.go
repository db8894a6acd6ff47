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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/punchcard/internal/database"
	"github.com/dukerupert/punchcard/internal/email"
	"github.com/dukerupert/punchcard/internal/logging"
	"github.com/dukerupert/punchcard/internal/seed"
	"github.com/dukerupert/punchcard/internal/server"
	"github.com/dukerupert/punchcard/internal/store"
)

func main() {
	cfg := loadConfig(os.Getenv)
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("punchcard exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		err = seed.Apply(ctx, f, store.NewRestaurantStore(db), store.NewRewardStore(db), logger.With("component", "seed"))
		if err != nil {
			return fmt.Errorf("apply seed file: %w", err)
		}
	}

	srv := server.New(db, server.Config{
		Email:          email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL),
		OriginPatterns: cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sweep(gctx, srv, logger)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sweep drops expired sessions and stale rate-limit windows.
func sweep(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	n, err := srv.SessionStore().DeleteExpired(ctx)
	if err != nil {
		logger.Error("delete expired sessions", "error", err)
	} else if n > 0 {
		logger.Info("deleted expired sessions", "count", n)
	}
	srv.RateLimiter().Cleanup()
}
