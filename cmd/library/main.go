package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"library_management/pkg/accounts"
	"library_management/pkg/api"
	"library_management/pkg/auth"
	"library_management/pkg/config"
	"library_management/pkg/database"
	"library_management/pkg/lending"
	"library_management/pkg/logging"
	"library_management/pkg/notification"
	"library_management/pkg/ratelimit"
	"library_management/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(logger)
	logger.Info("Starting library service...", "env", cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("Library service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitLendingDB(cfg.DB, logger)
	if err != nil {
		return err
	}
	repo := store.New(db)

	if cfg.SeedData {
		if err := seedTestData(ctx, repo, logger); err != nil {
			return err
		}
	}

	notifier := notification.NewClient(cfg.Notify.URL, cfg.Notify.Timeout, logger)
	go notifier.Run(ctx)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.New(api.Deps{
		Lending:       lending.NewService(repo, cfg.Lending, notifier, logger),
		Accounts:      accounts.NewService(repo, issuer, logger),
		Notifications: notifier,
		Issuer:        issuer,
		SignInLimiter: ratelimit.New(cfg.SignIn.RPS, cfg.SignIn.Burst),
		DB:            db,
		Log:           logger,
	})
	router, err := server.Router()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Library service starting", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	notifier.Flush(flushCtx)
	cancel()
	if pending := notifier.Pending(); pending > 0 {
		logger.Warn("Undelivered notifications dropped on shutdown", "count", pending)
	}
	logger.Info("Library service stopped")
	return nil
}
