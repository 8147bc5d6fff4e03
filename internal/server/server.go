// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/bizcard-snap/internal/config"
	"codeberg.org/oliverandrich/bizcard-snap/internal/database"
	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
	"codeberg.org/oliverandrich/bizcard-snap/internal/handlers"
	"codeberg.org/oliverandrich/bizcard-snap/internal/i18n"
	appmw "codeberg.org/oliverandrich/bizcard-snap/internal/middleware"
	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/cards"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/reset"
)

// Services are the application services the routes dispatch to.
type Services struct {
	Accounts *auth.Service
	Resets   *reset.Service
	Cards    *cards.Service
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository
	repo := repository.New(db)

	// Extraction
	caps, err := newCapabilities(ctx, cfg.Extraction)
	if err != nil {
		return err
	}
	defer caps.Close()

	pipeline := extraction.New(caps.recognizer, caps.decoder, caps.classifier, extraction.Options{
		Threshold: cfg.Extraction.Threshold,
		Nested:    cfg.Extraction.Nested,
		Timeout:   cfg.Extraction.Timeout,
	})

	// Services
	mailer, err := newMailer(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to init email: %w", err)
	}
	accounts := auth.NewService(repo, auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	svc := Services{
		Accounts: accounts,
		Resets: reset.NewService(repo, accounts, mailer, reset.Options{
			CodeLength:  cfg.Reset.CodeLength,
			CodeTTL:     cfg.Reset.CodeTTL,
			MaxAttempts: cfg.Reset.MaxAttempts,
		}),
		Cards: cards.NewService(repo, pipeline, cfg.Extraction.MaxImageSide).WithMaxPixels(cfg.Extraction.MaxImagePixels),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reset.SweepInterval > 0 {
		go svc.Resets.RunSweeper(ctx, cfg.Reset.SweepInterval)
	}

	return startWithGracefulShutdown(ctx, New(cfg, svc), cfg)
}

// New builds the Echo instance with middleware and routes.
func New(cfg *config.Config, svc Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, cfg, svc)

	return e
}

func setupRoutes(e *echo.Echo, cfg *config.Config, svc Services) {
	ah := handlers.NewAuth(svc.Accounts, svc.Resets)
	ch := handlers.NewCards(svc.Cards)

	limited := echo.WrapMiddleware(appmw.RateLimit(cfg.RateLimit.PerMinute))
	bearer := echo.WrapMiddleware(appmw.RequireBearer(svc.Accounts))

	e.GET("/health", handlers.Health)

	// Accounts
	e.POST("/signup", ah.Signup, limited)
	e.POST("/login", ah.Login, limited)
	e.GET("/validate-token", ah.ValidateToken, bearer)
	e.GET("/current_user", ah.CurrentUser, bearer)
	e.DELETE("/delete_account", ah.DeleteAccount, bearer)

	// Password reset
	e.POST("/send-reset-code", ah.SendResetCode, limited)
	e.POST("/verify-reset-code", ah.VerifyResetCode, limited)
	e.POST("/reset-password", ah.ResetPassword, limited)

	// Cards
	e.POST("/extract", ch.Extract, bearer)
	e.GET("/cards", ch.List, bearer)
	e.DELETE("/cards", ch.DeleteByTimestamp, bearer)
	e.DELETE("/cards/:id", ch.Delete, bearer)
	e.GET("/cards/:id/qr", ch.QRCode, bearer)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
		return err
	}

	slog.Info("server stopped")
	return nil
}
