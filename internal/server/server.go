// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires configuration, storage and services into the HTTP
// application and runs it.
package server

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

	"codeberg.org/oliverandrich/authkit/internal/config"
	"codeberg.org/oliverandrich/authkit/internal/database"
	"codeberg.org/oliverandrich/authkit/internal/handlers"
	"codeberg.org/oliverandrich/authkit/internal/i18n"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/auth"
	"codeberg.org/oliverandrich/authkit/internal/services/email"
	"codeberg.org/oliverandrich/authkit/internal/services/onboarding"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Run builds the application from configuration and serves it until the
// process receives SIGINT or SIGTERM.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}

	repo := repository.New(db)
	hasher := password.NewHasher(password.DefaultParams())
	codec := token.NewCodec(nil)
	ledger := token.NewLedger(repo)
	tokens := token.NewService(codec, ledger, nil)
	authService := auth.NewService(repo, hasher, codec, &cfg.Auth)

	mailer, err := email.NewService(&cfg.SMTP, cfg.Server.ClientOrigin)
	if err != nil {
		return fmt.Errorf("creating email service: %w", err)
	}

	orchestrator := onboarding.New(repo, tokens, mailer, hasher, &cfg.Auth, nil)

	e := newEcho(cfg, orchestrator, authService)

	slog.Info("server_config",
		"database", cfg.Database.DSN,
		"client_origin", cfg.Server.ClientOrigin,
		"log_level", cfg.Log.Level,
	)

	return serve(ctx, e, cfg)
}

// newEcho assembles the echo instance with middleware and routes. Split out
// from Run so handler tests can stand up the full HTTP surface.
func newEcho(cfg *config.Config, orchestrator *onboarding.Orchestrator, authService *auth.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	setupMiddleware(e, cfg)

	h := handlers.New(orchestrator, authService)

	e.GET("/health", h.Health)

	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.GET("/verify", h.Verify)
	authGroup.POST("/resend", h.ResendVerification)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.Me, handlers.RequireSession(authService))

	return e
}

// serve runs the HTTP server and shuts it down gracefully on SIGINT/SIGTERM.
func serve(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}
