// Command server runs the tutorX API.
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

	"tutorx/internal/config"
	"tutorx/internal/middleware"
	"tutorx/internal/observability"
	"tutorx/internal/server"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title tutorX API
// @version 1.0
// @description Tutoring and social video platform: tutors, posts, likes, follows, favorites, comments and ratings.

// @contact.name API Support
// @contact.email support@tutorx.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))
	slog.SetDefault(middleware.Logger)

	observability.InitReporting(observability.ReportingConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		CodeVersion: version,
	})
	defer observability.FlushReporting()

	stopTracing, err := observability.StartTracing(context.Background(), observability.TraceSettings{
		Enabled:      cfg.TracingEnabled,
		Version:      version,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRatio:  1,
	})
	if err != nil {
		middleware.Logger.Error("failed to init tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		middleware.Logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := stopTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		middleware.Logger.Error("server stopped", slog.String("error", err.Error()))
		observability.FlushReporting()
		os.Exit(1)
	}
}
