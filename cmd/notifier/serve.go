package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/httpapi"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
)

func newServeCommand(rt *runtimeState) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the internal notification API",
		Long: `Serve the internal notification API.

Users, trips and participants are read from Postgres (DATABASE_URL). STORAGE_BACKEND
defaults to postgres when DATABASE_URL is set and to memory otherwise. The memory
backend starts empty and cannot be seeded, so it is only useful for tests and
smoke checks: every trigger answers 404 or "skipped".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt.logger, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", config.Getenv("PORT", "8080"), "Listen port (env PORT)")
	return cmd
}

func runServe(parent context.Context, logger *zap.Logger, port string) error {
	if parent == nil {
		parent = context.Background()
	}
	// Auth configuration:
	// - Production: require API_JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Subject
	authCfg, err := config.LoadAPIAuthConfigFromEnv()
	if err != nil {
		return err
	}
	var authMW func(http.Handler) http.Handler
	switch authCfg.Mode {
	case "dev":
		logger.Warn("AUTH_MODE=dev: bearer tokens are not verified", zap.String("default_subject", authCfg.DevSubject))
		authMW = httpapi.NewDevAuthMiddleware(authCfg.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(authCfg))
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	handler := httpapi.NewRouter(
		httpapi.NewServer(app.notifier, app.idemStore),
		httpapi.RouterOptions{AuthMiddleware: authMW, Logger: logger.Named("http")},
	)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("notifier listening",
			zap.String("addr", srv.Addr),
			zap.Bool("mail_available", app.notifier.DispatcherAvailable()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
