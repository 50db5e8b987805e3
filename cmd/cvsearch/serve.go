package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/cvsearch/internal/transport/chi"
	"github.com/kailas-cloud/cvsearch/internal/version"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API: search (GET and POST /search), record ingestion and
lookup under /records, /health and Prometheus /metrics.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if port > 0 {
				cfg.HTTP.Port = port
			}

			logger.Info("Starting cvsearch API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", env),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.String("db_driver", cfg.Database.Driver),
				zap.Strings("db_addrs", cfg.Database.Addrs),
			)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.serveHTTP(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (0 = use config)")
	return cmd
}

// serveHTTP blocks until ctx is done, then drains in-flight requests.
func (a *app) serveHTTP(ctx context.Context) error {
	handler := chiTransport.NewServer(a.search, a.ingest, a.records, a.health, a.usage, chiTransport.Options{
		APIKeys:      a.cfg.Auth.APIKeys,
		DefaultLimit: a.cfg.Search.DefaultLimit,
		MaxLimit:     a.cfg.Search.MaxLimit,
	}, a.logger).Handler()

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
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
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
