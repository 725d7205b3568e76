package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"tubecritique/agents/tube-critique/api"
	"tubecritique/shared/config"
	"tubecritique/shared/monitoring"
	"tubecritique/shared/scheduler"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, true)
	monitor := monitoring.NewMonitor(logger.With("component", "monitor"))

	pipeline, client, err := newPipeline(ctx, cfg, monitor, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(logger.With("component", "scheduler"))
	if client.UsesOAuth() {
		refresh := scheduler.JobFunc{JobName: "youtube-token-refresh", Fn: client.RefreshToken}
		if err := sched.Add(cfg.YouTube.TokenRefresh, refresh); err != nil {
			return err
		}
	}
	go sched.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewHandler(pipeline, monitor, cfg.Server.AllowedOrigins, logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr, "model", cfg.AI.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
