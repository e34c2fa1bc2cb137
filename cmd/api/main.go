package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "stego_gateway/internal/http"
	"stego_gateway/internal/http/router"
	"stego_gateway/internal/stego"
	"stego_gateway/platform/config"
	"stego_gateway/platform/logger"
	"stego_gateway/platform/metrics"
	"stego_gateway/platform/telemetry"
	"stego_gateway/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	baseReadTimeout = 30 * time.Second
	// minUploadRate is the slowest client upload speed served in full, in bytes per second.
	minUploadRate = 256 << 10
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serveCmd := newServeCmd()
	rootCmd := &cobra.Command{
		Use:   "stego-gateway",
		Short: "HTTP gateway in front of the steganography service",
		Long: `Accepts encode and decode uploads, validates them and forwards them to the
upstream steganography service, relaying its answer to the caller.

Running without a subcommand is the same as "serve".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_FILE", configPath)
			}
			return nil
		},
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd, newProbeCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE:  runServe,
	}
	cmd.Flags().Int("wait-upstream", 0, "Attempts to reach the upstream health endpoint before serving (0 skips the check)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	attempts, err := cmd.Flags().GetInt("wait-upstream")
	if err != nil {
		return fmt.Errorf("failed to get wait-upstream flag: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "upstream", cfg.UpstreamURL)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	m := metrics.New()
	stegoModule := stego.NewModule(cfg, validator.New(), m, log)

	if attempts > 0 {
		if err := waitForUpstream(ctx, log, stegoModule.Service(), attempts); err != nil {
			log.Warn("upstream not reachable at startup, serving anyway", "error", err)
		}
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Modules: []apphttp.Module{
			stegoModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       uploadReadTimeout(cfg),
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	case err := <-srvErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("server error", "error", err)
		return fmt.Errorf("server error: %w", err)
	}
}

// uploadReadTimeout bounds how long one request body may take to arrive:
// the largest accepted upload at minUploadRate, plus baseReadTimeout.
func uploadReadTimeout(cfg config.UploadConfig) time.Duration {
	maxBody := cfg.GetMaxUploadBytes() + 2*cfg.GetMaxFieldBytes()
	return baseReadTimeout + time.Duration(maxBody/minUploadRate)*time.Second
}
