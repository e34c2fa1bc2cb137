package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"stego_gateway/internal/stego"
	"stego_gateway/platform/config"
	"stego_gateway/platform/logger"
	"stego_gateway/platform/metrics"
	"stego_gateway/platform/validator"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the upstream service answers its health endpoint",
		Long: `Calls GET {upstream}/health once and prints the payload.
Exits non-zero when the upstream cannot be reached or answers with an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.NewWithWriter(cfg.Env, os.Stderr)
			module := stego.NewModule(cfg, validator.New(), metrics.New(), log)
			return runProbe(cmd.Context(), module.Service(), cmd.OutOrStdout())
		},
	}
}

func runProbe(ctx context.Context, prober stego.UpstreamProber, out io.Writer) error {
	body, err := prober.Probe(ctx)
	if err != nil {
		return fmt.Errorf("upstream %s unreachable: %w", prober.UpstreamURL(), err)
	}
	fmt.Fprintf(out, "upstream %s healthy: %s\n", prober.UpstreamURL(), body)
	return nil
}

// waitForUpstream retries the probe with quadratic backoff until it succeeds
// or attempts run out.
func waitForUpstream(ctx context.Context, log *logger.Logger, prober stego.UpstreamProber, attempts int) error {
	return withRetry(ctx, log, "upstream health check", attempts, time.Second, func() error {
		_, err := prober.Probe(ctx)
		return err
	})
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", lastErr)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
