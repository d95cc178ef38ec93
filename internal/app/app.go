// Package app wires up and runs a benchmark invocation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wattbench/wattbench/internal/bench"
	"github.com/wattbench/wattbench/internal/config"
	"github.com/wattbench/wattbench/internal/gpu"
	"github.com/wattbench/wattbench/internal/httpserver"
	"github.com/wattbench/wattbench/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Run executes one benchmark run end to end: discover devices, optionally
// serve status over HTTP while measuring, then export artifacts.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config) error {
	appLogger := baseLogger.With("component", "app")

	gpus, err := gpu.Discover(cfg.SysfsRoot, baseLogger.With("component", "gpu_discovery"))
	if err != nil {
		return fmt.Errorf("discover gpus: %w", err)
	}
	appLogger.Info("discovered GPUs", "count", len(gpus), "nvidia", len(gpu.FilterNVIDIA(gpus)))

	var sampler *telemetry.Sampler
	if cfg.Telemetry.Enable {
		sampler, err = telemetry.NewSampler(cfg.Telemetry.DeviceIndex, cfg.Telemetry.SampleInterval, baseLogger)
		if err != nil {
			appLogger.Warn("telemetry sampler unavailable, running without receipts", "err", err)
		}
	}

	tracker := bench.NewTracker()
	runner := bench.NewRunner(cfg, baseLogger, tracker, sampler)

	var (
		srv   *httpserver.Server
		srvCh chan error
	)
	if cfg.EnableServer {
		srv = httpserver.New(cfg, baseLogger.With("component", "http"), gpus, sampler, tracker)
		srvCh = make(chan error, 1)
		go func() {
			srvCh <- srv.Start()
		}()
	}

	report, runErr := runner.Run(ctx)
	if runErr == nil {
		tracker.SetPhase(bench.PhaseWriting)
		if err := bench.WriteArtifacts(cfg.OutputDir, report); err != nil {
			runErr = fmt.Errorf("write artifacts: %w", err)
		} else {
			appLogger.Info("artifacts written", "dir", cfg.OutputDir, "run_id", report.RunID)
			if path, err := bench.WriteCharts(cfg.OutputDir, report.Receipt); err != nil {
				appLogger.Warn("failed to write charts", "err", err)
			} else if path != "" {
				appLogger.Info("charts written", "path", path)
			}
		}
		tracker.SetPhase(bench.PhaseDone)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Warn("http shutdown", "err", err)
		}
		if err := <-srvCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			if runErr == nil {
				runErr = err
			} else {
				appLogger.Warn("http server error", "err", err)
			}
		}
	}

	if runErr != nil {
		return runErr
	}
	appLogger.Info("run complete", "run_id", report.RunID)
	return nil
}
