// Command speechhook runs the speech-onset detection server: a WebSocket
// media-stream ingest that reports speech onsets ("barge-in") back to the
// caller, with health probes and Prometheus metrics on the same listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speechhook/internal/config"
	"github.com/MrWong99/speechhook/internal/health"
	"github.com/MrWong99/speechhook/internal/observe"
	"github.com/MrWong99/speechhook/internal/stream"
	"github.com/MrWong99/speechhook/pkg/onset"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speechhook: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speechhook: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("speechhook starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Detector configuration ────────────────────────────────────────────────
	detCfg, err := cfg.Detector.Build()
	if err != nil {
		slog.Error("failed to resolve detector config", "err", err)
		return 1
	}
	// Validate once up front so a bad config fails at startup, not on the
	// first connection.
	if _, err := onset.New(detCfg); err != nil {
		slog.Error("invalid detector config", "err", err)
		return 1
	}

	slog.Info("detector configured",
		"preset", cfg.Detector.Preset,
		"encoding", detCfg.Encoding,
		"sample_rate", detCfg.SampleRate,
		"frame_size", detCfg.FrameSize,
		"onset_frames", detCfg.OnsetFrames,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "speechhook",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── HTTP routes ───────────────────────────────────────────────────────────
	healthHandler := health.New()
	healthHandler.Register("detector", detectorSelfTest(detCfg))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.Healthz)
	mux.HandleFunc("/readyz", healthHandler.Readyz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/v1/listen", stream.New(stream.Config{
		Detector:         detCfg,
		SourceSampleRate: cfg.Stream.SourceSampleRate,
	}, observe.DefaultMetrics()))

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// detectorSelfTest returns a readiness check that constructs a detector from
// the configured parameters and runs one silent frame through it.
func detectorSelfTest(cfg onset.Config) health.Check {
	return func(ctx context.Context) error {
		d, err := onset.New(cfg)
		if err != nil {
			return err
		}
		frame := make([]byte, cfg.FrameSize*cfg.Encoding.SampleWidth())
		if cfg.Encoding == onset.EncodingMuLaw {
			for i := range frame {
				frame[i] = 0xFF // mu-law code for zero
			}
		}
		_, err = d.ProcessFrame(frame)
		return err
	}
}

// newLogger builds a text slog handler at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
