package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/core"
	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// serveCommand is the one real subcommand: load config, assemble the
// facade, start streaming, and serve /healthz + /metrics until a
// termination signal arrives — the teacher's realtime.Command's
// run-until-interrupted shape, generalized from a capture pipeline to
// this render graph.
func serveCommand(configPath *string) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the auralization core and its HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", ":8123", "address for the /healthz and /metrics HTTP surface")
	return cmd
}

func runServe(configPath, httpAddr string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("vaserver: loading config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = debugLevelToSlog(settings.Debug.LogLevel)
	logging.Init(logCfg)
	logger := logging.ForComponent("vaserver")

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	facade, err := core.BuildFromSettings(settings, recorder)
	if err != nil {
		return fmt.Errorf("vaserver: building core: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := facade.Start(ctx); err != nil {
		return fmt.Errorf("vaserver: starting core: %w", err)
	}
	logger.Info("core started", "state", facade.State().String())

	e := echoServer(facade, registry)
	go func() {
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}

	if err := facade.Finalize(); err != nil {
		return fmt.Errorf("vaserver: finalizing core: %w", err)
	}
	return nil
}

func echoServer(facade *core.Facade, registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		state := facade.State()
		if state != core.StateRunning {
			return c.String(http.StatusServiceUnavailable, state.String())
		}
		for name, healthy := range facade.Health.AllHealth() {
			if !healthy {
				return c.String(http.StatusServiceUnavailable, fmt.Sprintf("%s stale", name))
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return e
}

// debugLevelToSlog maps the INI config's 0-5 verbosity scale onto
// slog's four levels, clamping rather than rejecting a value outside
// 0-5.
func debugLevelToSlog(level int) slog.Level {
	switch {
	case level <= 0:
		return slog.LevelError
	case level == 1:
		return slog.LevelWarn
	case level <= 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
