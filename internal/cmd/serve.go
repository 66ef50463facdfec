package cmd

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/core/engine"
	errwrap "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/metrics"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/server"
	"github.com/contactd/contactd/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// rateLimiterHealthChecker reports the limiter's table size and fails once
// it has been closed.
type rateLimiterHealthChecker struct {
	limiter *engine.RateLimiter
	closed  *atomic.Bool
}

func (c rateLimiterHealthChecker) CheckHealth(ctx context.Context) error {
	if c.closed != nil && c.closed.Load() {
		return errwrap.NewServiceUnavailableError("rate limiter closed")
	}
	metrics.SetRateLimitEntries(c.limiter.Len())
	return nil
}

// indexHealthChecker pings the search backend in index mode.
type indexHealthChecker struct {
	searcher dispatch.Searcher
}

func (c indexHealthChecker) CheckHealth(ctx context.Context) error {
	if _, err := c.searcher.Health(ctx); err != nil {
		return errwrap.WrapExternalService(ctx, err, "index backend unavailable")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the contact form HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read config file and apply the log level

The server stops accepting requests, drains in-flight submissions, stops the
rate limiter janitor and flushes logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
		}

		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:   identity.BinaryName,
			Level:     logLevel,
			Mode:      cfg.Mode,
			Namespace: namespace,
			Format:    cfg.Logging.Format,
		})

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		dispatcher, err := dispatch.New(cfg)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "dispatcher initialization failed")
		}

		limiterOpts := []engine.Option{engine.WithWindow(cfg.RateLimit.Window)}
		if cfg.RateLimit.SweepInterval > 0 {
			limiterOpts = append(limiterOpts, engine.WithSweepInterval(cfg.RateLimit.SweepInterval))
		}
		limiter := engine.NewRateLimiter(limiterOpts...)
		var limiterClosed atomic.Bool

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("mode", cfg.Mode),
			zap.String("dispatcher", dispatcher.Name()),
			zap.Duration("ratelimit_window", limiter.Window()),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", cfg.Metrics.Port))

		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("rate_limiter", rateLimiterHealthChecker{
			limiter: limiter,
			closed:  &limiterClosed,
		})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		if searcher, ok := dispatch.SearcherOf(dispatcher); ok {
			hm.RegisterChecker("index", indexHealthChecker{searcher: searcher})
		}

		startedAt := time.Now()
		handlers.SetAppIdentity(identity)
		handlers.SetRuntimeInfo(cfg.Mode, dispatcher.Name(), startedAt)
		metrics.SetServerStartTime(startedAt.Unix())

		srv := server.New(server.Options{
			Config:     cfg,
			Limiter:    limiter,
			Dispatcher: dispatcher,
			StartedAt:  startedAt,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown hooks run LIFO.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				observability.ServerLogger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			limiter.Close()
			limiterClosed.Store(true)
			observability.ServerLogger.Info("Rate limiter stopped",
				zap.Int("entries", limiter.Len()))
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.NewConfigInvalidError("config reload failed")
			}

			reloaded, err := config.Load(viper.GetViper())
			if err != nil {
				observability.ServerLogger.Error("Reloaded config is invalid", zap.Error(err))
				return errwrap.NewConfigInvalidError("config reload failed")
			}

			// Listener, dispatcher and limiter settings need a restart; only
			// the log level is applied live.
			observability.InitServerLogger(observability.ServerLoggerOptions{
				Service:   identity.BinaryName,
				Level:     reloaded.Logging.Level,
				Mode:      reloaded.Mode,
				Namespace: namespace,
				Format:    reloaded.Logging.Format,
			})
			observability.ServerLogger.Info("Configuration reloaded",
				zap.String("file", viper.ConfigFileUsed()),
				zap.String("log_level", reloaded.Logging.Level))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides server.port)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
