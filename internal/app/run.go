package app

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kedgeproxy/kedge/internal/cache"
	"github.com/kedgeproxy/kedge/internal/config"
	"github.com/kedgeproxy/kedge/internal/proxy"
)

func run(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "./kedge.kdl", "path to config file or directory of .kdl files")
	cacheDB := fs.String("cache-db", "./.data/kedge.db", "path to sqlite response cache db file")
	cacheTTL := fs.Duration("cache-ttl", 5*time.Minute, "response cache entry lifetime")
	logLevel := fs.String("log-level", "info", "log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, config.FileSource{}, *configPath)
	if err != nil {
		logger.Error("load_config_failed", slog.Any("err", err))
		return 1
	}
	logger.Info("config_ok", slog.Int("services", len(cfg.Services)))

	tracingEnabled := cfg.Observability != nil && cfg.Observability.TracingCollector != ""
	if tracingEnabled {
		shutdownTracing, err := initTracing(ctx, *cfg.Observability, func(err error) {
			logger.Error("tracing_export_failed", slog.Any("err", err))
		})
		if err != nil {
			logger.Error("tracing_init_failed", slog.Any("err", err))
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
		logger.Info("tracing_enabled", slog.String("collector", cfg.Observability.TracingCollector))
	}

	store, err := cache.Open(*cacheDB, cache.WithTTL(*cacheTTL))
	if err != nil {
		logger.Error("open_cache_failed", slog.Any("err", err))
		return 1
	}
	defer func() { _ = store.Close() }()

	rt, err := proxy.NewRuntime(cfg.Services, proxy.Options{
		Cache:          store,
		Logger:         logger,
		TracingEnabled: tracingEnabled,
	})
	if err != nil {
		logger.Error("start_proxy_failed", slog.Any("err", err))
		return 1
	}

	if err := rt.Run(ctx); err != nil {
		logger.Error("proxy_failed", slog.Any("err", err))
		return 1
	}
	return 0
}
