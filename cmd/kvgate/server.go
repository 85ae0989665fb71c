package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/kvgate/config"
	"github.com/c360/kvgate/handler"
	"github.com/c360/kvgate/health"
	"github.com/c360/kvgate/metric"
	"github.com/c360/kvgate/storage"
)

// routes builds one handler per configured variant on a shared mux. The mux
// carries nothing else, so a variant mounted at "/" owns every path. It
// returns the set of tables in use.
func routes(
	cfg *config.Config,
	store storage.Store,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*http.ServeMux, []string, error) {
	mux := http.NewServeMux()
	tables := make(map[string]struct{})

	for _, v := range cfg.HandlerVariants() {
		h, err := handler.New(v, store, cfg.Storage.TableName,
			handler.WithLogger(logger),
			handler.WithMetrics(registry.CoreMetrics()),
			handler.WithMaxRequestSize(cfg.Server.MaxRequestSize),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		tables[h.Table()] = struct{}{}

		mount := h.Variant().Mount()
		if mount == "/" {
			mux.Handle("/", h)
		} else {
			mux.Handle(mount+"/", http.StripPrefix(mount, h))
		}
		logger.Info("Mounted variant", "variant", v.Name, "mount", mount, "table", h.Table())
	}

	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)
	return mux, names, nil
}

// opsServer builds the operations listener serving metrics and health. It
// returns nil when no metrics address is configured.
func opsServer(cfg *config.Config, registry *metric.MetricsRegistry, monitor *health.Monitor) *metric.Server {
	if cfg.Server.MetricsAddr == "" {
		return nil
	}
	ops := metric.NewServer(cfg.Server.MetricsAddr, cfg.Server.MetricsPath, registry)
	if cfg.Server.HealthPath != "" {
		ops.Handle(cfg.Server.HealthPath, health.Handler(monitor, appName))
	}
	return ops
}

// runPurger removes expired records from every table on each tick until ctx
// is cancelled. Purge failures are logged and retried on the next tick.
func runPurger(
	ctx context.Context,
	purger storage.Purger,
	tables []string,
	interval time.Duration,
	metrics *metric.Metrics,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, table := range tables {
				n, err := purger.Purge(ctx, table, now)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Warn("Purge failed", "table", table, "error", err)
					continue
				}
				metrics.RecordPurged(table, n)
				if n > 0 {
					logger.Debug("Purged expired records", "table", table, "count", n)
				}
			}
		}
	}
}

// serve runs the gateway server, the operations server when ops is non-nil,
// and the purge loop when the store supports it. It returns once ctx is
// cancelled and the servers have drained.
func serve(
	ctx context.Context,
	cfg *config.Config,
	mux http.Handler,
	ops *metric.Server,
	store storage.Store,
	tables []string,
	metrics *metric.Metrics,
	logger *slog.Logger,
) error {
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if ops != nil {
			return ops.Shutdown(shutdownCtx)
		}
		return nil
	})

	if ops != nil {
		g.Go(func() error {
			logger.Info("Operations server listening", "metrics", ops.Address())
			return ops.Start()
		})
	}

	if purger, ok := store.(storage.Purger); ok && cfg.Storage.PurgeInterval > 0 {
		g.Go(func() error {
			logger.Info("Starting purge loop", "interval", cfg.Storage.PurgeInterval.String(), "tables", tables)
			return runPurger(gctx, purger, tables, cfg.Storage.PurgeInterval.Std(), metrics, logger)
		})
	}

	return g.Wait()
}
