package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/kvgate/config"
	"github.com/c360/kvgate/health"
	"github.com/c360/kvgate/metric"
	"github.com/c360/kvgate/natsclient"
	"github.com/c360/kvgate/storage"
	"github.com/c360/kvgate/storage/boltstore"
	"github.com/c360/kvgate/storage/kvstore"
	"github.com/c360/kvgate/storage/memstore"
	"github.com/c360/kvgate/storage/sqlstore"
)

const natsComponent = "nats"

// backend is an opened storage.Store together with its release function.
type backend struct {
	store storage.Store
	close func(context.Context) error
}

// openBackend opens the store selected by cfg.Backend and registers its
// health reporting on monitor.
func openBackend(
	ctx context.Context,
	cfg config.StorageConfig,
	logger *slog.Logger,
	metrics *metric.Metrics,
	monitor *health.Monitor,
) (*backend, error) {
	switch cfg.Backend {
	case config.BackendNATS:
		return openNATS(ctx, cfg, logger, metrics, monitor)

	case config.BackendSQLite:
		s, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		monitor.Register("storage", s.Ping)
		return &backend{store: s, close: func(context.Context) error { return s.Close() }}, nil

	case config.BackendBolt:
		s, err := boltstore.Open(cfg.Bolt.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		monitor.UpdateHealthy("storage", "bolt file open")
		return &backend{store: s, close: func(context.Context) error { return s.Close() }}, nil

	case config.BackendMemory:
		logger.Warn("Using in-memory storage, records are lost on exit")
		monitor.UpdateHealthy("storage", "in-memory")
		return &backend{store: memstore.New(memstore.WithoutCallLog()), close: func(context.Context) error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func natsClientOptions(cfg config.NATSConfig, logger *slog.Logger, metrics *metric.Metrics, monitor *health.Monitor) []natsclient.ClientOption {
	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.Name),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
		natsclient.WithDisconnectCallback(func(err error) {
			metrics.RecordNATSStatus(false)
			msg := "disconnected, reconnecting"
			if err != nil {
				msg = err.Error()
			}
			monitor.Update(natsComponent, health.NewDegraded(natsComponent, msg))
		}),
		natsclient.WithReconnectCallback(func() {
			metrics.RecordNATSReconnect()
			metrics.RecordNATSStatus(true)
			monitor.UpdateHealthy(natsComponent, "reconnected")
		}),
		natsclient.WithClosedCallback(func() {
			metrics.RecordNATSStatus(false)
			monitor.UpdateUnhealthy(natsComponent, "connection closed, reconnect attempts exhausted")
		}),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait.Std()))
	}
	if cfg.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(cfg.PingInterval.Std()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.Timeout.Std()))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(cfg.DrainTimeout.Std()))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}
	if cfg.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile))
	}
	return opts
}

func openNATS(
	ctx context.Context,
	cfg config.StorageConfig,
	logger *slog.Logger,
	metrics *metric.Metrics,
	monitor *health.Monitor,
) (*backend, error) {
	// nats.Connect accepts a comma separated server list.
	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","),
		natsClientOptions(cfg.NATS, logger, metrics, monitor)...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := connectToNATS(ctx, client, logger); err != nil {
		return nil, err
	}
	metrics.RecordNATSStatus(true)
	monitor.UpdateHealthy(natsComponent, "connected")

	store, err := kvstore.New(client, kvstore.Config{
		TTL:          cfg.TTL.Std(),
		Replicas:     cfg.NATS.Replicas,
		Timeout:      cfg.NATS.Timeout.Std(),
		MaxValueSize: cfg.NATS.MaxValueSize,
		BindOnly:     cfg.NATS.BindOnly,
	})
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("create KV store: %w", err)
	}

	return &backend{store: store, close: client.Close}, nil
}

// connectToNATS establishes NATS connection and waits for it to be ready.
// Once connected, reconnection is left to the NATS client.
func connectToNATS(ctx context.Context, client *natsclient.Client, logger *slog.Logger) error {
	logger.Info("Connecting to NATS", "url", client.RedactedURL())
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}
