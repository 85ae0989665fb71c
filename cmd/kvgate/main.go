// Package main is the kvgate server: an HTTP gateway that writes, reads and
// counts records in a key-value table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/kvgate/config"
	"github.com/c360/kvgate/health"
	"github.com/c360/kvgate/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "kvgate"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Debug("Configuration loaded", "config", cfg.String())

	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	be, err := openBackend(ctx, cfg.Storage, logger, registry.CoreMetrics(), monitor)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(context.Background()); err != nil {
			logger.Warn("Closing storage failed", "error", err)
		}
	}()

	mux, tables, err := routes(cfg, be.store, registry, logger)
	if err != nil {
		return err
	}

	logger.Info("kvgate started",
		"backend", cfg.Storage.Backend,
		"tables", tables,
		"listen_addr", cfg.Server.ListenAddr)

	ops := opsServer(cfg, registry, monitor)
	if err := serve(ctx, cfg, mux, ops, be.store, tables, registry.CoreMetrics(), logger); err != nil {
		return err
	}

	logger.Info("kvgate shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	// Usage was already printed by parseFlags.
	if cliCfg.ShowHelp {
		return nil, nil, true, nil
	}

	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Starting kvgate",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}
