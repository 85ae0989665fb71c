package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("KVGATE_CONFIG", ""),
		"Path to a YAML or JSON configuration file, optional (env: KVGATE_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("KVGATE_CONFIG", ""),
		"Path to a YAML or JSON configuration file, optional (env: KVGATE_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("KVGATE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: KVGATE_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("KVGATE_LOG_FORMAT", "json"),
		"Log format: json, text (env: KVGATE_LOG_FORMAT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs, output)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowHelp {
		fs.Usage()
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// The config file is optional; defaults and environment cover a bare start.
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - HTTP gateway for a key-value record table

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with defaults (NATS at localhost:4222, table from DDB_TABLE_NAME)
  DDB_TABLE_NAME=records %s

  # Run with a config file and text logs
  %s --config=/etc/kvgate/config.yaml --log-format=text

  # Run on an embedded SQLite file
  KVGATE_TABLE_NAME=records KVGATE_BACKEND=sqlite KVGATE_SQLITE_PATH=/var/lib/kvgate.db %s

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
