package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "KVGATE"

// legacyTableEnv names the table variable deployments used before kvgate.
const legacyTableEnv = "DDB_TABLE_NAME"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: EnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies defaults, every file layer, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		if err := l.decodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Load is a convenience for NewLoader().LoadFile(path) with validation. An
// empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	l := NewLoader()
	l.EnableValidation(true)
	if path == "" {
		return l.Load()
	}
	return l.LoadFile(path)
}

// decodeFile decodes one layer on top of cfg, so fields absent from the file
// keep their current values.
func (l *Loader) decodeFile(path string, cfg *Config) error {
	data, err := safeReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := validateJSONDepth(data); err != nil {
			return fmt.Errorf("invalid JSON structure: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to cfg
func (l *Loader) ApplyEnv(cfg *Config) error {
	get := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return "", false, err
		}
		return val, val != "", nil
	}

	if val := os.Getenv(legacyTableEnv); val != "" {
		if err := validateEnvVar(legacyTableEnv, val); err != nil {
			return err
		}
		cfg.Storage.TableName = val
	}

	overrides := []struct {
		name  string
		apply func(string) error
	}{
		{"TABLE_NAME", func(v string) error { cfg.Storage.TableName = v; return nil }},
		{"BACKEND", func(v string) error { cfg.Storage.Backend = strings.ToLower(v); return nil }},
		{"LISTEN_ADDR", func(v string) error { cfg.Server.ListenAddr = v; return nil }},
		{"METRICS_ADDR", func(v string) error { cfg.Server.MetricsAddr = v; return nil }},
		{"NATS_URLS", func(v string) error { cfg.Storage.NATS.URLs = splitList(v); return nil }},
		{"NATS_USERNAME", func(v string) error { cfg.Storage.NATS.Username = v; return nil }},
		{"NATS_PASSWORD", func(v string) error { cfg.Storage.NATS.Password = v; return nil }},
		{"NATS_TOKEN", func(v string) error { cfg.Storage.NATS.Token = v; return nil }},
		{"SQLITE_PATH", func(v string) error { cfg.Storage.SQLite.Path = v; return nil }},
		{"BOLT_PATH", func(v string) error { cfg.Storage.Bolt.Path = v; return nil }},
		{"TTL", func(v string) error {
			d, err := parseDuration(v)
			if err != nil {
				return err
			}
			cfg.Storage.TTL = Duration(d)
			return nil
		}},
	}

	for _, o := range overrides {
		val, ok, err := get(o.name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := o.apply(val); err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, o.name, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
