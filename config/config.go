package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/handler"
)

// Storage backends
const (
	BackendNATS   = "nats"   // NATS JetStream KV (production)
	BackendSQLite = "sqlite" // Embedded SQLite file
	BackendBolt   = "bolt"   // Embedded bbolt file
	BackendMemory = "memory" // In-process, lost on exit
)

const maxRequestSizeLimit = 100 * 1024 * 1024

// Config is the complete process configuration. It is resolved once at start
// and handed to the handlers; nothing reads the environment afterwards.
type Config struct {
	Server   ServerConfig    `yaml:"server" json:"server"`
	Storage  StorageConfig   `yaml:"storage" json:"storage"`
	Variants []VariantConfig `yaml:"variants" json:"variants"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	ListenAddr      string   `yaml:"listen_addr" json:"listen_addr"`
	MaxRequestSize  int64    `yaml:"max_request_size" json:"max_request_size"`
	ReadTimeout     Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// MetricsAddr is the operations listener serving MetricsPath and
	// HealthPath. It must differ from ListenAddr; empty disables it.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`
	HealthPath  string `yaml:"health_path" json:"health_path"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Backend   string `yaml:"backend" json:"backend"`
	TableName string `yaml:"table_name" json:"table_name"`
	// TTL is the backend-side maximum record age (NATS bucket TTL).
	TTL Duration `yaml:"ttl" json:"ttl"`
	// PurgeInterval schedules removal of records whose expiry attribute has
	// passed. Zero disables the purge loop.
	PurgeInterval Duration        `yaml:"purge_interval" json:"purge_interval"`
	NATS          NATSConfig      `yaml:"nats" json:"nats"`
	SQLite        FileStoreConfig `yaml:"sqlite" json:"sqlite"`
	Bolt          FileStoreConfig `yaml:"bolt" json:"bolt"`
}

// NATSConfig defines NATS connection and bucket settings
type NATSConfig struct {
	URLs          []string      `yaml:"urls" json:"urls,omitempty"`
	Name          string        `yaml:"name" json:"name,omitempty"`
	MaxReconnects int           `yaml:"max_reconnects" json:"max_reconnects,omitempty"`
	ReconnectWait Duration      `yaml:"reconnect_wait" json:"reconnect_wait,omitempty"`
	PingInterval  Duration      `yaml:"ping_interval" json:"ping_interval,omitempty"`
	DrainTimeout  Duration      `yaml:"drain_timeout" json:"drain_timeout,omitempty"`
	Timeout       Duration      `yaml:"timeout" json:"timeout,omitempty"`
	Username      string        `yaml:"username" json:"username,omitempty"`
	Password      string        `yaml:"password" json:"password,omitempty"`
	Token         string        `yaml:"token" json:"token,omitempty"`
	TLS           NATSTLSConfig `yaml:"tls" json:"tls,omitempty"`
	Replicas      int           `yaml:"replicas" json:"replicas,omitempty"`
	MaxValueSize  int           `yaml:"max_value_size" json:"max_value_size,omitempty"`
	// BindOnly uses buckets provisioned ahead of time and never creates one.
	BindOnly bool `yaml:"bind_only" json:"bind_only,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file" json:"key_file,omitempty"`
	CAFile   string `yaml:"ca_file" json:"ca_file,omitempty"`
}

// FileStoreConfig locates an embedded database file
type FileStoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// VariantConfig is a handler.Variant that may start from a built-in preset.
// Fields present in the file override the preset.
type VariantConfig struct {
	Preset string `yaml:"-" json:"-"`
	handler.Variant
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (vc *VariantConfig) UnmarshalYAML(node *yaml.Node) error {
	var preset struct {
		Preset string `yaml:"preset"`
	}
	if err := node.Decode(&preset); err != nil {
		return err
	}
	if err := vc.fromPreset(preset.Preset); err != nil {
		return err
	}
	return node.Decode(&vc.Variant)
}

// UnmarshalJSON implements json.Unmarshaler.
func (vc *VariantConfig) UnmarshalJSON(data []byte) error {
	var preset struct {
		Preset string `json:"preset"`
	}
	if err := json.Unmarshal(data, &preset); err != nil {
		return err
	}
	if err := vc.fromPreset(preset.Preset); err != nil {
		return err
	}
	return json.Unmarshal(data, &vc.Variant)
}

func (vc *VariantConfig) fromPreset(name string) error {
	*vc = VariantConfig{Preset: name}
	if name == "" {
		return nil
	}
	v, ok := handler.Preset(name)
	if !ok {
		return fmt.Errorf("unknown variant preset %q (known: %v)", name, handler.PresetNames())
	}
	vc.Variant = v
	return nil
}

// Defaults returns the configuration used before any file or environment
// layer is applied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxRequestSize:  handler.DefaultMaxRequestSize,
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			MetricsAddr:     ":9090",
			MetricsPath:     "/metrics",
			HealthPath:      "/healthz",
		},
		Storage: StorageConfig{
			Backend:       BackendNATS,
			PurgeInterval: Duration(time.Minute),
			NATS: NATSConfig{
				URLs:          []string{"nats://localhost:4222"},
				Name:          "kvgate",
				MaxReconnects: -1,
				ReconnectWait: Duration(2 * time.Second),
				Timeout:       Duration(5 * time.Second),
				Replicas:      1,
			},
			SQLite: FileStoreConfig{Path: "kvgate.db"},
			Bolt:   FileStoreConfig{Path: "kvgate.bolt"},
		},
	}
}

// HandlerVariants returns the configured variants with defaults applied.
// Without any configured variant the client-id preset is served at "/".
// When several variants are configured, each one without a mount path is
// mounted under its name.
func (c *Config) HandlerVariants() []handler.Variant {
	if len(c.Variants) == 0 {
		v, _ := handler.Preset("client-id")
		v.ApplyDefaults()
		return []handler.Variant{v}
	}

	out := make([]handler.Variant, 0, len(c.Variants))
	for _, vc := range c.Variants {
		v := vc.Variant
		if v.Name == "" {
			v.Name = vc.Preset
		}
		if v.MountPath == "" && len(c.Variants) > 1 {
			v.MountPath = "/" + v.Name
		}
		v.ApplyDefaults()
		out = append(out, v)
	}
	return out
}

// Validate checks the configuration. A missing table name is a fatal
// configuration error; every other problem is invalid configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", fmt.Sprintf(format, args...))
	}

	if c.Server.ListenAddr == "" {
		return invalid("server.listen_addr is required")
	}
	if c.Server.MetricsAddr != "" && c.Server.MetricsAddr == c.Server.ListenAddr {
		return invalid("server.metrics_addr must differ from server.listen_addr")
	}
	if c.Server.MaxRequestSize < 0 {
		return invalid("server.max_request_size cannot be negative")
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = handler.DefaultMaxRequestSize
	}
	if c.Server.MaxRequestSize > maxRequestSizeLimit {
		return invalid("server.max_request_size cannot exceed 100MB")
	}

	if c.Storage.TableName == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"storage.table_name is required (set KVGATE_TABLE_NAME)")
	}
	if c.Storage.TTL < 0 || c.Storage.PurgeInterval < 0 ||
		c.Storage.NATS.PingInterval < 0 || c.Storage.NATS.DrainTimeout < 0 {
		return invalid("storage durations cannot be negative")
	}

	switch c.Storage.Backend {
	case BackendNATS:
		if len(c.Storage.NATS.URLs) == 0 {
			return invalid("storage.nats.urls is required for the nats backend")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return invalid("storage.sqlite.path is required for the sqlite backend")
		}
	case BackendBolt:
		if c.Storage.Bolt.Path == "" {
			return invalid("storage.bolt.path is required for the bolt backend")
		}
	case BackendMemory:
	default:
		return invalid("unknown storage backend %q", c.Storage.Backend)
	}

	names := make(map[string]bool)
	mounts := make(map[string]string)
	for _, v := range c.HandlerVariants() {
		if err := v.Validate(); err != nil {
			return err
		}
		if names[v.Name] {
			return invalid("duplicate variant name %q", v.Name)
		}
		names[v.Name] = true
		if other, ok := mounts[v.Mount()]; ok {
			return invalid("variants %q and %q share mount path %q", other, v.Name, v.Mount())
		}
		mounts[v.Mount()] = v.Name
	}

	return nil
}

// String returns an indented JSON rendering with secrets redacted
func (c *Config) String() string {
	redacted := *c
	if redacted.Storage.NATS.Password != "" {
		redacted.Storage.NATS.Password = "***"
	}
	if redacted.Storage.NATS.Token != "" {
		redacted.Storage.NATS.Token = "***"
	}
	redacted.Variants = nil
	view := struct {
		*Config
		Variants []handler.Variant `json:"variants"`
	}{&redacted, c.HandlerVariants()}
	data, _ := json.MarshalIndent(view, "", "  ")
	return string(data)
}
