package handler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360/kvgate/errors"
)

// ReadOperation selects what a GET does for a variant.
type ReadOperation string

// Read operations.
const (
	ReadGet   ReadOperation = "get"
	ReadCount ReadOperation = "count"
)

// PayloadAttribute holds the stored body of raw payload variants.
const PayloadAttribute = "payload"

// DefaultShapeField is the field a shape payload carries unless configured.
const DefaultShapeField = "topic"

// Variant describes one handler of the family. Every behavioral difference
// between handlers is expressed here rather than in code.
type Variant struct {
	// Name identifies the variant in logs and metrics.
	Name string `yaml:"name" json:"name"`
	// MountPath is the HTTP path prefix the variant is served under. The
	// mount path is stripped before routing. Empty means "/".
	MountPath string `yaml:"mount_path" json:"mount_path"`
	// IDField names the key attribute and the field used in read responses.
	IDField string `yaml:"id_field" json:"id_field"`
	// WritePrefix and ReadPrefix are stripped from the path to obtain the key.
	WritePrefix string `yaml:"write_prefix" json:"write_prefix"`
	ReadPrefix  string `yaml:"read_prefix" json:"read_prefix"`

	Payload PayloadMode `yaml:"payload" json:"payload"`
	// ShapeField is the required string field of a shape payload.
	ShapeField string `yaml:"shape_field,omitempty" json:"shape_field,omitempty"`
	// Schema overrides the JSON Schema derived from ShapeField.
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	// RequirePayload makes a stored record without a payload attribute a
	// read failure.
	RequirePayload bool `yaml:"require_payload" json:"require_payload"`

	// ExpirySeconds is the TTL window written into the expiry attribute.
	// Zero omits the attribute.
	ExpirySeconds int `yaml:"expiry_seconds" json:"expiry_seconds"`

	ReadOperation ReadOperation `yaml:"read_operation" json:"read_operation"`
	// CountField and CountLimit parameterize count reads.
	CountField string `yaml:"count_field,omitempty" json:"count_field,omitempty"`
	CountLimit int    `yaml:"count_limit,omitempty" json:"count_limit,omitempty"`

	// BackendLabel completes the write response "posted result on <label>".
	BackendLabel string `yaml:"backend_label,omitempty" json:"backend_label,omitempty"`
	// Table overrides the process-wide table for this variant.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
}

// ExpiryWindow returns ExpirySeconds as a duration.
func (v Variant) ExpiryWindow() time.Duration {
	return time.Duration(v.ExpirySeconds) * time.Second
}

// Mount returns the normalized mount path, always starting with "/" and
// never ending with one unless it is the root.
func (v Variant) Mount() string {
	return "/" + strings.Trim(v.MountPath, "/")
}

// ApplyDefaults fills unset optional fields.
func (v *Variant) ApplyDefaults() {
	if v.Payload == "" {
		v.Payload = PayloadNone
	}
	if v.ReadOperation == "" {
		v.ReadOperation = ReadGet
	}
	if v.ReadPrefix == "" {
		v.ReadPrefix = "/"
	}
	if v.WritePrefix == "" {
		v.WritePrefix = "/"
	}
	if v.Payload == PayloadShape && v.ShapeField == "" {
		v.ShapeField = DefaultShapeField
	}
	if v.ReadOperation == ReadCount && v.CountField == "" {
		v.CountField = v.IDField
	}
}

// Validate reports configuration mistakes as invalid errors wrapping
// errors.ErrInvalidConfig.
func (v Variant) Validate() error {
	invalid := func(msg string, args ...any) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Variant", "Validate",
			fmt.Sprintf("variant %q: %s", v.Name, fmt.Sprintf(msg, args...)))
	}

	if v.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Variant", "Validate", "variant name is required")
	}
	if v.IDField == "" {
		return invalid("id_field is required")
	}
	switch v.Payload {
	case PayloadNone, PayloadRaw:
	case PayloadShape:
		if v.ShapeField == "" {
			return invalid("shape_field is required for shape payloads")
		}
		schema := v.Schema
		if schema == "" {
			schema = ShapeSchema(v.ShapeField)
		}
		if _, err := CompileSchema(schema); err != nil {
			return invalid("schema: %v", err)
		}
	default:
		return invalid("unknown payload mode %q", v.Payload)
	}
	if v.RequirePayload && v.Payload != PayloadRaw {
		return invalid("require_payload needs a raw payload")
	}
	if v.ExpirySeconds < 0 {
		return invalid("expiry_seconds cannot be negative")
	}
	switch v.ReadOperation {
	case ReadGet:
	case ReadCount:
		if v.CountField == "" {
			return invalid("count_field is required for count reads")
		}
		if v.CountLimit < 0 {
			return invalid("count_limit cannot be negative")
		}
		if strings.Contains(v.CountField, `"`) {
			return invalid("count_field cannot contain a double quote")
		}
	default:
		return invalid("unknown read operation %q", v.ReadOperation)
	}
	return nil
}

// Presets are the built-in variants of the handler family.
var Presets = map[string]Variant{
	"client-id": {
		Name:           "client-id",
		IDField:        "client_id",
		WritePrefix:    "/client_id/",
		ReadPrefix:     "/",
		Payload:        PayloadRaw,
		RequirePayload: true,
		ExpirySeconds:  int(DefaultExpiryWindow / time.Second),
		ReadOperation:  ReadGet,
	},
	"client-exists": {
		Name:          "client-exists",
		IDField:       "client_id",
		WritePrefix:   "/client_id/",
		ReadPrefix:    "/",
		Payload:       PayloadNone,
		ExpirySeconds: int(DefaultExpiryWindow / time.Second),
		ReadOperation: ReadGet,
	},
	"topic": {
		Name:          "topic",
		IDField:       "topic",
		WritePrefix:   "/",
		ReadPrefix:    "/",
		Payload:       PayloadShape,
		ShapeField:    DefaultShapeField,
		ReadOperation: ReadGet,
	},
	"project-stats": {
		Name:          "project-stats",
		IDField:       "job_id",
		WritePrefix:   "/",
		ReadPrefix:    "/",
		Payload:       PayloadShape,
		ShapeField:    "project_id",
		ReadOperation: ReadCount,
		CountField:    "project_id",
		CountLimit:    5,
	},
}

// Preset returns a copy of the named built-in variant.
func Preset(name string) (Variant, bool) {
	v, ok := Presets[name]
	return v, ok
}

// PresetNames returns the built-in variant names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
