package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/kvgate/errors"
)

// PayloadMode selects how a write request body is interpreted.
type PayloadMode string

// Payload modes.
const (
	// PayloadNone stores existence-only records and ignores the body.
	PayloadNone PayloadMode = "none"
	// PayloadShape validates the body against a single-field JSON shape.
	PayloadShape PayloadMode = "shape"
	// PayloadRaw stores the body text unmodified, degrading to "{}".
	PayloadRaw PayloadMode = "raw"
)

// EmptyPayload is stored in place of a raw body that is not valid JSON text.
const EmptyPayload = "{}"

// ShapeSchema returns the JSON Schema for an object carrying one required
// string field.
func ShapeSchema(field string) string {
	name, _ := json.Marshal(field)
	return fmt.Sprintf(`{"type":"object","required":[%s],"properties":{%s:{"type":"string"}}}`, name, name)
}

// CompileSchema parses a JSON Schema document.
func CompileSchema(schema string) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Codec", "CompileSchema", err.Error())
	}
	return compiled, nil
}

// DecodeShape parses body as UTF-8 JSON and validates it against schema.
// Every failure is an invalid error wrapping errors.ErrInvalidData; a body
// that is not a JSON object also wraps errors.ErrParsingFailed.
func DecodeShape(body []byte, schema *gojsonschema.Schema) (map[string]any, error) {
	if !utf8.Valid(body) {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "DecodeShape", "body is not UTF-8 text")
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidData, errors.ErrParsingFailed),
			"Codec", "DecodeShape", fmt.Sprintf("body is not a JSON object: %v", err))
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "DecodeShape", err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "DecodeShape", strings.Join(msgs, "; "))
	}

	return fields, nil
}

// RawPayload returns body as text when it is UTF-8 encoded JSON, and
// EmptyPayload otherwise.
func RawPayload(body []byte) string {
	if len(body) == 0 || !utf8.Valid(body) || !json.Valid(body) {
		return EmptyPayload
	}
	return string(body)
}
