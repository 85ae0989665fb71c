package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/metric"
	"github.com/c360/kvgate/storage"
)

// Request is one inbound request as delivered by the network entry point.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Handler turns one Request into exactly one storage call and one Response.
// It holds no mutable state and is safe for concurrent use.
type Handler struct {
	variant Variant
	store   storage.Store
	table   string
	expiry  ExpiryPolicy
	schema  *gojsonschema.Schema
	logger  *slog.Logger
	metrics *metric.Metrics

	maxRequestSize int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records request outcomes and storage latency.
func WithMetrics(m *metric.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock overrides the time source of the expiry policy.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.expiry.Now = now
	}
}

// New creates a Handler for variant backed by store. A per-variant table
// overrides table. A missing table is a fatal configuration error.
func New(variant Variant, store storage.Store, table string, opts ...Option) (*Handler, error) {
	variant.ApplyDefaults()
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Handler", "New", "storage backend is required")
	}
	if variant.Table != "" {
		table = variant.Table
	}
	if err := storage.ValidateTable(table); err != nil {
		return nil, err
	}
	if variant.BackendLabel == "" {
		variant.BackendLabel = "DDB"
	}

	h := &Handler{
		variant: variant,
		store:   store,
		table:   table,
		expiry:  ExpiryPolicy{Window: variant.ExpiryWindow()},
		logger:  slog.Default(),

		maxRequestSize: DefaultMaxRequestSize,
	}

	if variant.Payload == PayloadShape {
		schema := variant.Schema
		if schema == "" {
			schema = ShapeSchema(variant.ShapeField)
		}
		compiled, err := CompileSchema(schema)
		if err != nil {
			return nil, err
		}
		h.schema = compiled
	}

	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("variant", variant.Name, "table", table)
	return h, nil
}

// Variant returns the resolved variant configuration.
func (h *Handler) Variant() Variant {
	return h.variant
}

// Table returns the table the handler reads and writes.
func (h *Handler) Table() string {
	return h.table
}

// Handle routes req and performs its storage operation. A returned error
// means no response may be produced: unsupported methods and write backend
// failures.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	op, key, err := Route(h.variant, req.Method, req.Path)
	if err != nil {
		h.log(ctx).ErrorContext(ctx, "Unsupported method", "method", req.Method, "path", req.Path)
		h.record("unknown", metric.OutcomeUnsupported)
		return Response{}, err
	}

	switch op {
	case OpWrite:
		return h.write(ctx, key, req.Body)
	case OpCount:
		return h.count(ctx, key), nil
	default:
		return h.read(ctx, key), nil
	}
}

func (h *Handler) write(ctx context.Context, key string, body []byte) (Response, error) {
	attrs := storage.Attributes{}

	switch h.variant.Payload {
	case PayloadRaw:
		attrs[PayloadAttribute] = RawPayload(body)
	case PayloadShape:
		fields, err := DecodeShape(body, h.schema)
		if err != nil {
			h.log(ctx).InfoContext(ctx, "Rejected write", "key", key, "error", err)
			h.record(OpWrite, metric.OutcomeInvalid)
			return InvalidPayload(), nil
		}
		value, _ := fields[h.variant.ShapeField].(string)
		attrs[h.variant.ShapeField] = value
		// The body names the record only when the shape field is its identifier.
		if key == "" && h.variant.ShapeField == h.variant.IDField {
			key = value
		}
	}

	if key == "" {
		h.log(ctx).InfoContext(ctx, "Rejected write without key")
		h.record(OpWrite, metric.OutcomeInvalid)
		return InvalidPayload(), nil
	}

	if _, ok := attrs[h.variant.IDField]; !ok {
		attrs[h.variant.IDField] = key
	}
	if h.expiry.Enabled() {
		attrs[storage.ExpiryAttribute] = h.expiry.Expiry()
	}

	h.log(ctx).InfoContext(ctx, "Posting record", h.variant.IDField, key)
	start := time.Now()
	err := h.store.Put(ctx, h.table, key, attrs)
	h.observe("put", start)
	if err != nil {
		h.log(ctx).ErrorContext(ctx, "Write failed", h.variant.IDField, key, "error", err)
		h.record(OpWrite, metric.OutcomeBackendErr)
		return Response{}, errors.Wrap(err, "Handler", "write", "store record")
	}

	h.record(OpWrite, metric.OutcomeOK)
	return Posted(h.variant.BackendLabel), nil
}

func (h *Handler) read(ctx context.Context, key string) Response {
	if key == "" {
		h.record(OpRead, metric.OutcomeNotFound)
		return Missing(h.variant.IDField)
	}

	h.log(ctx).InfoContext(ctx, "Getting record", h.variant.IDField, key)
	start := time.Now()
	rec, err := h.store.Get(ctx, h.table, key)
	h.observe("get", start)
	if err != nil {
		// Both collapse to 404; only logs and metrics tell them apart.
		if errors.IsNotFound(err) {
			h.log(ctx).InfoContext(ctx, "Record not found", h.variant.IDField, key)
			h.record(OpRead, metric.OutcomeNotFound)
		} else {
			h.log(ctx).WarnContext(ctx, "Read failed", h.variant.IDField, key,
				"class", errors.Classify(err).String(), "error", err)
			h.record(OpRead, metric.OutcomeBackendErr)
		}
		return Missing(h.variant.IDField)
	}

	if !h.variant.RequirePayload {
		h.record(OpRead, metric.OutcomeOK)
		return Exists(h.variant.IDField, nil)
	}

	raw, ok := rec.Attributes[PayloadAttribute]
	if !ok {
		h.log(ctx).WarnContext(ctx, "Record has no payload", h.variant.IDField, key)
		h.record(OpRead, metric.OutcomeMissingPayload)
		return Missing(h.variant.IDField)
	}

	payload, ok := raw.(string)
	if !ok || !json.Valid([]byte(payload)) {
		payload = EmptyPayload
	}
	h.record(OpRead, metric.OutcomeOK)
	return Exists(h.variant.IDField, json.RawMessage(payload))
}

func (h *Handler) count(ctx context.Context, key string) Response {
	q := storage.Query{Field: h.variant.CountField, Equals: key, Limit: h.variant.CountLimit}

	h.log(ctx).InfoContext(ctx, "Counting records", h.variant.CountField, key)
	start := time.Now()
	n, err := h.store.Query(ctx, h.table, q)
	h.observe("query", start)
	if err != nil {
		h.log(ctx).WarnContext(ctx, "Count failed", h.variant.CountField, key,
			"class", errors.Classify(err).String(), "error", err)
		h.record(OpCount, metric.OutcomeBackendErr)
		return Missing(h.variant.CountField)
	}

	h.record(OpCount, metric.OutcomeOK)
	return Stats(n)
}

func (h *Handler) record(op Operation, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordRequest(h.variant.Name, string(op), outcome)
	}
}

func (h *Handler) observe(operation string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordStorageDuration(operation, time.Since(start))
	}
}
