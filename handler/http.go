package handler

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/metric"
)

// DefaultMaxRequestSize bounds request bodies read by ServeHTTP (1MB).
const DefaultMaxRequestSize int64 = 1024 * 1024

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying id for log correlation.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithMaxRequestSize bounds the body ServeHTTP reads. Larger bodies are
// rejected as invalid payloads.
func WithMaxRequestSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxRequestSize = n
		}
	}
}

func getOrGenerateRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// ServeHTTP adapts Handle to net/http. Errors returned by Handle surface as
// a bare status with no body: 405 for unsupported methods, 500 otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := getOrGenerateRequestID(r)
	w.Header().Set(RequestIDHeader, requestID)
	ctx := ContextWithRequestID(r.Context(), requestID)

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxRequestSize+1))
	if err != nil || int64(len(body)) > h.maxRequestSize {
		h.log(ctx).InfoContext(ctx, "Rejected request body", "size", len(body), "error", err)
		h.record("body", metric.OutcomeInvalid)
		writeResponse(w, InvalidPayload())
		return
	}

	resp, err := h.Handle(ctx, Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Body:   body,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if stderrors.Is(err, errors.ErrUnsupportedMethod) {
			w.Header().Set("Allow", "GET, POST")
			status = http.StatusMethodNotAllowed
		}
		h.log(ctx).DebugContext(ctx, "Request failed", "status", status, "error", err)
		w.WriteHeader(status)
		return
	}

	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (h *Handler) log(ctx context.Context) *slog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}
