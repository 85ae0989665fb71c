package handler

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/metric"
	"github.com/c360/kvgate/storage"
	"github.com/c360/kvgate/storage/memstore"
)

const testTable = "records"

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestHandler(t *testing.T, preset string, store storage.Store, opts ...Option) *Handler {
	t.Helper()
	v, ok := Preset(preset)
	require.True(t, ok, preset)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	h, err := New(v, store, testTable, opts...)
	require.NoError(t, err)
	return h
}

func handle(t *testing.T, h *Handler, method, path, body string) Response {
	t.Helper()
	resp, err := h.Handle(context.Background(), Request{Method: method, Path: path, Body: []byte(body)})
	require.NoError(t, err)
	return resp
}

func TestHandler_Scenarios(t *testing.T) {
	t.Run("topic write succeeds", func(t *testing.T) {
		store := memstore.New()
		h := newTestHandler(t, "topic", store)

		resp := handle(t, h, "POST", "/", `{"topic": "foo"}`)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, `{"result": "posted result on DDB"}`, resp.String())
		assert.Len(t, store.Calls(), 1)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		store := memstore.New()
		h := newTestHandler(t, "topic", store)

		resp := handle(t, h, "POST", "/", `{"invalid": "input"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "Invalid payload", resp.String())
		assert.Empty(t, store.Calls(), "validation rejects before any storage call")
	})

	store := memstore.New(
		memstore.WithFallback(storage.Attributes{}),
		memstore.WithFailKey("client_id-not-existing", nil),
	)
	h := newTestHandler(t, "client-exists", store)

	t.Run("failing key reads as missing", func(t *testing.T) {
		resp := handle(t, h, "GET", "/client_id-not-existing", "")
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.Equal(t, `{"client_id": "doesn't exist"}`, resp.String())
	})

	t.Run("other key exists", func(t *testing.T) {
		resp := handle(t, h, "GET", "/client_id-existing", "")
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, `{"client_id": "exists"}`, resp.String())
	})

	t.Run("count query", func(t *testing.T) {
		h := newTestHandler(t, "project-stats", memstore.New(memstore.WithCountResult(5)))

		resp := handle(t, h, "GET", "/project-1", "")
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, `{"stats": "5"}`, resp.String())
	})
}

func TestHandler_ClientIDRoundTrip(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "client-id", store)

	resp := handle(t, h, "POST", "/client_id/abc", `{"device": "x1"}`)
	require.Equal(t, http.StatusOK, resp.Status)

	rec, err := store.Get(context.Background(), testTable, "abc")
	require.NoError(t, err)
	assert.Equal(t, storage.Attributes{
		"client_id":             "abc",
		"payload":               `{"device": "x1"}`,
		storage.ExpiryAttribute: fixedNow.Unix() + 600,
	}, rec.Attributes)

	resp = handle(t, h, "GET", "/abc", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"client_id": "exists", "payload": {"device": "x1"}}`, resp.String())
}

func TestHandler_RawPayloadDegrades(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "client-id", store)

	resp := handle(t, h, "POST", "/client_id/abc", "not json at all")
	require.Equal(t, http.StatusOK, resp.Status)

	resp = handle(t, h, "GET", "/abc", "")
	assert.Equal(t, `{"client_id": "exists", "payload": {}}`, resp.String())
}

func TestHandler_RequirePayload(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Put(ctx, testTable, "bare", storage.Attributes{"client_id": "bare"}))
	require.NoError(t, store.Put(ctx, testTable, "odd", storage.Attributes{"payload": 12}))

	h := newTestHandler(t, "client-id", store)

	resp := handle(t, h, "GET", "/bare", "")
	assert.Equal(t, http.StatusNotFound, resp.Status, "missing payload is a read failure")
	assert.Equal(t, `{"client_id": "doesn't exist"}`, resp.String())

	resp = handle(t, h, "GET", "/odd", "")
	assert.Equal(t, `{"client_id": "exists", "payload": {}}`, resp.String(), "non-text payload reads as {}")

	exists := newTestHandler(t, "client-exists", store)
	resp = handle(t, exists, "GET", "/bare", "")
	assert.Equal(t, http.StatusOK, resp.Status, "existence-only ignores payload")
}

func TestHandler_ExistenceOnlyWrite(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "client-exists", store)

	resp := handle(t, h, "POST", "/client_id/c-1", `ignored body`)
	require.Equal(t, http.StatusOK, resp.Status)

	rec, err := store.Get(context.Background(), testTable, "c-1")
	require.NoError(t, err)
	assert.Equal(t, storage.Attributes{"client_id": "c-1", storage.ExpiryAttribute: fixedNow.Unix() + 600}, rec.Attributes)
}

func TestHandler_TopicKey(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "topic", store)

	handle(t, h, "POST", "/", `{"topic": "foo"}`)
	handle(t, h, "POST", "/named", `{"topic": "bar"}`)

	assert.Equal(t, []string{"foo", "named"}, store.Keys(testTable))

	rec, err := store.Get(context.Background(), testTable, "named")
	require.NoError(t, err)
	assert.Equal(t, storage.Attributes{"topic": "bar"}, rec.Attributes, "topic variant stores no expiry")

	resp := handle(t, h, "GET", "/foo", "")
	assert.Equal(t, `{"topic": "exists"}`, resp.String())
}

func TestHandler_ProjectStats(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "project-stats", store)

	for _, job := range []string{"j1", "j2", "j3", "j4", "j5", "j6"} {
		resp := handle(t, h, "POST", "/"+job, `{"project_id": "p-1"}`)
		require.Equal(t, http.StatusOK, resp.Status)
	}
	handle(t, h, "POST", "/j7", `{"project_id": "p-2"}`)

	resp := handle(t, h, "POST", "/", `{"project_id": "p-2"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Status, "a job write needs its job id in the path")
	assert.NotContains(t, store.Keys(testTable), "p-2", "the project id never becomes a job key")

	assert.Equal(t, `{"stats": "5"}`, handle(t, h, "GET", "/p-1", "").String(), "count is capped by the limit")
	assert.Equal(t, `{"stats": "1"}`, handle(t, h, "GET", "/p-2", "").String())
	assert.Equal(t, `{"stats": "0"}`, handle(t, h, "GET", "/p-3", "").String())

	failing := newTestHandler(t, "project-stats", memstore.New(memstore.WithFailAll(errors.ErrConnectionLost)))
	resp = handle(t, failing, "GET", "/p-1", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, `{"project_id": "doesn't exist"}`, resp.String())
}

func TestHandler_WriteBackendFailure(t *testing.T) {
	backendErr := errors.WrapTransient(stderrors.New("throttled"), "test", "Put", "write")
	store := memstore.New(memstore.WithFailAll(backendErr))
	h := newTestHandler(t, "client-id", store)

	resp, err := h.Handle(context.Background(), Request{Method: "POST", Path: "/client_id/abc", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Equal(t, Response{}, resp, "no response is produced")
	assert.True(t, errors.IsTransient(err))
	assert.Len(t, store.Calls(), 1)
}

func TestHandler_ReadBackendFailureCollapses(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	registry := metric.NewMetricsRegistry()
	m := registry.CoreMetrics()

	store := memstore.New(memstore.WithFailKey("flaky", nil))
	h := newTestHandler(t, "client-id", store, WithLogger(logger), WithMetrics(m))

	flaky := handle(t, h, "GET", "/flaky", "")
	absent := handle(t, h, "GET", "/absent", "")
	assert.Equal(t, absent, flaky, "backend failure and absence look the same to the client")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("client-id", "read", metric.OutcomeBackendErr)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("client-id", "read", metric.OutcomeNotFound)))
	assert.Contains(t, logs.String(), `"msg":"Read failed"`)
	assert.Contains(t, logs.String(), `"msg":"Record not found"`)
}

func TestHandler_UnsupportedMethod(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "client-id", store)

	resp, err := h.Handle(context.Background(), Request{Method: "DELETE", Path: "/abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedMethod)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, Response{}, resp)
	assert.Empty(t, store.Calls())
}

func TestHandler_EmptyKey(t *testing.T) {
	store := memstore.New()
	h := newTestHandler(t, "client-id", store)

	assert.Equal(t, http.StatusNotFound, handle(t, h, "GET", "/", "").Status)
	assert.Equal(t, http.StatusBadRequest, handle(t, h, "POST", "/client_id/", `{}`).Status)
	assert.Empty(t, store.Calls())
}

func TestNew_Configuration(t *testing.T) {
	v, _ := Preset("client-id")

	_, err := New(v, memstore.New(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	assert.True(t, errors.IsFatal(err))

	_, err = New(v, nil, testTable)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	v.Table = "override"
	h, err := New(v, memstore.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "override", h.Table())
	assert.Equal(t, "DDB", h.Variant().BackendLabel)

	bad := Variant{Name: "bad", IDField: "id", Payload: "xml"}
	_, err = New(bad, memstore.New(), testTable)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	quoted, _ := Preset("project-stats")
	quoted.CountField = `project"id`
	_, err = New(quoted, memstore.New(), testTable)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig, "count fields must be addressable by every backend")
}

func TestNew_BackendLabel(t *testing.T) {
	v, _ := Preset("topic")
	v.BackendLabel = "NATS"
	h, err := New(v, memstore.New(), testTable)
	require.NoError(t, err)

	resp := handle(t, h, "POST", "/", `{"topic": "t"}`)
	assert.Equal(t, `{"result": "posted result on NATS"}`, resp.String())
}
