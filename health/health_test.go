package health

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Status
		state string
	}{
		{"empty", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("kvgate", tt.subs)
			assert.Equal(t, tt.state, got.Status)
			assert.Equal(t, tt.state == StateHealthy, got.Healthy)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}

	got := Aggregate("kvgate", []Status{NewHealthy("storage", ""), NewHealthy("nats", "")})
	assert.Equal(t, "nats", got.SubStatuses[0].Component, "sub-statuses are ordered by name")
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError("storage", nil).IsHealthy())

	st := FromError("nats", stderrors.New("dial nats://user:pw@10.0.0.5:4222 failed, password=hunter2"))
	assert.True(t, st.IsUnhealthy())
	assert.NotContains(t, st.Message, "10.0.0.5")
	assert.NotContains(t, st.Message, "hunter2")
	assert.NotContains(t, st.Message, "nats://")
}

func TestMonitor_Check(t *testing.T) {
	m := NewMonitor()
	calls := 0
	m.Register("storage", func(ctx context.Context) error {
		calls++
		_, ok := ctx.Deadline()
		assert.True(t, ok, "probes run under a deadline")
		return nil
	})
	m.UpdateDegraded("nats", "reconnecting")

	st := m.Check(context.Background(), "kvgate")
	assert.Equal(t, 1, calls)
	assert.True(t, st.IsDegraded())

	m.UpdateHealthy("nats", "connected")
	assert.True(t, m.Check(context.Background(), "kvgate").IsHealthy())

	got, ok := m.Get("storage")
	require.True(t, ok)
	assert.Equal(t, "ok", got.Message)
	assert.False(t, got.Timestamp.IsZero())
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	m := NewMonitor()
	m.probeTimeout = 10 * time.Millisecond
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	st := m.Check(context.Background(), "kvgate")
	assert.True(t, st.IsUnhealthy())
}

func TestHandler(t *testing.T) {
	m := NewMonitor()
	h := Handler(m, "kvgate")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "kvgate", body.Component)
	assert.True(t, body.Healthy)

	m.Register("storage", func(context.Context) error { return stderrors.New("database is closed") })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}
