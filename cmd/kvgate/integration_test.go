package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/config"
	"github.com/c360/kvgate/natsclient"
	"github.com/c360/kvgate/storage/kvstore"
)

func TestIntegration_GatewayOnNATS(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}

	tc := natsclient.NewTestClient(t)
	store, err := kvstore.New(tc.Client, kvstore.Config{})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Storage.TableName = "records"
	mux, tables := newTestMux(t, cfg, store)

	rec := do(t, mux, http.MethodPost, "/client_id/abc", `{"hello":"world"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"client_id": "exists", "payload": {"hello":"world"}}`, rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/never-written", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Records written now expire 600s later, so a purge far in the future removes them.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := store.Purge(ctx, tables[0], time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = do(t, mux, http.MethodGet, "/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
