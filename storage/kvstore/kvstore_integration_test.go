package kvstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/natsclient"
	"github.com/c360/kvgate/storage"
)

func newIntegrationStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}

	tc := natsclient.NewTestClient(t)
	s, err := New(tc.Client, cfg)
	require.NoError(t, err)
	return s
}

func TestIntegration_PutGetQuery(t *testing.T) {
	s := newIntegrationStore(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.Get(ctx, "records", "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "records", "abc", storage.Attributes{"client_id": "abc", "payload": `{"x":1}`}))
	rec, err := s.Get(ctx, "records", "abc")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, rec.Attributes["payload"])

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Put(ctx, "jobs", fmt.Sprintf("job-%d", i), storage.Attributes{"project_id": "p-1"}))
	}
	n, err := s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestIntegration_BucketTTL(t *testing.T) {
	s := newIntegrationStore(t, Config{TTL: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, s.Put(ctx, "ephemeral", "abc", storage.Attributes{"client_id": "abc"}))
	_, err := s.Get(ctx, "ephemeral", "abc")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "ephemeral", "abc")
		return errors.IsNotFound(err)
	}, 10*time.Second, 200*time.Millisecond, "backend removes records once the bucket TTL passes")
}
