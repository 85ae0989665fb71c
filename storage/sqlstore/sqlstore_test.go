package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kvgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "records", "abc")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	attrs := storage.Attributes{
		"client_id":             "abc",
		"payload":               `{"hello":"world"}`,
		storage.ExpiryAttribute: int64(1700000600),
	}
	require.NoError(t, s.Put(ctx, "records", "abc", attrs))

	rec, err := s.Get(ctx, "records", "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.Key)

	payload, ok := rec.String("payload")
	require.True(t, ok)
	assert.Equal(t, `{"hello":"world"}`, payload)

	exp, ok := rec.Expiry()
	require.True(t, ok)
	assert.Equal(t, int64(1700000600), exp)
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "k", storage.Attributes{"payload": "a", "extra": "x"}))
	require.NoError(t, s.Put(ctx, "records", "k", storage.Attributes{"payload": "b"}))

	rec, err := s.Get(ctx, "records", "k")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Attributes["payload"])
	_, hasExtra := rec.Attributes["extra"]
	assert.False(t, hasExtra)
}

func TestStore_KeysAreVerbatim(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	key := "client id/with spaces & 'quotes'"
	require.NoError(t, s.Put(ctx, "records", key, storage.Attributes{"client_id": key}))

	rec, err := s.Get(ctx, "records", key)
	require.NoError(t, err)
	assert.Equal(t, key, rec.Attributes["client_id"])
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put(ctx, "jobs", fmt.Sprintf("job-%d", i), storage.Attributes{"project_id": "p-1"}))
	}
	require.NoError(t, s.Put(ctx, "jobs", "job-x", storage.Attributes{"project_id": "p-2"}))
	require.NoError(t, s.Put(ctx, "jobs", "job-n", storage.Attributes{"project_id": 7}))

	n, err := s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "p-1", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "p-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "7"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Query(ctx, "jobs", storage.Query{Field: "project_id", Equals: "none"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.Query(ctx, "jobs", storage.Query{Equals: "p-1"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = s.Query(ctx, "jobs", storage.Query{Field: `project"id`, Equals: "p-1"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "a quote cannot be expressed in a JSON path label")
}

func TestStore_QueryDottedField(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "jobs", "job-1", storage.Attributes{"project.id": "p-1"}))
	n, err := s.Query(ctx, "jobs", storage.Query{Field: "project.id", Equals: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "old", storage.Attributes{storage.ExpiryAttribute: int64(100)}))
	require.NoError(t, s.Put(ctx, "records", "new", storage.Attributes{storage.ExpiryAttribute: int64(10_000)}))
	require.NoError(t, s.Put(ctx, "records", "forever", storage.Attributes{"payload": "{}"}))

	n, err := s.Purge(ctx, "records", time.Unix(500, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "records", "old")
	assert.True(t, errors.IsNotFound(err))
	_, err = s.Get(ctx, "records", "new")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "records", "forever")
	assert.NoError(t, err)
}

func TestStore_InvalidTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Put(ctx, "records; DROP TABLE x", "k", storage.Attributes{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	err = s.Put(ctx, "", "k", storage.Attributes{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestStore_EmptyKey(t *testing.T) {
	s := openTestStore(t)
	err := s.Put(context.Background(), "records", "", storage.Attributes{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "records", "k", storage.Attributes{"payload": "{}"}))
	_, err = s.Get(ctx, "records", "k")
	assert.NoError(t, err)
}

func TestStore_Ping(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}
