package memstore

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/storage"
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "records", "abc")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "records", "abc", storage.Attributes{"payload": "{}", "extra": "x"}))
	require.NoError(t, s.Put(ctx, "records", "abc", storage.Attributes{"payload": `{"v":2}`}))

	rec, err := s.Get(ctx, "records", "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.Key)
	assert.Equal(t, storage.Attributes{"payload": `{"v":2}`}, rec.Attributes, "put must replace, not merge")

	_, err = s.Get(ctx, "other", "abc")
	assert.True(t, errors.IsNotFound(err), "tables are isolated")
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	attrs := storage.Attributes{"payload": "a"}
	require.NoError(t, s.Put(ctx, "t", "k", attrs))
	attrs["payload"] = "mutated"

	rec, err := s.Get(ctx, "t", "k")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Attributes["payload"])
}

func TestStore_FailKey(t *testing.T) {
	ctx := context.Background()
	s := New(WithFailKey("client_id-not-existing", nil))

	_, err := s.Get(ctx, "t", "client_id-not-existing")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, errors.IsNotFound(err))

	err = s.Put(ctx, "t", "client_id-not-existing", storage.Attributes{})
	require.Error(t, err)

	require.NoError(t, s.Put(ctx, "t", "other", storage.Attributes{}))
}

func TestStore_FailAll(t *testing.T) {
	ctx := context.Background()
	boom := stderrors.New("boom")
	s := New(WithFailAll(boom))

	assert.ErrorIs(t, s.Put(ctx, "t", "k", nil), boom)
	_, err := s.Get(ctx, "t", "k")
	assert.ErrorIs(t, err, boom)
	_, err = s.Query(ctx, "t", storage.Query{Field: "f", Equals: "v"})
	assert.ErrorIs(t, err, boom)
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, s.Put(ctx, "t", key, storage.Attributes{"project_id": "p-1"}))
	}
	require.NoError(t, s.Put(ctx, "t", "z", storage.Attributes{"project_id": "p-2"}))

	n, err := s.Query(ctx, "t", storage.Query{Field: "project_id", Equals: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultQueryLimit, n, "count is capped by the limit")

	n, err = s.Query(ctx, "t", storage.Query{Field: "project_id", Equals: "p-1", Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = s.Query(ctx, "t", storage.Query{Field: "project_id", Equals: "p-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_CountResult(t *testing.T) {
	s := New(WithCountResult(5))
	n, err := s.Query(context.Background(), "t", storage.Query{Field: "project_id", Equals: "any"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "t", "old", storage.Attributes{storage.ExpiryAttribute: int64(100)}))
	require.NoError(t, s.Put(ctx, "t", "new", storage.Attributes{storage.ExpiryAttribute: int64(10_000)}))
	require.NoError(t, s.Put(ctx, "t", "forever", storage.Attributes{}))

	n, err := s.Purge(ctx, "t", time.Unix(500, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"forever", "new"}, s.Keys("t"))
}

func TestStore_Calls(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.Put(ctx, "t", "k", nil)
	_, _ = s.Get(ctx, "t", "k")
	_, _ = s.Query(ctx, "t", storage.Query{Field: "f", Equals: "v"})

	assert.Equal(t, []Call{
		{Op: "put", Table: "t", Key: "k"},
		{Op: "get", Table: "t", Key: "k"},
		{Op: "query", Table: "t", Key: "v"},
	}, s.Calls())

	s.ResetCalls()
	assert.Empty(t, s.Calls())
}

func TestStore_Fallback(t *testing.T) {
	ctx := context.Background()
	s := New(WithFallback(storage.Attributes{}), WithFailKey("client_id-not-existing", nil))

	rec, err := s.Get(ctx, "records", "anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", rec.Key)
	assert.Empty(t, rec.Attributes)

	_, err = s.Get(ctx, "records", "client_id-not-existing")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestStore_WithoutCallLog(t *testing.T) {
	s := New(WithoutCallLog())
	require.NoError(t, s.Put(context.Background(), "records", "k", storage.Attributes{"payload": "{}"}))
	_, err := s.Get(context.Background(), "records", "k")
	require.NoError(t, err)
	assert.Empty(t, s.Calls())
	assert.Equal(t, []string{"k"}, s.Keys("records"))
}
