package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
)

func TestRecord_Expiry(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int64
		wantOK bool
	}{
		{"int64", int64(1700000600), 1700000600, true},
		{"int", 42, 42, true},
		{"float64", float64(1700000600), 1700000600, true},
		{"json number", json.Number("1700000600"), 1700000600, true},
		{"numeric string", "1700000600", 1700000600, true},
		{"non numeric string", "soon", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Key: "k", Attributes: Attributes{ExpiryAttribute: tt.value}}
			got, ok := r.Expiry()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Record{Key: "k"}.Expiry()
	assert.False(t, ok)
}

func TestRecord_Expired(t *testing.T) {
	now := time.Unix(1000, 0)

	assert.True(t, Record{Attributes: Attributes{ExpiryAttribute: int64(999)}}.Expired(now))
	assert.True(t, Record{Attributes: Attributes{ExpiryAttribute: int64(1000)}}.Expired(now))
	assert.False(t, Record{Attributes: Attributes{ExpiryAttribute: int64(1001)}}.Expired(now))
	assert.False(t, Record{Attributes: Attributes{}}.Expired(now))
}

func TestRecord_String(t *testing.T) {
	r := Record{Attributes: Attributes{"payload": `{"a":1}`, "n": 3}}

	s, ok := r.String("payload")
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, s)

	_, ok = r.String("n")
	assert.False(t, ok)

	_, ok = r.String("missing")
	assert.False(t, ok)
}

func TestQuery_Matches(t *testing.T) {
	q := Query{Field: "project_id", Equals: "p-1"}

	assert.True(t, q.Matches(Attributes{"project_id": "p-1"}))
	assert.False(t, q.Matches(Attributes{"project_id": "p-2"}))
	assert.False(t, q.Matches(Attributes{"other": "p-1"}))
	assert.True(t, Query{Field: "n", Equals: "5"}.Matches(Attributes{"n": json.Number("5")}))
}

func TestQuery_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultQueryLimit, Query{}.EffectiveLimit())
	assert.Equal(t, DefaultQueryLimit, Query{Limit: -3}.EffectiveLimit())
	assert.Equal(t, 10, Query{Limit: 10}.EffectiveLimit())
}

func TestAttributesCodec(t *testing.T) {
	attrs := Attributes{"client_id": "abc", "payload": `{"x":true}`, ExpiryAttribute: int64(1700000600)}

	data, err := EncodeAttributes(attrs)
	require.NoError(t, err)

	decoded, err := DecodeAttributes(data)
	require.NoError(t, err)
	assert.Equal(t, "abc", decoded["client_id"])
	assert.Equal(t, `{"x":true}`, decoded["payload"])

	exp, ok := Record{Attributes: decoded}.Expiry()
	require.True(t, ok)
	assert.Equal(t, int64(1700000600), exp)

	empty, err := EncodeAttributes(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))

	_, err = DecodeAttributes([]byte("not json"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateKey("abc"))
	err := ValidateKey("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.NoError(t, ValidateTable("records"))
	err = ValidateTable("")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestNotFound(t *testing.T) {
	err := NotFound("SQLStore", "abc")
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), `"abc"`)
}

func TestAttributes_Clone(t *testing.T) {
	assert.Nil(t, Attributes(nil).Clone())

	orig := Attributes{"a": "1"}
	c := orig.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", orig["a"])
}
