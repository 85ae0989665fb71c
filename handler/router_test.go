package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/kvgate/errors"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("GET")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, m)

	m, err = ParseMethod("post")
	require.NoError(t, err)
	assert.Equal(t, MethodPost, m)
	assert.Equal(t, "POST", m.String())

	for _, method := range []string{"PUT", "DELETE", "PATCH", ""} {
		_, err := ParseMethod(method)
		require.Error(t, err, method)
		assert.ErrorIs(t, err, errors.ErrUnsupportedMethod)
		assert.True(t, errors.IsFatal(err))
	}
}

func TestRoute(t *testing.T) {
	clientID, _ := Preset("client-id")
	stats, _ := Preset("project-stats")

	tests := []struct {
		name    string
		variant Variant
		method  string
		path    string
		op      Operation
		key     string
	}{
		{"post strips write prefix", clientID, "POST", "/client_id/abc-123", OpWrite, "abc-123"},
		{"get strips read prefix", clientID, "GET", "/abc-123", OpRead, "abc-123"},
		{"unescapes remainder", clientID, "GET", "/a%20b%2Fc", OpRead, "a b/c"},
		{"keeps nested path verbatim", clientID, "GET", "/client_id/abc", OpRead, "client_id/abc"},
		{"missing write prefix uses whole path", clientID, "POST", "/abc", OpWrite, "abc"},
		{"empty path", clientID, "GET", "", OpRead, ""},
		{"invalid escape kept raw", clientID, "GET", "/bad%zz", OpRead, "bad%zz"},
		{"count variant", stats, "GET", "/p-1", OpCount, "p-1"},
		{"count variant write", stats, "POST", "/job-9", OpWrite, "job-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, key, err := Route(tt.variant, tt.method, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.key, key)
		})
	}

	_, _, err := Route(clientID, "DELETE", "/abc")
	assert.ErrorIs(t, err, errors.ErrUnsupportedMethod)
}
