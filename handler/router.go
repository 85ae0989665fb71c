package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/c360/kvgate/errors"
)

// Method is the enumerated set of HTTP methods a handler accepts.
type Method int

// Supported methods.
const (
	MethodGet Method = iota + 1
	MethodPost
)

// String returns the HTTP method name.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	default:
		return "UNSUPPORTED"
	}
}

// ParseMethod maps an HTTP method name onto Method. Anything other than GET
// or POST wraps errors.ErrUnsupportedMethod and classifies as fatal.
func ParseMethod(method string) (Method, error) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return MethodGet, nil
	case http.MethodPost:
		return MethodPost, nil
	default:
		return 0, errors.WrapFatal(errors.ErrUnsupportedMethod, "Router", "ParseMethod",
			fmt.Sprintf("method %q", method))
	}
}

// Operation is the storage operation a request is routed to.
type Operation string

// Operations selected by the router.
const (
	OpWrite Operation = "write"
	OpRead  Operation = "read"
	OpCount Operation = "count"
)

// Route selects the operation for method and extracts the record key from
// path by stripping the variant's method-specific prefix. The remainder is
// unescaped and otherwise used verbatim.
func Route(v Variant, method, path string) (Operation, string, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return "", "", err
	}

	var op Operation
	var prefix string
	switch m {
	case MethodPost:
		op, prefix = OpWrite, v.WritePrefix
	default:
		op, prefix = OpRead, v.ReadPrefix
		if v.ReadOperation == ReadCount {
			op = OpCount
		}
	}

	return op, extractKey(path, prefix), nil
}

func extractKey(path, prefix string) string {
	raw, ok := strings.CutPrefix(path, prefix)
	if !ok {
		raw = strings.TrimPrefix(path, "/")
	}
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}
