package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ContentType is set on every response.
const ContentType = "application/json"

// invalidPayloadBody is the literal body of a rejected write.
const invalidPayloadBody = "Invalid payload"

// Response is the status and body produced for one request.
type Response struct {
	Status int
	Body   []byte
}

// String returns the body as text.
func (r Response) String() string {
	return string(r.Body)
}

// Posted is the response to a successful write.
func Posted(backend string) Response {
	return Response{
		Status: http.StatusOK,
		Body:   fmt.Appendf(nil, `{"result": %s}`, quote("posted result on "+backend)),
	}
}

// Exists is the response to a successful read. A nil payload produces the
// existence-only shape; otherwise payload is embedded verbatim.
func Exists(idField string, payload json.RawMessage) Response {
	if payload == nil {
		return Response{
			Status: http.StatusOK,
			Body:   fmt.Appendf(nil, `{%s: "exists"}`, quote(idField)),
		}
	}
	return Response{
		Status: http.StatusOK,
		Body:   fmt.Appendf(nil, `{%s: "exists", "payload": %s}`, quote(idField), payload),
	}
}

// Missing is the response to any failed read.
func Missing(idField string) Response {
	return Response{
		Status: http.StatusNotFound,
		Body:   fmt.Appendf(nil, `{%s: "doesn't exist"}`, quote(idField)),
	}
}

// InvalidPayload is the response to a write whose body fails validation.
func InvalidPayload() Response {
	return Response{
		Status: http.StatusBadRequest,
		Body:   []byte(invalidPayloadBody),
	}
}

// Stats is the response to a successful count query.
func Stats(n int) Response {
	return Response{
		Status: http.StatusOK,
		Body:   fmt.Appendf(nil, `{"stats": %s}`, quote(strconv.Itoa(n))),
	}
}

func quote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return []byte(`""`)
	}
	return b
}
