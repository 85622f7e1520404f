// ABOUTME: Request/response envelope types for the MCP core.
// ABOUTME: Encodes the wire contract: result present iff success, error present iff error.

package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Kind selects the registry a request is routed to.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
)

// Actions checked during authorization.
const (
	ActionExecute = "execute"
	ActionGet     = "get"
)

// Status is the outcome of a request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is a single inbound call. It is not modified after construction.
type Request struct {
	ID      string            `json:"id"`
	Kind    Kind              `json:"type"`
	Target  string            `json:"target"`
	Payload map[string]any    `json:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Header returns the value of the named header, matching names case-insensitively.
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// SplitResourceTarget splits a resource target on its first "/". A target
// without "/" addresses the resource root and yields a nil id.
func SplitResourceTarget(target string) (name string, id *string) {
	name, rest, found := strings.Cut(target, "/")
	if !found {
		return target, nil
	}
	return name, &rest
}

// Response is the outcome of exactly one Request.
type Response struct {
	ID     string         `json:"id"`
	Status Status         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  *mcperr.Error  `json:"error,omitempty"`
}

// NewSuccess builds a success response. A nil result becomes an empty object.
func NewSuccess(id string, result map[string]any) Response {
	if result == nil {
		result = map[string]any{}
	}
	return Response{ID: id, Status: StatusSuccess, Result: result}
}

// NewError builds an error response.
func NewError(id string, e mcperr.Error) Response {
	return Response{ID: id, Status: StatusError, Error: &e}
}

// Valid reports whether exactly one of Result/Error is set and agrees with Status.
func (r Response) Valid() bool {
	switch r.Status {
	case StatusSuccess:
		return r.Result != nil && r.Error == nil
	case StatusError:
		return r.Result == nil && r.Error != nil
	default:
		return false
	}
}

// MarshalJSON emits "result" iff the response succeeded, even when the result
// is an empty object.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID     string          `json:"id"`
		Status Status          `json:"status"`
		Result *map[string]any `json:"result,omitempty"`
		Error  *mcperr.Error   `json:"error,omitempty"`
	}
	w := wire{ID: r.ID, Status: r.Status}
	if r.Status == StatusSuccess {
		result := r.Result
		if result == nil {
			result = map[string]any{}
		}
		w.Result = &result
	} else {
		w.Error = r.Error
	}
	return json.Marshal(w)
}

// ToResult converts a handler's typed output into a result object. Values that
// do not encode to a JSON object are wrapped under "value".
func ToResult(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil && m != nil {
		return m, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return map[string]any{"value": raw}, nil
}

// DecodePayload decodes a request payload into a typed input struct. Shape
// mismatches surface as INVALID_PARAMETERS through the error handler.
func DecodePayload(payload map[string]any, into any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return mcperr.InvalidParameter("", "payload is not JSON-encodable")
	}
	return json.Unmarshal(data, into)
}
