// ABOUTME: HTTP transport for the MCP core: envelope endpoint and descriptor listings.
// ABOUTME: Every decodable request gets HTTP 200; the envelope status carries the outcome.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// RegisterRoutes registers the MCP endpoints on mux. authn guards the listing
// endpoints; when nil, the server's own Authenticator is used.
func (s *Server) RegisterRoutes(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	if authn == nil {
		authn = s.authMiddleware
	}
	mux.HandleFunc("/mcp", s.handleRequest)
	mux.HandleFunc("/mcp/stream", s.handleStream)
	mux.Handle("/mcp/tools", authn(http.HandlerFunc(s.handleListTools)))
	mux.Handle("/mcp/resources", authn(http.HandlerFunc(s.handleListResources)))
}

// handleRequest answers POST /mcp with a single response envelope.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if isStreamRequest(r) {
		s.handleStream(w, r)
		return
	}

	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewError("", s.errors.Handle(err, nil)))
		return
	}

	s.writeJSON(w, http.StatusOK, s.HandleRequest(r.Context(), req))
}

// decodeRequest reads a Request from the body and merges the HTTP headers over
// any headers carried in the body. A missing id is filled with a fresh UUID.
func (s *Server) decodeRequest(r *http.Request) (Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return Request{}, &mcperr.MalformedRequestError{Reason: "failed to read request body"}
	}
	if int64(len(body)) > MaxRequestBodySize {
		return Request{}, &mcperr.MalformedRequestError{Reason: "request body too large"}
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Request{}, &mcperr.MalformedRequestError{Reason: "invalid field " + typeErr.Field}
		}
		return Request{}, &mcperr.MalformedRequestError{Reason: "invalid JSON"}
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Headers = mergeHeaders(req.Headers, r.Header)
	return req, nil
}

// mergeHeaders overlays HTTP headers on body headers. Body entries that differ
// only in case from an HTTP header are dropped so the HTTP value wins.
func mergeHeaders(body map[string]string, httpHeader http.Header) map[string]string {
	out := make(map[string]string, len(body)+len(httpHeader))
	for k, v := range body {
		if _, shadowed := httpHeader[http.CanonicalHeaderKey(k)]; shadowed {
			continue
		}
		out[k] = v
	}
	for k, vs := range httpHeader {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	tools := s.ToolDescriptors(auth.FromContext(r.Context()))
	if tools == nil {
		tools = []Descriptor{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	resources := s.ResourceDescriptors(auth.FromContext(r.Context()))
	if resources == nil {
		resources = []Descriptor{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// authMiddleware authenticates with the server's Authenticator and answers
// failures with an AUTHENTICATION_FAILED error object.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := s.auth.Authenticate(auth.HTTPHeaders(r.Header))
		if !ok {
			wireErr := s.errors.Handle(&mcperr.AuthenticationError{Reason: "listing endpoint"}, nil)
			s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": wireErr})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), authCtx)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// isStreamRequest reports whether the client prefers an event stream.
func isStreamRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
