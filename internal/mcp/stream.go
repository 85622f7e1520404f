// ABOUTME: Server-Sent Events transport: progress events followed by one response event.
// ABOUTME: Progress reported after the response is sent is dropped.

package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// Event types written to /mcp/stream.
const (
	EventProgress = "progress"
	EventResponse = "response"
)

// eventWriter serializes writes to an SSE session; handlers may report
// progress from their own goroutines.
type eventWriter struct {
	mu   sync.Mutex
	sess *sse.Session
	done bool
}

func (e *eventWriter) send(eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	msg := &sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(string(data))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	if eventType == EventResponse {
		e.done = true
	}
	if err := e.sess.Send(msg); err != nil {
		return fmt.Errorf("sending %s event: %w", eventType, err)
	}
	return e.sess.Flush()
}

// handleStream answers a request as an event stream. Decoding failures are
// reported before the upgrade, exactly as on /mcp.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewError("", s.errors.Handle(err, nil)))
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		s.logger.Error("failed to upgrade to event stream", "request_id", req.ID, "error", err)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ew := &eventWriter{sess: sess}

	ctx := WithProgress(r.Context(), func(u ProgressUpdate) {
		if err := ew.send(EventProgress, u); err != nil {
			s.logger.Debug("dropping progress event", "request_id", req.ID, "error", err)
		}
	})

	resp := s.HandleRequest(ctx, req)
	if err := ew.send(EventResponse, resp); err != nil {
		s.logger.Warn("failed to send response event", "request_id", req.ID, "error", err)
	}
}
