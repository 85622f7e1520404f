// ABOUTME: Server-sent events client for /mcp/stream
// ABOUTME: Delivers progress events to a callback and returns the final response envelope

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/2389/dbp-gateway/internal/mcp"
)

// ErrNoResponse is returned when an event stream ends without a response event.
var ErrNoResponse = errors.New("stream ended without a response event")

// ProgressFunc receives progress events in arrival order.
type ProgressFunc func(mcp.ProgressUpdate)

// Stream sends req to /mcp/stream. Progress events are passed to onProgress
// (which may be nil) until the response event arrives.
func (c *Client) Stream(ctx context.Context, req mcp.Request, onProgress ProgressFunc) (mcp.Response, error) {
	body, err := encodeEnvelope(&req)
	if err != nil {
		return mcp.Response{}, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/mcp/stream", body)
	if err != nil {
		return mcp.Response{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return mcp.Response{}, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Undecodable requests are rejected before the stream starts.
	if resp.StatusCode != http.StatusOK {
		return decodeEnvelope(resp)
	}

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return mcp.Response{}, fmt.Errorf("reading event stream: %w", err)
		}

		switch ev.Type {
		case mcp.EventProgress:
			if onProgress == nil {
				continue
			}
			var u mcp.ProgressUpdate
			if err := json.Unmarshal([]byte(ev.Data), &u); err != nil {
				return mcp.Response{}, fmt.Errorf("decoding progress event: %w", err)
			}
			onProgress(u)
		case mcp.EventResponse:
			var out mcp.Response
			if err := json.Unmarshal([]byte(ev.Data), &out); err != nil {
				return mcp.Response{}, fmt.Errorf("decoding response event: %w", err)
			}
			return out, nil
		}
	}
	return mcp.Response{}, ErrNoResponse
}
