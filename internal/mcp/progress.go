// ABOUTME: Context-carried progress reporting for long-running handlers.
// ABOUTME: Streaming transports install a callback; elsewhere reports are dropped.

package mcp

import "context"

// ProgressUpdate is one progress report from a handler.
type ProgressUpdate struct {
	Progress float64 `json:"progress"`
	Total    float64 `json:"total,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// ProgressFunc receives progress reports. It may be called from any goroutine.
type ProgressFunc func(ProgressUpdate)

type progressKey struct{}

// WithProgress returns a context that delivers ReportProgress calls to fn.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress sends a progress update if the caller asked for them.
func ReportProgress(ctx context.Context, progress, total float64, message string) {
	fn, ok := ctx.Value(progressKey{}).(ProgressFunc)
	if !ok || fn == nil {
		return
	}
	fn(ProgressUpdate{Progress: progress, Total: total, Message: message})
}
