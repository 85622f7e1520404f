// ABOUTME: Audit sink that persists router request records to the store
// ABOUTME: Converts mcp.RequestRecord into store.RequestLog rows

package gateway

import (
	"context"

	"github.com/2389/dbp-gateway/internal/mcp"
	"github.com/2389/dbp-gateway/internal/store"
)

type storeAudit struct {
	store store.Store
}

var _ mcp.AuditSink = storeAudit{}

func (a storeAudit) RecordRequest(ctx context.Context, rec mcp.RequestRecord) error {
	return a.store.AppendRequestLog(ctx, &store.RequestLog{
		RequestID:  rec.RequestID,
		ClientID:   rec.ClientID,
		Kind:       string(rec.Kind),
		Target:     rec.Target,
		Status:     string(rec.Status),
		Code:       string(rec.Code),
		Stage:      string(rec.Stage),
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.At,
	})
}
