// ABOUTME: dbp_server_info reports server identity, uptime, caller identity and component readiness.
// ABOUTME: Useful as a connectivity and permission check.

package tools

import (
	"context"
	"time"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/components"
)

// ServerInfo describes the running server.
type ServerInfo struct {
	Name        string
	Version     string
	StartedAt   time.Time
	AuthEnabled bool
}

// ServerInfoOutput is the output of dbp_server_info.
type ServerInfoOutput struct {
	Name          string              `json:"name"`
	Version       string              `json:"version"`
	StartedAt     time.Time           `json:"started_at"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	AuthEnabled   bool                `json:"auth_enabled"`
	ClientID      string              `json:"client_id"`
	Permissions   []string            `json:"permissions"`
	Components    []components.Status `json:"components"`
}

func serverInfo(info ServerInfo, status func() []components.Status) *tool[Empty, ServerInfoOutput] {
	return newTool(ToolServerInfo,
		"Report server version, uptime, the caller's identity and component readiness.",
		func(_ context.Context, _ Empty, authCtx *auth.AuthContext) (ServerInfoOutput, error) {
			out := ServerInfoOutput{
				Name:          info.Name,
				Version:       info.Version,
				StartedAt:     info.StartedAt.UTC(),
				UptimeSeconds: int64(time.Since(info.StartedAt).Seconds()),
				AuthEnabled:   info.AuthEnabled,
				Permissions:   []string{},
				Components:    []components.Status{},
			}
			if authCtx != nil {
				out.ClientID = authCtx.ClientID
				out.Permissions = authCtx.PermissionList()
			}
			if status != nil {
				out.Components = status()
			}
			return out, nil
		})
}
