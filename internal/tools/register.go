// ABOUTME: Registers every DBP tool and resource with the MCP registries.
// ABOUTME: Registration happens once at startup, before the router serves traffic.

package tools

import (
	"github.com/2389/dbp-gateway/internal/adapter"
	"github.com/2389/dbp-gateway/internal/components"
	"github.com/2389/dbp-gateway/internal/mcp"
)

// Deps are the dependencies shared by the handlers.
type Deps struct {
	Adapter *adapter.Adapter
	Info    ServerInfo
	// Status reports component readiness for dbp_server_info.
	Status func() []components.Status
}

// Handlers returns every tool and resource handler.
func Handlers(d Deps) []mcp.Named {
	return []mcp.Named{
		generalQuery(d.Adapter),
		analyzeConsistency(d.Adapter),
		generateRecommendations(d.Adapter),
		applyRecommendation(d.Adapter),
		extractMetadata(d.Adapter),
		docRelationships(d.Adapter),
		serverInfo(d.Info, d.Status),

		documentationResource(d.Adapter),
		metadataResource(d.Adapter),
		recommendationsResource(d.Adapter),
		relationshipsResource(d.Adapter),
	}
}

// Register classifies and registers every handler.
func Register(tools *mcp.ToolRegistry, resources *mcp.ResourceRegistry, d Deps) error {
	for _, h := range Handlers(d) {
		if err := mcp.RegisterHandler(tools, resources, h); err != nil {
			return err
		}
	}
	return nil
}
