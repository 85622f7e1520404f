// ABOUTME: DBP tools: query, consistency analysis, recommendations, metadata and relationships.
// ABOUTME: Components are resolved through the adapter on every call.

package tools

import (
	"context"
	"slices"
	"time"

	"github.com/2389/dbp-gateway/internal/adapter"
	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/components"
	"github.com/2389/dbp-gateway/internal/mcperr"
	"github.com/2389/dbp-gateway/internal/store"
)

// Tool names.
const (
	ToolGeneralQuery            = "dbp_general_query"
	ToolAnalyzeConsistency      = "dbp_analyze_consistency"
	ToolGenerateRecommendations = "dbp_generate_recommendations"
	ToolApplyRecommendation     = "dbp_apply_recommendation"
	ToolExtractMetadata         = "dbp_extract_metadata"
	ToolDocRelationships        = "dbp_doc_relationships"
	ToolServerInfo              = "dbp_server_info"
)

const (
	defaultQueryLimit = 5
	maxQueryLimit     = 50
)

// QueryInput is the input of dbp_general_query.
type QueryInput struct {
	Query string `json:"query" jsonschema:"required,description=Free-text question about the documentation"`
	Limit int    `json:"limit,omitempty" jsonschema:"minimum=0,maximum=50,description=Maximum matches (default 5)"`
}

func (in *QueryInput) validate() error {
	if in.Query == "" {
		return mcperr.InvalidParameter("query", "is required")
	}
	if in.Limit < 0 || in.Limit > maxQueryLimit {
		return mcperr.InvalidParameter("limit", "must be between 0 and 50")
	}
	if in.Limit == 0 {
		in.Limit = defaultQueryLimit
	}
	return nil
}

// PathsInput selects documents; empty means all of them.
type PathsInput struct {
	Paths []string `json:"paths,omitempty" jsonschema:"description=Document paths relative to the docs root; empty means all"`
}

// PathInput optionally selects one document.
type PathInput struct {
	Path string `json:"path,omitempty" jsonschema:"description=Document path relative to the docs root; empty means all"`
}

// MetadataOutput lists metadata for one or more documents.
type MetadataOutput struct {
	Documents []*components.Metadata `json:"documents"`
}

// RelationshipsOutput is either the whole graph or one document's edges.
type RelationshipsOutput struct {
	Graph    *components.Graph             `json:"graph,omitempty"`
	Document *components.DocumentRelations `json:"document,omitempty"`
}

// RecommendationView is the wire form of a stored recommendation.
type RecommendationView struct {
	ID        string     `json:"id"`
	Document  string     `json:"document"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Detail    string     `json:"detail,omitempty"`
	Severity  string     `json:"severity"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"created_by,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func viewOf(r store.Recommendation) RecommendationView {
	v := RecommendationView{
		ID:        r.ID,
		Document:  r.Document,
		Kind:      r.Kind,
		Title:     r.Title,
		Detail:    r.Detail,
		Severity:  r.Severity,
		Status:    string(r.Status),
		CreatedBy: r.CreatedBy,
		DecidedBy: r.DecidedBy,
		CreatedAt: r.CreatedAt,
	}
	if !r.UpdatedAt.Equal(r.CreatedAt) {
		updated := r.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}

func viewsOf(recs []store.Recommendation) []RecommendationView {
	out := make([]RecommendationView, 0, len(recs))
	for _, r := range recs {
		out = append(out, viewOf(r))
	}
	return out
}

// RecommendationsOutput lists recommendations.
type RecommendationsOutput struct {
	Recommendations []RecommendationView `json:"recommendations"`
	Count           int                  `json:"count"`
}

// ApplyInput is the input of dbp_apply_recommendation.
type ApplyInput struct {
	ID       string `json:"id" jsonschema:"required,description=Recommendation id"`
	Decision string `json:"decision" jsonschema:"required,enum=accept,enum=reject"`
}

func (in *ApplyInput) validate() error {
	if in.ID == "" {
		return mcperr.InvalidParameter("id", "is required")
	}
	if !slices.Contains([]string{"accept", "reject"}, in.Decision) {
		return mcperr.InvalidParameter("decision", `must be "accept" or "reject"`)
	}
	return nil
}

func generalQuery(a *adapter.Adapter) *tool[QueryInput, *components.QueryResult] {
	return newTool(ToolGeneralQuery,
		"Answer a free-text question by ranking documentation that matches it.",
		func(ctx context.Context, in QueryInput, _ *auth.AuthContext) (*components.QueryResult, error) {
			coord, err := a.Coordinator()
			if err != nil {
				return nil, err
			}
			return coord.Query(ctx, in.Query, in.Limit)
		})
}

func analyzeConsistency(a *adapter.Adapter) *tool[PathsInput, *components.ConsistencyReport] {
	return newTool(ToolAnalyzeConsistency,
		"Check documents for broken links, missing titles, orphans and empty bodies. Streams per-document progress.",
		func(ctx context.Context, in PathsInput, _ *auth.AuthContext) (*components.ConsistencyReport, error) {
			analyzer, err := a.ConsistencyAnalysis()
			if err != nil {
				return nil, err
			}
			return analyzer.Analyze(ctx, in.Paths)
		})
}

func generateRecommendations(a *adapter.Adapter) *tool[PathsInput, RecommendationsOutput] {
	return newTool(ToolGenerateRecommendations,
		"Analyze documents and store a pending recommendation for each new finding.",
		func(ctx context.Context, in PathsInput, authCtx *auth.AuthContext) (RecommendationsOutput, error) {
			gen, err := a.RecommendationGenerator()
			if err != nil {
				return RecommendationsOutput{}, err
			}
			created, err := gen.Generate(ctx, in.Paths, clientID(authCtx))
			if err != nil {
				return RecommendationsOutput{}, err
			}
			return RecommendationsOutput{Recommendations: viewsOf(created), Count: len(created)}, nil
		})
}

// applyRecommendation needs recommendation:<id>:write on top of the
// router's tool permission.
func applyRecommendation(a *adapter.Adapter) *tool[ApplyInput, RecommendationView] {
	return newTool(ToolApplyRecommendation,
		"Accept or reject a pending recommendation. Requires recommendation:<id>:write.",
		func(ctx context.Context, in ApplyInput, authCtx *auth.AuthContext) (RecommendationView, error) {
			if !authCtx.Allows("recommendation", in.ID, "write") {
				return RecommendationView{}, &mcperr.AuthorizationError{
					ClientID:           clientID(authCtx),
					RequiredPermission: auth.RequiredPermission("recommendation", in.ID, "write"),
				}
			}
			gen, err := a.RecommendationGenerator()
			if err != nil {
				return RecommendationView{}, err
			}
			rec, err := gen.Decide(ctx, in.ID, in.Decision == "accept", clientID(authCtx))
			if err != nil {
				return RecommendationView{}, err
			}
			return viewOf(*rec), nil
		})
}

func extractMetadata(a *adapter.Adapter) *tool[PathInput, MetadataOutput] {
	return newTool(ToolExtractMetadata,
		"Extract title, headings, links and word count from one document or all of them.",
		func(ctx context.Context, in PathInput, _ *auth.AuthContext) (MetadataOutput, error) {
			return metadataFor(ctx, a, in.Path)
		})
}

func docRelationships(a *adapter.Adapter) *tool[PathInput, RelationshipsOutput] {
	return newTool(ToolDocRelationships,
		"Return the link graph, or the incoming and outgoing links of one document.",
		func(ctx context.Context, in PathInput, _ *auth.AuthContext) (RelationshipsOutput, error) {
			return relationshipsFor(ctx, a, in.Path)
		})
}

func metadataFor(ctx context.Context, a *adapter.Adapter, docPath string) (MetadataOutput, error) {
	extractor, err := a.MetadataExtraction()
	if err != nil {
		return MetadataOutput{}, err
	}
	if docPath == "" {
		all, err := extractor.ExtractAll(ctx)
		if err != nil {
			return MetadataOutput{}, err
		}
		return MetadataOutput{Documents: all}, nil
	}
	meta, err := extractor.Extract(ctx, docPath)
	if err != nil {
		return MetadataOutput{}, err
	}
	return MetadataOutput{Documents: []*components.Metadata{meta}}, nil
}

func relationshipsFor(ctx context.Context, a *adapter.Adapter, docPath string) (RelationshipsOutput, error) {
	rel, err := a.DocRelationships()
	if err != nil {
		return RelationshipsOutput{}, err
	}
	if docPath == "" {
		g, err := rel.Graph(ctx)
		if err != nil {
			return RelationshipsOutput{}, err
		}
		return RelationshipsOutput{Graph: g}, nil
	}
	doc, err := rel.ForDocument(ctx, docPath)
	if err != nil {
		return RelationshipsOutput{}, err
	}
	return RelationshipsOutput{Document: doc}, nil
}

func clientID(authCtx *auth.AuthContext) string {
	if authCtx == nil {
		return ""
	}
	return authCtx.ClientID
}
