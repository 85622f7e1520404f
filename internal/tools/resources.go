// ABOUTME: DBP resources: documentation, metadata, recommendations and relationships.
// ABOUTME: A request without an id addresses the collection; with an id, one entry.

package tools

import (
	"context"

	"github.com/2389/dbp-gateway/internal/adapter"
	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/components"
	"github.com/2389/dbp-gateway/internal/mcperr"
	"github.com/2389/dbp-gateway/internal/store"
)

// Resource names.
const (
	ResourceDocumentation   = "documentation"
	ResourceMetadata        = "metadata"
	ResourceRecommendations = "recommendations"
	ResourceRelationships   = "relationships"
)

// DocumentationInput selects the rendering of a single document.
type DocumentationInput struct {
	Format string `json:"format,omitempty" jsonschema:"enum=markdown,enum=html,description=Content format (default markdown)"`
}

func (in *DocumentationInput) validate() error {
	switch in.Format {
	case "":
		in.Format = "markdown"
	case "markdown", "html":
	default:
		return mcperr.InvalidParameter("format", `must be "markdown" or "html"`)
	}
	return nil
}

// DocumentationOutput is a document listing or a single document.
type DocumentationOutput struct {
	Documents []string             `json:"documents,omitempty"`
	Count     *int                 `json:"count,omitempty"`
	Document  *components.Document `json:"document,omitempty"`
	Format    string               `json:"format,omitempty"`
	Content   string               `json:"content,omitempty"`
}

// RecommendationQuery filters the recommendations collection.
type RecommendationQuery struct {
	Document string `json:"document,omitempty"`
	Status   string `json:"status,omitempty" jsonschema:"enum=pending,enum=accepted,enum=rejected"`
	Limit    int    `json:"limit,omitempty" jsonschema:"minimum=0,maximum=1000"`
}

func (q *RecommendationQuery) validate() error {
	if q.Status != "" && !store.RecommendationStatus(q.Status).Valid() {
		return mcperr.InvalidParameter("status", "must be pending, accepted or rejected")
	}
	if q.Limit < 0 {
		return mcperr.InvalidParameter("limit", "must not be negative")
	}
	return nil
}

func (q RecommendationQuery) filter() store.RecommendationFilter {
	f := store.RecommendationFilter{Limit: q.Limit}
	if q.Document != "" {
		f.Document = &q.Document
	}
	if q.Status != "" {
		s := store.RecommendationStatus(q.Status)
		f.Status = &s
	}
	return f
}

// RecommendationsResourceOutput is a listing or a single recommendation.
type RecommendationsResourceOutput struct {
	Recommendations []RecommendationView `json:"recommendations,omitempty"`
	Count           *int                 `json:"count,omitempty"`
	Recommendation  *RecommendationView  `json:"recommendation,omitempty"`
}

func documentationResource(a *adapter.Adapter) *resource[DocumentationInput, DocumentationOutput] {
	return newResource(ResourceDocumentation,
		"Documentation files. Without an id, lists document paths; with a path, returns the document as markdown or html.",
		func(ctx context.Context, id *string, in DocumentationInput, _ *auth.AuthContext) (DocumentationOutput, error) {
			docs, err := a.Documentation()
			if err != nil {
				return DocumentationOutput{}, err
			}
			if id == nil {
				paths, err := docs.List(ctx)
				if err != nil {
					return DocumentationOutput{}, err
				}
				n := len(paths)
				return DocumentationOutput{Documents: paths, Count: &n}, nil
			}

			doc, err := docs.Read(ctx, *id)
			if err != nil {
				return DocumentationOutput{}, err
			}
			out := DocumentationOutput{Document: doc, Format: in.Format, Content: string(doc.Content)}
			if in.Format == "html" {
				if out.Content, err = docs.RenderHTML(ctx, doc.Path); err != nil {
					return DocumentationOutput{}, err
				}
			}
			return out, nil
		})
}

func metadataResource(a *adapter.Adapter) *resource[Empty, MetadataOutput] {
	return newResource(ResourceMetadata,
		"Document metadata. Without an id, covers every document.",
		func(ctx context.Context, id *string, _ Empty, _ *auth.AuthContext) (MetadataOutput, error) {
			return metadataFor(ctx, a, deref(id))
		})
}

func relationshipsResource(a *adapter.Adapter) *resource[Empty, RelationshipsOutput] {
	return newResource(ResourceRelationships,
		"Document link graph. With a document path, returns that document's links.",
		func(ctx context.Context, id *string, _ Empty, _ *auth.AuthContext) (RelationshipsOutput, error) {
			return relationshipsFor(ctx, a, deref(id))
		})
}

func recommendationsResource(a *adapter.Adapter) *resource[RecommendationQuery, RecommendationsResourceOutput] {
	return newResource(ResourceRecommendations,
		"Stored recommendations, newest first. Filter with document, status and limit, or address one by id.",
		func(ctx context.Context, id *string, q RecommendationQuery, _ *auth.AuthContext) (RecommendationsResourceOutput, error) {
			gen, err := a.RecommendationGenerator()
			if err != nil {
				return RecommendationsResourceOutput{}, err
			}
			if id != nil {
				rec, err := gen.Get(ctx, *id)
				if err != nil {
					return RecommendationsResourceOutput{}, err
				}
				v := viewOf(*rec)
				return RecommendationsResourceOutput{Recommendation: &v}, nil
			}

			recs, err := gen.List(ctx, q.filter())
			if err != nil {
				return RecommendationsResourceOutput{}, err
			}
			n := len(recs)
			return RecommendationsResourceOutput{Recommendations: viewsOf(recs), Count: &n}, nil
		})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
