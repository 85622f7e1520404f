// ABOUTME: RecommendationGenerator turns consistency findings into stored recommendations.
// ABOUTME: Pending recommendations are deduplicated by document, kind and title.

package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/dbp-gateway/internal/mcperr"
	"github.com/2389/dbp-gateway/internal/store"
)

// RecommendationGenerator persists recommendations derived from analysis.
type RecommendationGenerator struct {
	Lifecycle

	analyzer *ConsistencyAnalyzer
	store    store.Store
	logger   *slog.Logger
}

// NewRecommendationGenerator creates a generator backed by s.
func NewRecommendationGenerator(analyzer *ConsistencyAnalyzer, s store.Store, logger *slog.Logger) *RecommendationGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommendationGenerator{
		analyzer: analyzer,
		store:    s,
		logger:   logger.With("component", NameRecommendationGenerator),
	}
}

// Name implements Component.
func (g *RecommendationGenerator) Name() string { return NameRecommendationGenerator }

// Initialize fails when no store was supplied.
func (g *RecommendationGenerator) Initialize(context.Context) error {
	if g.store == nil {
		return &mcperr.MissingDependencyError{Dependency: "recommendation store"}
	}
	return nil
}

// Generate analyzes paths (all documents when empty) and stores one pending
// recommendation per new finding. It returns the recommendations created by
// this call; findings that already have a pending recommendation are skipped.
func (g *RecommendationGenerator) Generate(ctx context.Context, paths []string, createdBy string) ([]store.Recommendation, error) {
	report, err := g.analyzer.Analyze(ctx, paths)
	if err != nil {
		return nil, err
	}

	pending := store.RecommendationPending
	created := []store.Recommendation{}
	for _, f := range report.Findings {
		rec := recommendationFor(f)

		existing, err := g.store.ListRecommendations(ctx, store.RecommendationFilter{Document: &f.Document, Status: &pending, Limit: 1000})
		if err != nil {
			return nil, fmt.Errorf("listing recommendations: %w", err)
		}
		if hasDuplicate(existing, rec) {
			continue
		}

		rec.Status = store.RecommendationPending
		rec.CreatedBy = createdBy
		if err := g.store.CreateRecommendation(ctx, &rec); err != nil {
			return nil, fmt.Errorf("storing recommendation: %w", err)
		}
		created = append(created, rec)
	}

	g.logger.Info("recommendations generated", "findings", len(report.Findings), "created", len(created))
	return created, nil
}

// Get returns a stored recommendation.
func (g *RecommendationGenerator) Get(ctx context.Context, id string) (*store.Recommendation, error) {
	rec, err := g.store.GetRecommendation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &mcperr.ResourceNotFoundError{Name: "recommendations", ID: id}
	}
	return rec, err
}

// List returns stored recommendations matching f.
func (g *RecommendationGenerator) List(ctx context.Context, f store.RecommendationFilter) ([]store.Recommendation, error) {
	return g.store.ListRecommendations(ctx, f)
}

// Decide accepts or rejects a pending recommendation.
func (g *RecommendationGenerator) Decide(ctx context.Context, id string, accept bool, decidedBy string) (*store.Recommendation, error) {
	status := store.RecommendationRejected
	if accept {
		status = store.RecommendationAccepted
	}
	rec, err := g.store.SetRecommendationStatus(ctx, id, status, decidedBy)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, &mcperr.ResourceNotFoundError{Name: "recommendations", ID: id}
	case errors.Is(err, store.ErrAlreadyDecided):
		return nil, mcperr.InvalidParameter("id", "recommendation "+id+" was already decided")
	case err != nil:
		return nil, &mcperr.ExecutionError{Op: "deciding recommendation", Err: err}
	}
	g.logger.Info("recommendation decided", "id", id, "status", status, "decided_by", decidedBy)
	return rec, nil
}

func hasDuplicate(existing []store.Recommendation, rec store.Recommendation) bool {
	for _, e := range existing {
		if e.Kind == rec.Kind && e.Title == rec.Title {
			return true
		}
	}
	return false
}

func recommendationFor(f Finding) store.Recommendation {
	rec := store.Recommendation{
		Document: f.Document,
		Kind:     f.Kind,
		Severity: f.Severity,
		Detail:   f.Message,
	}
	switch f.Kind {
	case FindingBrokenLink:
		rec.Title = "Fix link to " + f.Target
		rec.Detail = f.Message + "; create " + f.Target + " or update the link"
	case FindingMissingTitle:
		rec.Title = "Add a title heading"
	case FindingOrphan:
		rec.Title = "Link to this document from an index"
	case FindingEmptyDocument:
		rec.Title = "Write content or remove the document"
	default:
		rec.Title = "Review " + f.Kind
	}
	return rec
}
