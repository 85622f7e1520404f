// ABOUTME: Tests for consistency analysis, recommendation generation and keyword queries.
// ABOUTME: Expectations follow the deliberate defects in the sample collection.

package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dbp-gateway/internal/mcp"
	"github.com/2389/dbp-gateway/internal/mcperr"
	"github.com/2389/dbp-gateway/internal/store"
)

func findingKinds(findings []Finding) map[string][]string {
	out := map[string][]string{}
	for _, f := range findings {
		out[f.Document] = append(out[f.Document], f.Kind)
	}
	return out
}

func TestConsistencyAnalyzeAll(t *testing.T) {
	f := newFixture(t, sampleDocs)

	report, err := f.analyzer.Analyze(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Documents)
	assert.False(t, report.AnalyzedAt.IsZero())
	assert.Equal(t, map[string][]string{
		"docs/design.md": {FindingBrokenLink},
		"docs/empty.md":  {FindingEmptyDocument, FindingMissingTitle, FindingOrphan},
		"docs/notes.md":  {FindingMissingTitle, FindingOrphan},
	}, findingKinds(report.Findings))

	broken := report.Findings[0]
	assert.Equal(t, SeverityError, broken.Severity)
	assert.Equal(t, "docs/missing.md", broken.Target)
}

func TestConsistencyAnalyzeSubset(t *testing.T) {
	f := newFixture(t, sampleDocs)

	report, err := f.analyzer.Analyze(context.Background(), []string{"docs/notes.md", "./docs/notes.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Len(t, report.Findings, 2)

	_, err = f.analyzer.Analyze(context.Background(), []string{"../escape.md"})
	assert.Error(t, err)
}

func TestConsistencyReportsProgress(t *testing.T) {
	f := newFixture(t, sampleDocs)

	var updates []mcp.ProgressUpdate
	ctx := mcp.WithProgress(context.Background(), func(u mcp.ProgressUpdate) {
		updates = append(updates, u)
	})

	_, err := f.analyzer.Analyze(ctx, nil)
	require.NoError(t, err)
	require.Len(t, updates, 5)
	assert.Equal(t, float64(1), updates[0].Progress)
	assert.Equal(t, float64(5), updates[4].Progress)
	assert.Equal(t, float64(5), updates[4].Total)
	assert.Equal(t, "analyzed docs/notes.md", updates[4].Message)
}

func TestConsistencyHonorsCancellation(t *testing.T) {
	f := newFixture(t, sampleDocs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.analyzer.Analyze(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendationsGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t, sampleDocs)
	ctx := context.Background()

	created, err := f.recs.Generate(ctx, nil, "client-1")
	require.NoError(t, err)
	require.Len(t, created, 6)
	for _, r := range created {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, store.RecommendationPending, r.Status)
		assert.Equal(t, "client-1", r.CreatedBy)
	}

	again, err := f.recs.Generate(ctx, nil, "client-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := f.recs.List(ctx, store.RecommendationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestRecommendationsDecide(t *testing.T) {
	f := newFixture(t, sampleDocs)
	ctx := context.Background()

	created, err := f.recs.Generate(ctx, []string{"docs/design.md"}, "client-1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	id := created[0].ID
	assert.Equal(t, "Fix link to docs/missing.md", created[0].Title)

	rec, err := f.recs.Decide(ctx, id, true, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, store.RecommendationAccepted, rec.Status)
	assert.Equal(t, "reviewer", rec.DecidedBy)

	var invalid *mcperr.InvalidParametersError
	_, err = f.recs.Decide(ctx, id, false, "reviewer")
	assert.ErrorAs(t, err, &invalid)

	var notFound *mcperr.ResourceNotFoundError
	_, err = f.recs.Decide(ctx, "nope", true, "reviewer")
	assert.ErrorAs(t, err, &notFound)
	_, err = f.recs.Get(ctx, "nope")
	assert.ErrorAs(t, err, &notFound)

	got, err := f.recs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.RecommendationAccepted, got.Status)
}

func TestRecommendationsRequireStore(t *testing.T) {
	g := NewRecommendationGenerator(nil, nil, testLogger())
	var missing *mcperr.MissingDependencyError
	assert.ErrorAs(t, g.Initialize(context.Background()), &missing)
}

func TestKeywordCoordinatorQuery(t *testing.T) {
	f := newFixture(t, sampleDocs)

	res, err := f.coord.Query(context.Background(), "Authentication keys?", 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	assert.Equal(t, "docs/design.md", res.Matches[0].Path)
	assert.Equal(t, "Design", res.Matches[0].Title)
	assert.Equal(t, float64(4), res.Matches[0].Score)
	assert.Contains(t, res.Matches[0].Snippet, "API keys authenticate")
	assert.Equal(t, "docs/guide.md", res.Matches[1].Path)
	assert.Contains(t, res.Answer, `"Design" (docs/design.md)`)

	limited, err := f.coord.Query(context.Background(), "authentication", 1)
	require.NoError(t, err)
	assert.Len(t, limited.Matches, 1)
}

func TestKeywordCoordinatorNoMatches(t *testing.T) {
	f := newFixture(t, sampleDocs)

	res, err := f.coord.Query(context.Background(), "kubernetes", 5)
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
	assert.Equal(t, "No documents matched the query.", res.Answer)

	var invalid *mcperr.InvalidParametersError
	_, err = f.coord.Query(context.Background(), "? !", 5)
	assert.ErrorAs(t, err, &invalid)
}
