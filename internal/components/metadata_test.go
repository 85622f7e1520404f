// ABOUTME: Tests for markdown metadata extraction and the link graph.
// ABOUTME: Runs against the shared sample collection.

package components

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataExtract(t *testing.T) {
	f := newFixture(t, sampleDocs)

	meta, err := f.meta.Extract(context.Background(), "docs/design.md")
	require.NoError(t, err)

	assert.Equal(t, "docs/design.md", meta.Path)
	assert.Equal(t, "Design", meta.Title)
	assert.Equal(t, []Heading{
		{Level: 1, Text: "Design", ID: "design"},
		{Level: 2, Text: "Authentication", ID: "authentication"},
	}, meta.Headings)

	require.Len(t, meta.Links, 2)
	assert.Equal(t, Link{Text: "guide", Destination: "guide.md#setup", Target: "docs/guide.md"}, meta.Links[0])
	assert.Equal(t, "docs/missing.md", meta.Links[1].Target)
	assert.Equal(t, "missing page", meta.Links[1].Text)

	assert.Positive(t, meta.WordCount)
	assert.False(t, meta.ModTime.IsZero())
}

func TestMetadataParseSkipsCode(t *testing.T) {
	f := newFixture(t, sampleDocs)

	meta := f.meta.Parse("x.md", []byte("```\none two three\n```\n"))
	assert.Zero(t, meta.WordCount)
	assert.Empty(t, meta.Title)
	assert.NotNil(t, meta.Headings)
	assert.NotNil(t, meta.Links)

	meta = f.meta.Parse("x.md", []byte("## Second level\n\nText with `code` inside.\n"))
	assert.Equal(t, "Second level", meta.Title, "falls back to first heading")
	assert.Equal(t, 6, meta.WordCount)
}

func TestMetadataExtractAll(t *testing.T) {
	f := newFixture(t, sampleDocs)

	all, err := f.meta.ExtractAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "README.md", all[0].Path)
	assert.Equal(t, "Project", all[0].Title)
}

func TestMetadataExtractMissing(t *testing.T) {
	f := newFixture(t, sampleDocs)
	_, err := f.meta.Extract(context.Background(), "nope.md")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRelationshipsGraph(t *testing.T) {
	f := newFixture(t, sampleDocs)

	g, err := f.rel.Graph(context.Background())
	require.NoError(t, err)
	assert.Len(t, g.Documents, 5)
	assert.Equal(t, []Edge{
		{From: "README.md", To: "docs/design.md", Text: "design"},
		{From: "README.md", To: "docs/guide.md", Text: "guide"},
		{From: "docs/design.md", To: "docs/guide.md", Text: "guide"},
		{From: "docs/design.md", To: "docs/missing.md", Text: "missing page", Broken: true},
	}, g.Edges)
}

func TestRelationshipsForDocument(t *testing.T) {
	f := newFixture(t, sampleDocs)

	rel, err := f.rel.ForDocument(context.Background(), "docs/guide.md")
	require.NoError(t, err)
	assert.Empty(t, rel.Outgoing)
	require.Len(t, rel.Incoming, 2)
	assert.Equal(t, "README.md", rel.Incoming[0].From)

	_, err = f.rel.ForDocument(context.Background(), "docs/missing.md")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRelationshipsRebuildsWithoutWatcher(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "# A\n"})
	ctx := context.Background()

	g, err := f.rel.Graph(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Edges)

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "b.md"), []byte("# B\n\n[a](a.md)\n"), 0o644))

	g, err = f.rel.Graph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{From: "b.md", To: "a.md", Text: "a"}}, g.Edges)
}
