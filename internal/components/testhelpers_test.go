// ABOUTME: Shared fixtures for component tests.
// ABOUTME: Builds a temporary docs tree and an initialized container over it.

package components

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/dbp-gateway/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleDocs is a small collection with one broken link, one orphan, one
// untitled document and one empty document.
var sampleDocs = map[string]string{
	"README.md": "# Project\n\nStart with the [design](docs/design.md) and the [guide](docs/guide.md).\n",
	"docs/design.md": "# Design\n\n## Authentication\n\nAPI keys authenticate clients. See the [guide](guide.md#setup) and the " +
		"[missing page](missing.md).\n\n```go\nfunc ignored() {}\n```\n",
	"docs/guide.md":    "# Guide\n\n## Setup\n\nInstall the server and configure authentication keys.\n",
	"docs/notes.md":    "Loose notes without a heading.\n",
	"docs/empty.md":    "",
	"docs/diagram.png": "not markdown",
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

type fixture struct {
	root      string
	container *Container
	docs      *DocStore
	meta      *MetadataExtractor
	rel       *Relationships
	analyzer  *ConsistencyAnalyzer
	recs      *RecommendationGenerator
	coord     *KeywordCoordinator
	store     *store.MockStore
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := writeDocs(t, files)
	s := store.NewMockStore()
	c := NewContainer(testLogger())
	require.NoError(t, RegisterDefaults(c, DocStoreConfig{Root: root}, s, testLogger()))
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	f := &fixture{root: root, container: c, store: s}
	get := func(name string) Component {
		comp, ok := c.Get(name)
		require.True(t, ok, name)
		return comp
	}
	f.docs = get(NameDocumentation).(*DocStore)
	f.meta = get(NameMetadataExtraction).(*MetadataExtractor)
	f.rel = get(NameDocRelationships).(*Relationships)
	f.analyzer = get(NameConsistencyAnalysis).(*ConsistencyAnalyzer)
	f.recs = get(NameRecommendationGenerator).(*RecommendationGenerator)
	f.coord = get(NameCoordinator).(*KeywordCoordinator)
	return f
}
