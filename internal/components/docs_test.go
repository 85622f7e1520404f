// ABOUTME: Tests for DocStore reading, confinement, caching, rendering and watching.
// ABOUTME: Uses temporary directories; watcher tests poll until the event lands.

package components

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

func newDocStore(t *testing.T, cfg DocStoreConfig) *DocStore {
	t.Helper()
	cfg.Logger = testLogger()
	d := NewDocStore(cfg)
	require.NoError(t, d.Initialize(context.Background()))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDocStoreList(t *testing.T) {
	root := writeDocs(t, sampleDocs)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD.md"), []byte("x"), 0o644))
	d := newDocStore(t, DocStoreConfig{Root: root})

	paths, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"README.md",
		"docs/design.md",
		"docs/empty.md",
		"docs/guide.md",
		"docs/notes.md",
	}, paths)
}

func TestDocStoreListEmptyRoot(t *testing.T) {
	d := newDocStore(t, DocStoreConfig{Root: t.TempDir()})
	paths, err := d.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
}

func TestDocStoreRead(t *testing.T) {
	d := newDocStore(t, DocStoreConfig{Root: writeDocs(t, sampleDocs)})
	ctx := context.Background()

	doc, err := d.Read(ctx, "./docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/guide.md", doc.Path)
	assert.Equal(t, int64(len(sampleDocs["docs/guide.md"])), doc.Size)
	assert.Contains(t, string(doc.Content), "# Guide")

	doc, err = d.Read(ctx, "docs/../README.md")
	require.NoError(t, err)
	assert.Equal(t, "README.md", doc.Path)
}

func TestDocStoreReadErrors(t *testing.T) {
	root := writeDocs(t, sampleDocs)
	outside := filepath.Join(t.TempDir(), "secret.md")
	require.NoError(t, os.WriteFile(outside, []byte("# Secret"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link.md")))

	d := newDocStore(t, DocStoreConfig{Root: root})
	ctx := context.Background()

	_, err := d.Read(ctx, "docs/missing.md")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	for _, p := range []string{"../secret.md", "/etc/passwd.md", "docs/../../x.md", "link.md"} {
		_, err := d.Read(ctx, p)
		assert.ErrorIs(t, err, fs.ErrPermission, p)
	}

	var invalid *mcperr.InvalidParametersError
	for _, p := range []string{"", "docs/diagram.png", "docs"} {
		_, err := d.Read(ctx, p)
		assert.ErrorAs(t, err, &invalid, p)
	}
}

func TestDocStoreNotInitialized(t *testing.T) {
	d := NewDocStore(DocStoreConfig{Root: t.TempDir()})
	_, err := d.Read(context.Background(), "a.md")

	var notFound *mcperr.ComponentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, notFound.NotInitialized)
}

func TestDocStoreCachesUntilInvalidated(t *testing.T) {
	root := writeDocs(t, map[string]string{"a.md": "# One\n"})
	d := newDocStore(t, DocStoreConfig{Root: root})
	ctx := context.Background()

	doc, err := d.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "# One\n", string(doc.Content))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# Two\n"), 0o644))

	doc, err = d.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "# One\n", string(doc.Content), "served from cache")

	before := d.Version()
	d.Invalidate("a.md")
	assert.Greater(t, d.Version(), before)

	doc, err = d.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "# Two\n", string(doc.Content))
}

func TestDocStoreSkipsFillAfterConcurrentInvalidate(t *testing.T) {
	root := writeDocs(t, map[string]string{"a.md": "# One\n"})
	d := newDocStore(t, DocStoreConfig{Root: root})

	started := d.Version()
	d.Invalidate("a.md")

	filled := false
	d.fillIfCurrent(started, func() { filled = true })
	assert.False(t, filled, "fill computed before the invalidation must be dropped")

	d.fillIfCurrent(d.Version(), func() { filled = true })
	assert.True(t, filled)

	// A read after the invalidation still caches normally.
	_, err := d.Read(context.Background(), "a.md")
	require.NoError(t, err)
	_, ok := d.docs.Get("a.md")
	assert.True(t, ok)
}

func TestDocStoreRenderHTML(t *testing.T) {
	d := newDocStore(t, DocStoreConfig{Root: writeDocs(t, sampleDocs)})

	out, err := d.RenderHTML(context.Background(), "docs/design.md")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="design">Design</h1>`)
	assert.Contains(t, out, `<a href="guide.md#setup">guide</a>`)
	assert.Contains(t, out, `<pre><code class="language-go">`)

	_, err = d.RenderHTML(context.Background(), "docs/missing.md")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDocStoreWatcherInvalidates(t *testing.T) {
	root := writeDocs(t, map[string]string{"a.md": "# One\n"})
	d := newDocStore(t, DocStoreConfig{Root: root, Watch: true})
	require.True(t, d.Watching())
	ctx := context.Background()

	_, err := d.Read(ctx, "a.md")
	require.NoError(t, err)
	paths, err := d.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.md"}, paths)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# Two\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("# Bee\n"), 0o644))

	require.Eventually(t, func() bool {
		doc, err := d.Read(ctx, "a.md")
		return err == nil && string(doc.Content) == "# Two\n"
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		paths, err := d.List(ctx)
		return err == nil && len(paths) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDocStoreInitializeMissingRoot(t *testing.T) {
	d := NewDocStore(DocStoreConfig{Root: filepath.Join(t.TempDir(), "nope")})
	err := d.Initialize(context.Background())

	var cfgErr *mcperr.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		from, dest, want string
	}{
		{"docs/design.md", "guide.md", "docs/guide.md"},
		{"docs/design.md", "guide.md#setup", "docs/guide.md"},
		{"docs/design.md", "../README.md", "README.md"},
		{"docs/design.md", "/docs/guide.md", "docs/guide.md"},
		{"README.md", "../outside.md", ""},
		{"README.md", "https://example.com/a.md", ""},
		{"README.md", "#section", ""},
		{"README.md", "image.png", ""},
		{"README.md", "mailto:someone@example.com", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveLink(tt.from, tt.dest), "%s -> %s", tt.from, tt.dest)
	}
}
