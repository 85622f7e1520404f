// ABOUTME: DocStore serves markdown documents from a directory confined by os.Root.
// ABOUTME: Raw and rendered documents are cached and invalidated by an fsnotify watcher.

package components

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/2389/dbp-gateway/internal/cache"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Document is a markdown file read from the docs root.
type Document struct {
	Path    string    `json:"path"`
	Content []byte    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DocumentSource is the read side of a document collection.
type DocumentSource interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, docPath string) (*Document, error)
}

// DocStoreConfig configures a DocStore.
type DocStoreConfig struct {
	Root      string
	Watch     bool
	CacheTTL  time.Duration // zero disables expiry
	CacheSize int           // zero means unbounded
	Logger    *slog.Logger
}

// DocStore reads documents under a root directory. Paths are always
// slash-separated and relative to the root.
type DocStore struct {
	Lifecycle

	cfg     DocStoreConfig
	absRoot string
	root    *os.Root
	docs    *cache.Cache[string, *Document]
	html    *cache.Cache[string, string]
	md      goldmark.Markdown
	logger  *slog.Logger
	version atomic.Uint64

	// cacheMu orders cache fills against Invalidate: a fill only lands when
	// the version it started from is still current.
	cacheMu   sync.Mutex
	listCache []string // nil when stale; only used while watching

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var markdownExtensions = []string{".md", ".markdown"}

// NewDocStore creates a DocStore. The root is opened during Initialize.
func NewDocStore(cfg DocStoreConfig) *DocStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DocStore{
		cfg:    cfg,
		docs:   cache.New[string, *Document](cfg.CacheTTL, cfg.CacheSize),
		html:   cache.New[string, string](cfg.CacheTTL, cfg.CacheSize),
		md:     newMarkdown(),
		logger: logger.With("component", NameDocumentation),
	}
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// Name implements Component.
func (d *DocStore) Name() string { return NameDocumentation }

// Initialize opens the root and starts the watcher when configured.
func (d *DocStore) Initialize(ctx context.Context) error {
	if d.cfg.Root == "" {
		return mcperr.Configuration("docs root is not set")
	}
	abs, err := filepath.Abs(d.cfg.Root)
	if err != nil {
		return &mcperr.ConfigurationError{Reason: "resolving docs root", Err: err}
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return &mcperr.ConfigurationError{Reason: "opening docs root " + abs, Err: err}
	}
	d.absRoot = abs
	d.root = root

	if d.cfg.Watch {
		if err := d.startWatcher(); err != nil {
			// Caches still expire by TTL without a watcher.
			d.logger.Warn("docs watcher unavailable", "error", err)
		}
	}
	d.logger.Info("documentation root opened", "root", abs, "watch", d.watcher != nil)
	return nil
}

// Close stops the watcher and releases the root.
func (d *DocStore) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	var errs []error
	if d.watcher != nil {
		errs = append(errs, d.watcher.Close())
	}
	d.wg.Wait()
	d.docs.Close()
	d.html.Close()
	if d.root != nil {
		errs = append(errs, d.root.Close())
	}
	return errors.Join(errs...)
}

// Root returns the absolute docs root.
func (d *DocStore) Root() string { return d.absRoot }

// Version increases every time the watcher observes a change. Consumers that
// derive data from many documents compare versions to detect staleness.
func (d *DocStore) Version() uint64 { return d.version.Load() }

// List returns every markdown document path in lexical order. Hidden
// directories are skipped.
func (d *DocStore) List(ctx context.Context) ([]string, error) {
	if d.root == nil {
		return nil, &mcperr.ComponentNotFoundError{Name: NameDocumentation, NotInitialized: true}
	}
	if d.watcher != nil {
		d.cacheMu.Lock()
		cached := d.listCache
		d.cacheMu.Unlock()
		if cached != nil {
			return slices.Clone(cached), nil
		}
	}

	version := d.Version()
	var paths []string
	err := fs.WalkDir(d.root.FS(), ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if p != "." && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if isMarkdown(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}

	if d.watcher != nil {
		d.fillIfCurrent(version, func() { d.listCache = slices.Clone(paths) })
	}
	return paths, nil
}

// Read returns the document at docPath. Paths that leave the root fail with
// fs.ErrPermission; absent documents fail with fs.ErrNotExist.
func (d *DocStore) Read(ctx context.Context, docPath string) (*Document, error) {
	if d.root == nil {
		return nil, &mcperr.ComponentNotFoundError{Name: NameDocumentation, NotInitialized: true}
	}
	p, err := CleanDocPath(docPath)
	if err != nil {
		return nil, err
	}
	if doc, ok := d.docs.Get(p); ok {
		return doc, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := d.Version()
	info, err := d.root.Stat(p)
	if err != nil {
		return nil, rootError(p, err)
	}
	if info.IsDir() {
		return nil, mcperr.InvalidParameter("path", p+" is a directory")
	}
	content, err := d.root.ReadFile(p)
	if err != nil {
		return nil, rootError(p, err)
	}

	doc := &Document{Path: p, Content: content, Size: info.Size(), ModTime: info.ModTime().UTC()}
	d.fillIfCurrent(version, func() { d.docs.Set(p, doc) })
	return doc, nil
}

// RenderHTML renders the document at docPath to HTML.
func (d *DocStore) RenderHTML(ctx context.Context, docPath string) (string, error) {
	p, err := CleanDocPath(docPath)
	if err != nil {
		return "", err
	}
	if out, ok := d.html.Get(p); ok {
		return out, nil
	}
	version := d.Version()
	doc, err := d.Read(ctx, p)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := d.md.Convert(doc.Content, &buf); err != nil {
		return "", &mcperr.ExecutionError{Op: "rendering " + p, Err: err}
	}
	out := buf.String()
	d.fillIfCurrent(version, func() { d.html.Set(p, out) })
	return out, nil
}

// Invalidate drops cached state for docPath, or everything when docPath is
// empty.
func (d *DocStore) Invalidate(docPath string) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if docPath == "" {
		d.docs.Purge()
		d.html.Purge()
	} else {
		d.docs.Delete(docPath)
		d.html.Delete(docPath)
	}
	d.listCache = nil
	d.version.Add(1)
}

// fillIfCurrent runs fill unless an invalidation happened since version was
// read, so results computed from replaced files are never cached.
func (d *DocStore) fillIfCurrent(version uint64, fill func()) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if d.version.Load() == version {
		fill()
	}
}

// CleanDocPath normalizes a document path and rejects anything that is not a
// local, markdown path.
func CleanDocPath(docPath string) (string, error) {
	p := strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(docPath)), "./")
	if p == "" {
		return "", mcperr.InvalidParameter("path", "must not be empty")
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("document %q: %w", docPath, fs.ErrPermission)
	}
	p = path.Clean(p)
	if !isMarkdown(p) {
		return "", mcperr.InvalidParameter("path", "not a markdown document: "+p)
	}
	return p, nil
}

func isMarkdown(p string) bool {
	return slices.Contains(markdownExtensions, strings.ToLower(path.Ext(p)))
}

// rootError maps os.Root failures. Symlinks leading outside the root are
// reported by os.Root as an escape, which we surface as a permission error.
func rootError(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("document %s: %w", p, err)
	}
	if strings.Contains(err.Error(), "escapes from parent") {
		return fmt.Errorf("document %s: %w", p, fs.ErrPermission)
	}
	return fmt.Errorf("document %s: %w", p, err)
}

func (d *DocStore) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(d.absRoot, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if p != d.absRoot && strings.HasPrefix(entry.Name(), ".") {
			return fs.SkipDir
		}
		return w.Add(p)
	})
	if err != nil {
		_ = w.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.watcher = w
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.watch(ctx, w)
	}()
	return nil
}

func (d *DocStore) watch(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			d.handleEvent(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			d.logger.Debug("docs watcher error", "error", err)
		}
	}
}

func (d *DocStore) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(d.absRoot, ev.Name)
	if err != nil || !filepath.IsLocal(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.Add(ev.Name); err != nil {
				d.logger.Debug("watching new directory failed", "dir", rel, "error", err)
			}
			d.Invalidate("")
			return
		}
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A removed directory takes its documents with it.
		d.Invalidate("")
	case isMarkdown(rel):
		d.Invalidate(rel)
	default:
		return
	}
	d.logger.Debug("document changed", "path", rel, "op", ev.Op.String())
}

// Watching reports whether the store is invalidated by filesystem events.
func (d *DocStore) Watching() bool { return d.watcher != nil }
