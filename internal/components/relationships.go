// ABOUTME: Relationships builds the directed link graph between documents.
// ABOUTME: The graph is rebuilt only when the document store reports a change.

package components

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
)

// Edge is a link from one document to another.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text,omitempty"`
	Broken bool   `json:"broken,omitempty"`
}

// Graph is the link graph of the whole collection.
type Graph struct {
	Documents []string `json:"documents"`
	Edges     []Edge   `json:"edges"`
}

// DocumentRelations lists the edges touching one document.
type DocumentRelations struct {
	Path     string `json:"path"`
	Outgoing []Edge `json:"outgoing"`
	Incoming []Edge `json:"incoming"`
}

// versioned is implemented by sources that can report changes.
type versioned interface {
	Version() uint64
}

// Relationships computes links between documents.
type Relationships struct {
	Lifecycle

	docs   DocumentSource
	meta   *MetadataExtractor
	logger *slog.Logger

	mu      sync.Mutex
	graph   *Graph
	version uint64
}

// NewRelationships creates a link graph over docs using meta for parsing.
func NewRelationships(docs DocumentSource, meta *MetadataExtractor, logger *slog.Logger) *Relationships {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relationships{
		docs:   docs,
		meta:   meta,
		logger: logger.With("component", NameDocRelationships),
	}
}

// Name implements Component.
func (r *Relationships) Name() string { return NameDocRelationships }

// Graph returns the full link graph. Results are reused until the document
// source reports a new version; sources without versions are rebuilt every
// call.
func (r *Relationships) Graph(ctx context.Context) (*Graph, error) {
	v, canCache := r.sourceVersion()

	r.mu.Lock()
	defer r.mu.Unlock()

	if canCache && r.graph != nil && r.version == v {
		return r.graph, nil
	}

	metas, err := r.meta.ExtractAll(ctx)
	if err != nil {
		return nil, err
	}

	g := &Graph{Documents: make([]string, 0, len(metas)), Edges: []Edge{}}
	for _, m := range metas {
		g.Documents = append(g.Documents, m.Path)
	}
	for _, m := range metas {
		for _, l := range m.Links {
			if l.Target == "" {
				continue
			}
			g.Edges = append(g.Edges, Edge{
				From:   m.Path,
				To:     l.Target,
				Text:   l.Text,
				Broken: !slices.Contains(g.Documents, l.Target),
			})
		}
	}

	r.graph = g
	r.version = v
	r.logger.Debug("link graph built", "documents", len(g.Documents), "edges", len(g.Edges))
	return g, nil
}

// ForDocument returns incoming and outgoing edges for docPath.
func (r *Relationships) ForDocument(ctx context.Context, docPath string) (*DocumentRelations, error) {
	doc, err := r.docs.Read(ctx, docPath)
	if err != nil {
		return nil, err
	}
	g, err := r.Graph(ctx)
	if err != nil {
		return nil, err
	}

	rel := &DocumentRelations{Path: doc.Path, Outgoing: []Edge{}, Incoming: []Edge{}}
	for _, e := range g.Edges {
		if e.From == doc.Path {
			rel.Outgoing = append(rel.Outgoing, e)
		}
		if e.To == doc.Path {
			rel.Incoming = append(rel.Incoming, e)
		}
	}
	return rel, nil
}

func (r *Relationships) sourceVersion() (uint64, bool) {
	if v, ok := r.docs.(versioned); ok {
		if w, ok := r.docs.(interface{ Watching() bool }); ok && !w.Watching() {
			return 0, false
		}
		return v.Version(), true
	}
	return 0, false
}

// ResolveLink resolves a link destination found in from to a document path.
// It returns "" for external links, bare fragments and non-markdown targets.
func ResolveLink(from, dest string) string {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return ""
	}
	p := u.Path
	if !isMarkdown(p) {
		return ""
	}
	if strings.HasPrefix(p, "/") {
		p = path.Clean(strings.TrimPrefix(p, "/"))
	} else {
		p = path.Clean(path.Join(path.Dir(from), p))
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}
