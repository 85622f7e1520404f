// ABOUTME: MetadataExtractor derives titles, headings, links and word counts from markdown.
// ABOUTME: Parsing walks the goldmark AST directly rather than rendering.

package components

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is a section heading within a document.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// Link is a hyperlink found in a document.
type Link struct {
	Text        string `json:"text"`
	Destination string `json:"destination"`
	// Target is the resolved document path for links to other documents in
	// the same collection, empty for external links.
	Target string `json:"target,omitempty"`
}

// Metadata summarizes one document.
type Metadata struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Headings  []Heading `json:"headings"`
	Links     []Link    `json:"links"`
	WordCount int       `json:"word_count"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// MetadataExtractor parses documents from a DocumentSource.
type MetadataExtractor struct {
	Lifecycle

	docs   DocumentSource
	md     goldmark.Markdown
	logger *slog.Logger
}

// NewMetadataExtractor creates an extractor reading from docs.
func NewMetadataExtractor(docs DocumentSource, logger *slog.Logger) *MetadataExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataExtractor{
		docs:   docs,
		md:     newMarkdown(),
		logger: logger.With("component", NameMetadataExtraction),
	}
}

// Name implements Component.
func (m *MetadataExtractor) Name() string { return NameMetadataExtraction }

// Extract returns metadata for the document at docPath.
func (m *MetadataExtractor) Extract(ctx context.Context, docPath string) (*Metadata, error) {
	doc, err := m.docs.Read(ctx, docPath)
	if err != nil {
		return nil, err
	}
	meta := m.Parse(doc.Path, doc.Content)
	meta.Size = doc.Size
	meta.ModTime = doc.ModTime
	return meta, nil
}

// ExtractAll returns metadata for every document in listing order.
func (m *MetadataExtractor) ExtractAll(ctx context.Context) ([]*Metadata, error) {
	paths, err := m.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Metadata, 0, len(paths))
	for _, p := range paths {
		meta, err := m.Extract(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Parse extracts metadata from markdown source. The title is the first
// level-one heading, falling back to the first heading of any level.
func (m *MetadataExtractor) Parse(docPath string, source []byte) *Metadata {
	meta := &Metadata{Path: docPath, Headings: []Heading{}, Links: []Link{}}
	root := m.md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			h := Heading{Level: node.Level, Text: inlineText(node, source)}
			if id, ok := node.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.ID = string(b)
				}
			}
			meta.Headings = append(meta.Headings, h)
		case *ast.Link:
			dest := string(node.Destination)
			meta.Links = append(meta.Links, Link{
				Text:        inlineText(node, source),
				Destination: dest,
				Target:      ResolveLink(docPath, dest),
			})
		case *ast.Text:
			meta.WordCount += len(strings.Fields(string(node.Segment.Value(source))))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	meta.Title = pickTitle(meta.Headings)
	return meta
}

func pickTitle(headings []Heading) string {
	for _, h := range headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	if len(headings) > 0 {
		return headings[0].Text
	}
	return ""
}

// inlineText concatenates the literal text below n.
func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
