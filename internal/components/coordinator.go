// ABOUTME: QueryCoordinator contract and a keyword-scoring implementation.
// ABOUTME: Scores documents by term frequency with title and heading boosts.

package components

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// QueryMatch is one document relevant to a query.
type QueryMatch struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// QueryResult answers a free-text query.
type QueryResult struct {
	Query   string       `json:"query"`
	Answer  string       `json:"answer"`
	Matches []QueryMatch `json:"matches"`
}

// QueryCoordinator answers free-text questions about the documentation.
// Model-backed coordinators implement the same contract.
type QueryCoordinator interface {
	Component
	Query(ctx context.Context, query string, limit int) (*QueryResult, error)
}

const (
	titleBoost   = 3.0
	headingBoost = 2.0
	maxSnippet   = 160
)

// KeywordCoordinator ranks documents by keyword overlap.
type KeywordCoordinator struct {
	Lifecycle

	meta   *MetadataExtractor
	docs   DocumentSource
	logger *slog.Logger
}

// NewKeywordCoordinator creates a coordinator over docs.
func NewKeywordCoordinator(docs DocumentSource, meta *MetadataExtractor, logger *slog.Logger) *KeywordCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordCoordinator{
		docs:   docs,
		meta:   meta,
		logger: logger.With("component", NameCoordinator),
	}
}

// Name implements Component.
func (k *KeywordCoordinator) Name() string { return NameCoordinator }

// Query returns up to limit matches, best first. Ties break by path.
func (k *KeywordCoordinator) Query(ctx context.Context, query string, limit int) (*QueryResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, mcperr.InvalidParameter("query", "no searchable terms")
	}

	paths, err := k.docs.List(ctx)
	if err != nil {
		return nil, err
	}

	matches := []QueryMatch{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := k.docs.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		meta := k.meta.Parse(doc.Path, doc.Content)
		score := scoreDocument(terms, doc.Content, meta)
		if score == 0 {
			continue
		}
		matches = append(matches, QueryMatch{
			Path:    doc.Path,
			Title:   meta.Title,
			Score:   score,
			Snippet: snippet(doc.Content, terms),
		})
	}

	slices.SortFunc(matches, func(a, b QueryMatch) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	res := &QueryResult{Query: query, Matches: matches, Answer: summarize(matches)}
	k.logger.Debug("query answered", "terms", len(terms), "matches", len(matches))
	return res, nil
}

func scoreDocument(terms []string, content []byte, meta *Metadata) float64 {
	words := tokenize(string(content))
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	title := tokenize(meta.Title)
	var headings []string
	for _, h := range meta.Headings {
		headings = append(headings, tokenize(h.Text)...)
	}

	var score float64
	for _, t := range terms {
		score += float64(counts[t])
		if slices.Contains(title, t) {
			score += titleBoost
		}
		if slices.Contains(headings, t) {
			score += headingBoost
		}
	}
	return score
}

// tokenize lowercases s and splits it into words of two or more letters or
// digits.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// snippet returns the first non-heading line mentioning any term.
func snippet(content []byte, terms []string) string {
	for line := range bytes.Lines(content) {
		text := strings.TrimSpace(string(line))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lower := strings.ToLower(text)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return truncate(text, maxSnippet)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func summarize(matches []QueryMatch) string {
	switch len(matches) {
	case 0:
		return "No documents matched the query."
	case 1:
		return fmt.Sprintf("Found 1 relevant document: %s.", label(matches[0]))
	default:
		return fmt.Sprintf("Found %d relevant documents; the best match is %s.", len(matches), label(matches[0]))
	}
}

func label(m QueryMatch) string {
	if m.Title != "" {
		return fmt.Sprintf("%q (%s)", m.Title, m.Path)
	}
	return m.Path
}

