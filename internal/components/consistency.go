// ABOUTME: ConsistencyAnalyzer checks documents for broken links, missing titles,
// ABOUTME: orphans and empty bodies, reporting per-document progress on the context.

package components

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/2389/dbp-gateway/internal/mcp"
)

// Finding kinds.
const (
	FindingBrokenLink    = "broken_link"
	FindingMissingTitle  = "missing_title"
	FindingOrphan        = "orphan"
	FindingEmptyDocument = "empty_document"
)

// Severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Finding is one consistency problem.
type Finding struct {
	Document string `json:"document"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Target   string `json:"target,omitempty"`
}

// ConsistencyReport is the outcome of an analysis run.
type ConsistencyReport struct {
	Documents  int       `json:"documents"`
	Findings   []Finding `json:"findings"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ConsistencyAnalyzer runs document checks.
type ConsistencyAnalyzer struct {
	Lifecycle

	docs   DocumentSource
	meta   *MetadataExtractor
	rel    *Relationships
	logger *slog.Logger
	now    func() time.Time
}

// NewConsistencyAnalyzer creates an analyzer.
func NewConsistencyAnalyzer(docs DocumentSource, meta *MetadataExtractor, rel *Relationships, logger *slog.Logger) *ConsistencyAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyAnalyzer{
		docs:   docs,
		meta:   meta,
		rel:    rel,
		logger: logger.With("component", NameConsistencyAnalysis),
		now:    time.Now,
	}
}

// Name implements Component.
func (a *ConsistencyAnalyzer) Name() string { return NameConsistencyAnalysis }

// Analyze checks the given documents, or every document when paths is
// empty. Orphans are judged against the whole collection.
func (a *ConsistencyAnalyzer) Analyze(ctx context.Context, paths []string) (*ConsistencyReport, error) {
	graph, err := a.rel.Graph(ctx)
	if err != nil {
		return nil, err
	}

	targets := graph.Documents
	if len(paths) > 0 {
		targets = make([]string, 0, len(paths))
		for _, p := range paths {
			doc, err := a.docs.Read(ctx, p)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(targets, doc.Path) {
				targets = append(targets, doc.Path)
			}
		}
	}

	incoming := make(map[string]int, len(graph.Documents))
	for _, e := range graph.Edges {
		if e.From != e.To {
			incoming[e.To]++
		}
	}

	report := &ConsistencyReport{Documents: len(targets), Findings: []Finding{}}
	total := float64(len(targets))
	for i, p := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := a.meta.Extract(ctx, p)
		if err != nil {
			return nil, err
		}
		report.Findings = append(report.Findings, a.check(meta, graph, incoming)...)
		mcp.ReportProgress(ctx, float64(i+1), total, "analyzed "+p)
	}

	report.AnalyzedAt = a.now().UTC()
	a.logger.Info("consistency analysis finished", "documents", report.Documents, "findings", len(report.Findings))
	return report, nil
}

func (a *ConsistencyAnalyzer) check(meta *Metadata, graph *Graph, incoming map[string]int) []Finding {
	var out []Finding

	if meta.WordCount == 0 {
		out = append(out, Finding{
			Document: meta.Path,
			Kind:     FindingEmptyDocument,
			Severity: SeverityWarning,
			Message:  "document has no content",
		})
	}
	if meta.Title == "" {
		out = append(out, Finding{
			Document: meta.Path,
			Kind:     FindingMissingTitle,
			Severity: SeverityWarning,
			Message:  "document has no heading to use as a title",
		})
	}
	for _, e := range graph.Edges {
		if e.From == meta.Path && e.Broken {
			out = append(out, Finding{
				Document: meta.Path,
				Kind:     FindingBrokenLink,
				Severity: SeverityError,
				Message:  fmt.Sprintf("link %q points to a missing document", e.Text),
				Target:   e.To,
			})
		}
	}
	if incoming[meta.Path] == 0 && !isEntryPoint(meta.Path) && len(graph.Documents) > 1 {
		out = append(out, Finding{
			Document: meta.Path,
			Kind:     FindingOrphan,
			Severity: SeverityInfo,
			Message:  "no other document links here",
		})
	}
	return out
}

// isEntryPoint reports whether p is a top-level landing page, which is
// expected to have no incoming links.
func isEntryPoint(p string) bool {
	if strings.Contains(p, "/") {
		return false
	}
	base := strings.ToLower(strings.TrimSuffix(p, path.Ext(p)))
	return base == "readme" || base == "index"
}
