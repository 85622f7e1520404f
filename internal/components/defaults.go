// ABOUTME: Registers the reference documentation services with a container.
// ABOUTME: Dependencies are wired here so callers only supply config and a store.

package components

import (
	"log/slog"

	"github.com/2389/dbp-gateway/internal/store"
)

// RegisterDefaults builds the reference services over one DocStore and
// registers them with c in dependency order.
func RegisterDefaults(c *Container, docsCfg DocStoreConfig, s store.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if docsCfg.Logger == nil {
		docsCfg.Logger = logger
	}

	docs := NewDocStore(docsCfg)
	meta := NewMetadataExtractor(docs, logger)
	rel := NewRelationships(docs, meta, logger)
	analyzer := NewConsistencyAnalyzer(docs, meta, rel, logger)

	for _, comp := range []Component{
		docs,
		meta,
		rel,
		analyzer,
		NewRecommendationGenerator(analyzer, s, logger),
		NewKeywordCoordinator(docs, meta, logger),
	} {
		if err := c.Register(comp); err != nil {
			return err
		}
	}
	return nil
}
