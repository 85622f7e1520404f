// Package components holds the externally-owned services that tools reach
// through the adapter, plus the container that owns their lifecycle.
//
// Components register with a Container, are initialized together at
// startup, and report readiness through IsInitialized. The reference
// services here operate on a directory of markdown documents:
//
//   - DocStore reads documents through an os.Root and caches raw and
//     rendered content, invalidated by an fsnotify watcher.
//   - MetadataExtractor parses documents with goldmark.
//   - Relationships builds the link graph between documents.
//   - ConsistencyAnalyzer reports broken links, missing titles, orphans and
//     empty documents.
//   - RecommendationGenerator turns findings into stored recommendations.
//   - KeywordCoordinator answers free-text queries by keyword scoring.
package components
