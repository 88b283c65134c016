package driven

import "github.com/weave-nn/weaver/internal/core/domain"

// FactExtractor derives structural facts from file content.
type FactExtractor interface {
	// ContentHash returns a stable digest of content.
	ContentHash(content []byte) string

	// Extract parses content into facts. It never fails: malformed content
	// yields empty facts carrying only the content hash.
	Extract(path string, content []byte) domain.Facts
}
