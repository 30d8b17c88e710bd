package vectorstore

import (
	"context"

	"ai-regassist-be/pkg/store"
)

// VectorIndex is the retrieval contract consumed by the fusion engine.
// Search returns documents ordered by relevance for a single query.
type VectorIndex interface {
	Search(ctx context.Context, query string) ([]store.Document, error)
}
