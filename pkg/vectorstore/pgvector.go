package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-regassist-be/pkg/embedding"
	"ai-regassist-be/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentChunk is the persisted embedding row for one corpus chunk
type DocumentChunk struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Content   string          `gorm:"type:text;not null"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt time.Time
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// PgVectorIndex runs similarity search over the document_chunks table.
// The ingestion script that fills the table is external to this service.
type PgVectorIndex struct {
	db       *gorm.DB
	embedder embedding.EmbeddingProvider
	topK     int
	logger   *log.Logger
}

// Ensure PgVectorIndex implements VectorIndex
var _ VectorIndex = &PgVectorIndex{}

func NewPgVectorIndex(db *gorm.DB, embedder embedding.EmbeddingProvider, topK int, logger *log.Logger) *PgVectorIndex {
	if topK <= 0 {
		topK = 5
	}
	return &PgVectorIndex{
		db:       db,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Search embeds the query and returns the nearest chunks by cosine
// similarity, best first.
func (idx *PgVectorIndex) Search(ctx context.Context, query string) ([]store.Document, error) {
	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	type result struct {
		DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	err = idx.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Order("similarity DESC").
		Limit(idx.topK).
		Scan(&results).Error
	if err != nil {
		idx.logger.Printf("[ERROR] Vector search failed: %v", err)
		return nil, err
	}

	documents := make([]store.Document, 0, len(results))
	for _, res := range results {
		metadata := map[string]interface{}{}
		if len(res.Metadata) > 0 {
			if err := json.Unmarshal(res.Metadata, &metadata); err != nil {
				idx.logger.Printf("[WARN] Failed to decode chunk metadata %s: %v", res.ID, err)
			}
		}
		documents = append(documents, store.Document{
			Content:  res.Content,
			Metadata: metadata,
		})
	}

	idx.logger.Printf("[SEARCH] Query returned %d chunks", len(documents))
	return documents, nil
}
