package vectorstore

import (
	"context"
	"fmt"

	"study-rag/internal/config"
)

// Record is one chunk embedding bound for the index.
type Record struct {
	ID        string
	FileID    string
	Index     int
	Content   string
	Embedding []float32
	// Model is the embedding model that produced the vector; kept so a
	// model change does not silently mix incompatible vectors.
	Model string
}

// Result is one nearest-neighbor hit, highest cosine similarity first.
type Result struct {
	ChunkID  string
	FileID   string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store is the sole authority for similarity ranking; callers never
// recompute scores.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	DeleteByFile(ctx context.Context, fileID string) error
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// New builds the configured backend: the embedded chromem store by
// default, or a pgvector table when rag.vector_store is "postgres".
func New(cfg *config.Config) (Store, error) {
	switch cfg.RAG.VectorStore {
	case "", "chromem":
		return NewChromemStore(cfg.RAG.ChromemPath, cfg.RAG.CollectionName, false)
	case "postgres":
		return NewPostgresStore(&cfg.Database, cfg.RAG.EmbeddingDimensions)
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.RAG.VectorStore)
	}
}
