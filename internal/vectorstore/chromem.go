package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	apperr "study-rag/internal/pkg/errors"
)

const compress = false

// ChromemStore wraps the embedded chromem-go database. One collection
// holds every chunk; per-file membership lives in document metadata so
// deletes can cascade by file id.
type ChromemStore struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
}

func NewChromemStore(dbPath, collectionName string, inMemory bool) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
		}
	}

	s := &ChromemStore{db: db, collectionName: collectionName}
	if err := s.ensureCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) ensureCollection() error {
	c, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	s.collection = c
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"file_id":         rec.FileID,
				"chunk_index":     strconv.Itoa(rec.Index),
				"embedding_model": rec.Model,
			},
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	// chromem rejects nResults above the collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			ChunkID:  r.ID,
			FileID:   r.Metadata["file_id"],
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

func (s *ChromemStore) DeleteByFile(ctx context.Context, fileID string) error {
	err := s.collection.Delete(ctx, map[string]string{"file_id": fileID}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	_ = ctx
	return s.collection.Count(), nil
}

// Reset drops and recreates the collection.
func (s *ChromemStore) Reset(ctx context.Context) error {
	_ = ctx
	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return s.ensureCollection()
}
