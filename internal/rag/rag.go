package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"study-rag/internal/chunker"
	"study-rag/internal/extractor"
	"study-rag/internal/filestore"
	"study-rag/internal/models"
	"study-rag/internal/ollama"
	apperr "study-rag/internal/pkg/errors"
	"study-rag/internal/vectorstore"
)

// Embedder is what the orchestrator needs from an embedding model; the
// langchaingo ollama embedder satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the completion side of the model client.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (ollama.GenerateResult, error)
}

// Service coordinates ingestion and querying. It is stateless per call;
// the only cross-request state is the per-file lock table that serializes
// ingestion and deletion of the same file. Lock entries are reference
// counted and removed when the last holder releases them, so the table
// does not grow with the number of file ids ever seen.
type Service struct {
	store          *filestore.Store
	splitter       *chunker.Splitter
	embedder       Embedder
	index          vectorstore.Store
	llm            Generator
	embeddingModel string
	collectionName string
	maxChunks      int

	mu        sync.Mutex
	fileLocks map[string]*fileLock
}

type fileLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store *filestore.Store, splitter *chunker.Splitter, embedder Embedder,
	index vectorstore.Store, llm Generator, embeddingModel, collectionName string, maxChunks int) *Service {
	if maxChunks <= 0 {
		maxChunks = 5
	}
	return &Service{
		store:          store,
		splitter:       splitter,
		embedder:       embedder,
		index:          index,
		llm:            llm,
		embeddingModel: embeddingModel,
		collectionName: collectionName,
		maxChunks:      maxChunks,
		fileLocks:      make(map[string]*fileLock),
	}
}

func (s *Service) lockFile(id string) *fileLock {
	s.mu.Lock()
	l, ok := s.fileLocks[id]
	if !ok {
		l = &fileLock{}
		s.fileLocks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Service) unlockFile(id string, l *fileLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.fileLocks, id)
	}
	s.mu.Unlock()
}

// Ingest extracts, chunks, embeds and indexes one stored file, returning
// the number of chunks indexed. Ingestion is all-or-nothing: any failure
// rolls the file's vectors and the stored file itself back, so no partial
// state survives a failed upload.
func (s *Service) Ingest(ctx context.Context, file models.UploadedFile) (int, error) {
	lock := s.lockFile(file.ID)
	defer s.unlockFile(file.ID, lock)

	n, err := s.ingest(ctx, file)
	if err != nil {
		if derr := s.index.DeleteByFile(ctx, file.ID); derr != nil {
			log.Error().Err(derr).Str("file_id", file.ID).Msg("Rollback of index state failed")
		}
		if derr := s.store.Delete(file.ID); derr != nil && !apperr.IsNotFound(derr) {
			log.Error().Err(derr).Str("file_id", file.ID).Msg("Rollback of stored file failed")
		}
		return 0, err
	}
	return n, nil
}

func (s *Service) ingest(ctx context.Context, file models.UploadedFile) (int, error) {
	text, err := extractor.Extract(file.StoredPath)
	if err != nil {
		return 0, err
	}

	spans, err := s.splitter.Split(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrExtractionFailed, err)
	}
	if len(spans) == 0 {
		return 0, fmt.Errorf("%w: no text content", apperr.ErrExtractionFailed)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, spans)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding: %v", apperr.ErrModelUnavailable, err)
	}
	if len(vectors) != len(spans) {
		return 0, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", apperr.ErrModelUnavailable, len(vectors), len(spans))
	}

	records := make([]vectorstore.Record, len(spans))
	for i, span := range spans {
		records[i] = vectorstore.Record{
			ID:        fmt.Sprintf("%s_%d", file.ID, i),
			FileID:    file.ID,
			Index:     i,
			Content:   span,
			Embedding: vectors[i],
			Model:     s.embeddingModel,
		}
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return 0, err
	}

	log.Info().Str("file_id", file.ID).Int("chunks", len(records)).Msg("File ingested")
	return len(records), nil
}

// Delete removes a file's vectors, then the file itself. The vectors go
// first so a failure can never leave orphaned entries in the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	lock := s.lockFile(id)
	defer s.unlockFile(id, lock)

	if _, err := s.store.Get(id); err != nil {
		return err
	}
	if err := s.index.DeleteByFile(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(id)
}

// Search embeds the query and retrieves the top-k chunks, assembling the
// context string used for generation. k is capped by the configured
// context budget.
func (s *Service) Search(ctx context.Context, query string, k int) (models.SearchResults, error) {
	if k <= 0 || k > s.maxChunks {
		k = s.maxChunks
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return models.SearchResults{}, fmt.Errorf("%w: embedding: %v", apperr.ErrModelUnavailable, err)
	}

	hits, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return models.SearchResults{}, err
	}

	results := models.SearchResults{Query: query}
	seen := make(map[string]bool)
	for i, hit := range hits {
		results.Chunks = append(results.Chunks, models.RelevantChunk{
			Content:  hit.Content,
			Metadata: hit.Metadata,
			Score:    hit.Score,
		})
		if hit.FileID != "" && !seen[hit.FileID] {
			seen[hit.FileID] = true
			results.Sources = append(results.Sources, hit.FileID)
		}
		if i > 0 {
			results.Context += models.ContextSeparator
		}
		results.Context += fmt.Sprintf(models.ContextBlockTemplate, i+1, hit.FileID, hit.Content)
	}
	if len(hits) == 0 {
		results.Context = models.NoContextFound
	}
	return results, nil
}

// Query runs retrieval and, when requested, generation. Zero retrieved
// chunks is not an error: generation falls back to the bare prompt. When
// generation itself fails, the retrieved chunks are still returned along
// with the error so the caller can degrade instead of losing them.
func (s *Service) Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	search, err := s.Search(ctx, req.Prompt, req.TopK)
	if err != nil {
		return models.QueryResult{}, err
	}

	result := models.QueryResult{SearchResults: search}
	if !req.UseLLM {
		return result, nil
	}

	prompt := req.Prompt
	if len(search.Chunks) > 0 {
		prompt = fmt.Sprintf(models.RAGPromptTemplate, search.Context, req.Prompt)
	}

	gen, err := s.llm.Generate(ctx, prompt, req.Model)
	if err != nil {
		log.Error().Err(err).Str("model", req.Model).Msg("Generation failed after retrieval")
		return result, err
	}
	result.Answer = gen.Response
	result.ModelUsed = gen.Model
	return result, nil
}

// Stats describes the collection for the stats endpoint.
type Stats struct {
	CollectionName string `json:"collection_name"`
	DocumentCount  int    `json:"document_count"`
	EmbeddingModel string `json:"embedding_model"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		CollectionName: s.collectionName,
		DocumentCount:  count,
		EmbeddingModel: s.embeddingModel,
	}, nil
}

// Reset drops every chunk from the index.
func (s *Service) Reset(ctx context.Context) error {
	return s.index.Reset(ctx)
}

// Available reports whether the index answers a count request.
func (s *Service) Available(ctx context.Context) bool {
	_, err := s.index.Count(ctx)
	return err == nil
}
