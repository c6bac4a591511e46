package models

import "time"

// UploadedFile is the file store's view of one stored document. The ID is
// the stored (sanitized, disambiguated) filename, so it stays valid across
// process restarts without a separate metadata table.
type UploadedFile struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	StoredPath string    `json:"file_path"`
	Extension  string    `json:"extension"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is one bounded span of extracted text, the unit of retrieval.
// Indices are assigned in order during ingestion, with no gaps.
type Chunk struct {
	ID      string
	FileID  string
	Index   int
	Content string
}

// RelevantChunk is a retrieved chunk with its cosine similarity score.
type RelevantChunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// SearchResults holds everything retrieval produced for one query.
type SearchResults struct {
	Query   string          `json:"query"`
	Context string          `json:"context"`
	Chunks  []RelevantChunk `json:"relevant_chunks"`
	Sources []string        `json:"sources"`
}

// QueryRequest is one RAG query as seen by the orchestrator.
type QueryRequest struct {
	Prompt string
	TopK   int
	Model  string
	UseLLM bool
}

// QueryResult is the orchestrator's answer. Answer and ModelUsed are only
// set when generation was requested and succeeded.
type QueryResult struct {
	SearchResults
	Answer    string
	ModelUsed string
}
