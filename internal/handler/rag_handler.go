package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"study-rag/internal/models"
	apperr "study-rag/internal/pkg/errors"
	"study-rag/internal/rag"
)

type RAGHandler struct {
	rag *rag.Service
}

func NewRAGHandler(rag *rag.Service) *RAGHandler {
	return &RAGHandler{rag: rag}
}

type SearchRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	NResults int    `json:"n_results" binding:"omitempty,gte=1,lte=20"`
	Model    string `json:"model"`
	UseLLM   *bool  `json:"use_llm"`
}

type QueryRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	NResults int    `json:"n_results" binding:"omitempty,gte=1,lte=20"`
	Model    string `json:"model"`
}

type SearchResponse struct {
	Success         bool                   `json:"success"`
	Query           string                 `json:"query"`
	Answer          string                 `json:"answer,omitempty"`
	ModelUsed       string                 `json:"model_used,omitempty"`
	GenerationError string                 `json:"generation_error,omitempty"`
	Context         string                 `json:"context"`
	NChunksFound    int                    `json:"n_chunks_found"`
	RelevantChunks  []models.RelevantChunk `json:"relevant_chunks"`
	Sources         []string               `json:"sources"`
}

func searchResponse(result models.QueryResult) SearchResponse {
	resp := SearchResponse{
		Success:        true,
		Query:          result.Query,
		Answer:         result.Answer,
		ModelUsed:      result.ModelUsed,
		Context:        result.Context,
		NChunksFound:   len(result.Chunks),
		RelevantChunks: result.Chunks,
		Sources:        result.Sources,
	}
	if resp.RelevantChunks == nil {
		resp.RelevantChunks = []models.RelevantChunk{}
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	return resp
}

// Search runs retrieval with optional generation. A model failure after
// successful retrieval degrades to a retrieval-only response carrying a
// generation_error marker instead of dropping the chunks.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return
	}
	useLLM := req.UseLLM == nil || *req.UseLLM

	result, err := h.rag.Query(c.Request.Context(), models.QueryRequest{
		Prompt: req.Prompt,
		TopK:   req.NResults,
		Model:  req.Model,
		UseLLM: useLLM,
	})
	if err != nil {
		// Degrade only when generation was requested and failed after a
		// completed retrieval (result carries the search output then).
		// Failures before retrieval keep their taxonomy mapping.
		if useLLM && result.Query != "" &&
			(errors.Is(err, apperr.ErrModelGeneration) || errors.Is(err, apperr.ErrModelUnavailable)) {
			resp := searchResponse(result)
			resp.GenerationError = err.Error()
			c.JSON(http.StatusOK, resp)
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse(result))
}

// Query is the strict variant: generation is mandatory and its failure
// fails the request.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return
	}

	result, err := h.rag.Query(c.Request.Context(), models.QueryRequest{
		Prompt: req.Prompt,
		TopK:   req.NResults,
		Model:  req.Model,
		UseLLM: true,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse(result))
}

func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.rag.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"collection_name": stats.CollectionName,
		"document_count":  stats.DocumentCount,
		"embedding_model": stats.EmbeddingModel,
	})
}

func (h *RAGHandler) Reset(c *gin.Context) {
	if err := h.rag.Reset(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Collection reset successfully"})
}

func (h *RAGHandler) Health(c *gin.Context) {
	available := h.rag.Available(c.Request.Context())
	status := "healthy"
	if !available {
		status = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{"service": "rag", "status": status, "is_available": available})
}
