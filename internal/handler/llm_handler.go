package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"study-rag/internal/ollama"
	apperr "study-rag/internal/pkg/errors"
)

type LLMHandler struct {
	client *ollama.Client
}

func NewLLMHandler(client *ollama.Client) *LLMHandler {
	return &LLMHandler{client: client}
}

type LLMQueryRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Model  string `json:"model"`
}

type LLMQueryResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	ModelUsed string `json:"model_used"`
}

// Query is the direct-generation endpoint; it bypasses retrieval.
func (h *LLMHandler) Query(c *gin.Context) {
	var req LLMQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return
	}

	result, err := h.client.Generate(c.Request.Context(), req.Prompt, req.Model)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, LLMQueryResponse{
		Success:   true,
		Response:  result.Response,
		ModelUsed: result.Model,
	})
}

func (h *LLMHandler) Models(c *gin.Context) {
	models, err := h.client.ListModels(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if models == nil {
		models = []ollama.ModelInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models, "total_models": len(models)})
}

func (h *LLMHandler) Ensure(c *gin.Context) {
	model := c.Param("model")
	if model == "" {
		handleError(c, fmt.Errorf("%w: model name is required", apperr.ErrValidation))
		return
	}
	if err := h.client.Ensure(c.Request.Context(), model); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Model %q is available", model)})
}

func (h *LLMHandler) Status(c *gin.Context) {
	available := h.client.Healthy(c.Request.Context())
	info := gin.H{
		"service":       "ollama",
		"base_url":      h.client.BaseURL(),
		"default_model": h.client.DefaultModel(),
		"is_available":  available,
	}
	if available {
		if models, err := h.client.ListModels(c.Request.Context()); err == nil {
			names := make([]string, 0, len(models))
			for _, m := range models {
				names = append(names, m.Name)
			}
			info["available_models"] = names
			info["total_models"] = len(names)
		}
	}
	c.JSON(http.StatusOK, info)
}

func (h *LLMHandler) Health(c *gin.Context) {
	available := h.client.Healthy(c.Request.Context())
	status := "healthy"
	if !available {
		status = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{"service": "llm", "status": status, "is_available": available})
}
