package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"study-rag/internal/middleware"
	apperr "study-rag/internal/pkg/errors"
	"study-rag/internal/pkg/response"
)

// handleError maps the service error taxonomy onto HTTP status codes and
// the structured error envelope.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.RequestIDKey)
	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Interface("request_id", requestID).
		Msg("Request failed")

	switch {
	case errors.Is(err, apperr.ErrValidation):
		response.Error(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperr.ErrUnsupportedFileType):
		response.Error(c, http.StatusBadRequest, "unsupported_file_type", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	case errors.Is(err, apperr.ErrExtractionFailed):
		response.Error(c, http.StatusUnprocessableEntity, "extraction_failed", err.Error())
	case errors.Is(err, apperr.ErrModelGeneration):
		response.Error(c, http.StatusBadGateway, "model_generation_error", err.Error())
	case errors.Is(err, apperr.ErrModelUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "model_service_unavailable", err.Error())
	case errors.Is(err, apperr.ErrIndexUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "index_unavailable", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
