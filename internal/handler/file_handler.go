package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"study-rag/internal/filestore"
	"study-rag/internal/models"
	apperr "study-rag/internal/pkg/errors"
	"study-rag/internal/rag"
)

type FileHandler struct {
	store *filestore.Store
	rag   *rag.Service
}

func NewFileHandler(store *filestore.Store, rag *rag.Service) *FileHandler {
	return &FileHandler{store: store, rag: rag}
}

type UploadResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	ID            string              `json:"id"`
	Filename      string              `json:"filename"`
	ChunksIndexed int                 `json:"chunks_indexed"`
	FileInfo      models.UploadedFile `json:"file_info"`
}

type FileListResponse struct {
	Success    bool                  `json:"success"`
	Files      []models.UploadedFile `json:"files"`
	TotalFiles int                   `json:"total_files"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Upload validates, stores and ingests one document. A failed ingestion
// rolls the stored file back so upload-and-index stays atomic.
func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		handleError(c, fmt.Errorf("%w: multipart field \"file\" is required", apperr.ErrValidation))
		return
	}
	if _, err := filestore.ValidateFilename(fileHeader.Filename); err != nil {
		handleError(c, err)
		return
	}

	opened, err := fileHeader.Open()
	if err != nil {
		handleError(c, fmt.Errorf("%w: failed to open upload", apperr.ErrValidation))
		return
	}
	defer opened.Close()

	file, err := h.store.Save(fileHeader.Filename, opened)
	if err != nil {
		handleError(c, err)
		return
	}

	chunks, err := h.rag.Ingest(c.Request.Context(), file)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{
		Success:       true,
		Message:       "File uploaded successfully",
		ID:            file.ID,
		Filename:      file.Filename,
		ChunksIndexed: chunks,
		FileInfo:      file,
	})
}

func (h *FileHandler) List(c *gin.Context) {
	files, err := h.store.List()
	if err != nil {
		handleError(c, err)
		return
	}
	if files == nil {
		files = []models.UploadedFile{}
	}
	c.JSON(http.StatusOK, FileListResponse{Success: true, Files: files, TotalFiles: len(files)})
}

func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.store.Get(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *FileHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.rag.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("File %q deleted successfully", id),
	})
}

func (h *FileHandler) SupportedExtensions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported_extensions": filestore.SupportedExtensions(),
	})
}
