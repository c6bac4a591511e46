package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"study-rag/internal/chunker"
	"study-rag/internal/filestore"
	"study-rag/internal/ollama"
	"study-rag/internal/rag"
	"study-rag/internal/vectorstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	t := strings.ToLower(text)
	return []float32{
		float32(strings.Count(t, "learning") + strings.Count(t, "supervised")),
		float32(strings.Count(t, "cooking") + strings.Count(t, "recipe")),
		1,
	}, nil
}

func (f fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

func defaultOllamaHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/generate":
		w.Write([]byte(`{"response":"stub answer","done":true}` + "\n"))
	case "/api/tags":
		w.Write([]byte(`{"models":[{"name":"llama2:latest"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	router *gin.Engine
	store  *filestore.Store
	index  *vectorstore.ChromemStore
}

func newEnv(t *testing.T, ollamaHandler http.HandlerFunc) *testEnv {
	t.Helper()
	if ollamaHandler == nil {
		ollamaHandler = defaultOllamaHandler
	}
	srv := httptest.NewServer(ollamaHandler)
	t.Cleanup(srv.Close)

	store, err := filestore.NewStore(t.TempDir(), 1024*1024)
	require.NoError(t, err)
	index, err := vectorstore.NewChromemStore("", "study_documents", true)
	require.NoError(t, err)

	client := ollama.NewClient(srv.URL, "llama2", 5*time.Second)
	svc := rag.NewService(store, chunker.NewSplitter(200, 40), fakeEmbedder{}, index, client,
		"test-model", "study_documents", 5)

	router := NewRouter(NewFileHandler(store, svc), NewRAGHandler(svc), NewLLMHandler(client), nil)
	return &testEnv{router: router, store: store, index: index}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.do(t, method, path, bytes.NewReader(body), "application/json")
}

func (e *testEnv) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return e.do(t, http.MethodPost, "/files/upload", &buf, mw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUploadListDeleteLifecycle(t *testing.T) {
	env := newEnv(t, nil)

	w := env.upload(t, "notes.txt", "Supervised learning uses labeled data.")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "notes.txt", body["id"])
	require.GreaterOrEqual(t, body["chunks_indexed"].(float64), float64(1))

	w = env.do(t, http.MethodGet, "/files/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), decode(t, w)["total_files"])

	w = env.do(t, http.MethodGet, "/files/notes.txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/files/notes.txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/files/notes.txt", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	count, err := env.index.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newEnv(t, nil)

	w := env.upload(t, "image.png", "binary bytes")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	require.Equal(t, false, body["success"])
	require.Equal(t, "unsupported_file_type", body["error"])

	// Nothing was persisted.
	w = env.do(t, http.MethodGet, "/files/", nil, "")
	require.Equal(t, float64(0), decode(t, w)["total_files"])
}

func TestUploadMissingFileField(t *testing.T) {
	env := newEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "notes.txt"))
	require.NoError(t, mw.Close())

	w := env.do(t, http.MethodPost, "/files/upload", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", decode(t, w)["error"])
}

func TestUploadExtractionFailureReturns422(t *testing.T) {
	env := newEnv(t, nil)

	w := env.upload(t, "broken.pdf", "this is not a pdf")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "extraction_failed", decode(t, w)["error"])

	// The rejected file was rolled back.
	w = env.do(t, http.MethodGet, "/files/", nil, "")
	require.Equal(t, float64(0), decode(t, w)["total_files"])
}

func TestDeleteUnknownFile(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodDelete, "/files/ghost.txt", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", decode(t, w)["error"])
}

func TestSupportedExtensions(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodGet, "/files/supported/extensions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), ".pdf")
	require.Contains(t, w.Body.String(), ".md")
}

func TestSearchRetrievalOnly(t *testing.T) {
	env := newEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.upload(t, "notes.txt", "Supervised learning uses labeled data.").Code)

	useLLM := false
	w := env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "What is supervised learning?", "use_llm": useLLM})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.GreaterOrEqual(t, body["n_chunks_found"].(float64), float64(1))
	require.Empty(t, body["answer"])
	require.Contains(t, body["context"], "[Source 1: notes.txt]")
}

func TestSearchWithGeneration(t *testing.T) {
	env := newEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.upload(t, "notes.txt", "Supervised learning uses labeled data.").Code)

	w := env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "What is supervised learning?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, "stub answer", body["answer"])
	require.Equal(t, "llama2", body["model_used"])
}

func TestSearchValidation(t *testing.T) {
	env := newEnv(t, nil)

	w := env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"n_results": 3})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", decode(t, w)["error"])

	w = env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "hi", "n_results": 50})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchDegradesOnGenerationFailure(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"model exploded"}`))
		default:
			defaultOllamaHandler(w, r)
		}
	})
	require.Equal(t, http.StatusCreated, env.upload(t, "notes.txt", "Supervised learning uses labeled data.").Code)

	w := env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "What is supervised learning?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.NotEmpty(t, body["generation_error"])
	require.GreaterOrEqual(t, body["n_chunks_found"].(float64), float64(1))
	require.Empty(t, body["answer"])
}

func TestSearchEmbedderDownReturns503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(defaultOllamaHandler))
	t.Cleanup(srv.Close)

	store, err := filestore.NewStore(t.TempDir(), 1024*1024)
	require.NoError(t, err)
	index, err := vectorstore.NewChromemStore("", "study_documents", true)
	require.NoError(t, err)
	client := ollama.NewClient(srv.URL, "llama2", 5*time.Second)
	svc := rag.NewService(store, chunker.NewSplitter(200, 40), failingEmbedder{}, index, client,
		"test-model", "study_documents", 5)
	env := &testEnv{router: NewRouter(NewFileHandler(store, svc), NewRAGHandler(svc), NewLLMHandler(client), nil)}

	// Retrieval-only: an embedding outage must surface as 503, never as a
	// degraded 200.
	useLLM := false
	w := env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "anything", "use_llm": useLLM})
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, false, body["success"])
	require.Equal(t, "model_service_unavailable", body["error"])

	// Same with generation enabled: the failure happens before retrieval,
	// so there is nothing to degrade to.
	w = env.doJSON(t, http.MethodPost, "/rag/search", gin.H{"prompt": "anything"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	require.Equal(t, "model_service_unavailable", decode(t, w)["error"])
}

func TestQueryFailsOnGenerationFailure(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"model exploded"}`))
		default:
			defaultOllamaHandler(w, r)
		}
	})
	require.Equal(t, http.StatusCreated, env.upload(t, "notes.txt", "Supervised learning uses labeled data.").Code)

	w := env.doJSON(t, http.MethodPost, "/rag/query", gin.H{"prompt": "What is supervised learning?"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "model_generation_error", decode(t, w)["error"])
}

func TestQueryEmptyIndexUsesBarePrompt(t *testing.T) {
	env := newEnv(t, nil)

	w := env.doJSON(t, http.MethodPost, "/rag/query", gin.H{"prompt": "What is supervised learning?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, "stub answer", body["answer"])
	require.Equal(t, float64(0), body["n_chunks_found"])
}

func TestStatsAndReset(t *testing.T) {
	env := newEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.upload(t, "notes.txt", "Supervised learning uses labeled data.").Code)

	w := env.do(t, http.MethodGet, "/rag/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "study_documents", body["collection_name"])
	require.Equal(t, float64(1), body["document_count"])

	w = env.do(t, http.MethodPost, "/rag/reset", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/rag/stats", nil, "")
	require.Equal(t, float64(0), decode(t, w)["document_count"])
}

func TestLLMQuery(t *testing.T) {
	env := newEnv(t, nil)

	w := env.doJSON(t, http.MethodPost, "/llm/query", gin.H{"prompt": "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, "stub answer", body["response"])
	require.Equal(t, "llama2", body["model_used"])
}

func TestLLMQueryDaemonUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store, err := filestore.NewStore(t.TempDir(), 1024*1024)
	require.NoError(t, err)
	index, err := vectorstore.NewChromemStore("", "study_documents", true)
	require.NoError(t, err)
	client := ollama.NewClient(srv.URL, "llama2", time.Second)
	svc := rag.NewService(store, chunker.NewSplitter(200, 40), fakeEmbedder{}, index, client,
		"test-model", "study_documents", 5)
	env := &testEnv{router: NewRouter(NewFileHandler(store, svc), NewRAGHandler(svc), NewLLMHandler(client), nil)}

	w := env.doJSON(t, http.MethodPost, "/llm/query", gin.H{"prompt": "hello"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "model_service_unavailable", decode(t, w)["error"])
}

func TestLLMModels(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodGet, "/llm/models", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), decode(t, w)["total_models"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newEnv(t, nil)

	for _, path := range []string{"/health", "/rag/health", "/llm/health"} {
		w := env.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
