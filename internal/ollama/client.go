package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperr "study-rag/internal/pkg/errors"
)

const DefaultBaseURL = "http://localhost:11434"

// Client talks to a locally reachable ollama daemon. Transport failures
// surface as ErrModelUnavailable; a reachable daemon answering non-OK
// (unknown model, generation failure) surfaces as ErrModelGeneration.
// One attempt per call; retrying is the caller's decision.
type Client struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type pullRequest struct {
	Name string `json:"name"`
}

// ModelInfo is one entry from the daemon's tag list.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// GenerateResult is a finished completion and the model that produced it.
type GenerateResult struct {
	Response string
	Model    string
}

func NewClient(baseURL, defaultModel string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string      { return c.baseURL }
func (c *Client) DefaultModel() string { return c.defaultModel }

// Generate runs one completion. An empty model name falls back to the
// configured default. The daemon streams JSON objects one per line; the
// response fragments are concatenated.
func (c *Client) Generate(ctx context.Context, prompt, model string) (GenerateResult, error) {
	if model == "" {
		model = c.defaultModel
	}

	reqBody, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: true})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return GenerateResult{}, fmt.Errorf("%w: status %d: %s", apperr.ErrModelGeneration, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return GenerateResult{}, fmt.Errorf("%w: bad response chunk: %v", apperr.ErrModelGeneration, err)
		}
		full.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return GenerateResult{}, fmt.Errorf("%w: reading stream: %v", apperr.ErrModelUnavailable, err)
	}

	answer := full.String()
	if strings.TrimSpace(answer) == "" {
		return GenerateResult{}, fmt.Errorf("%w: empty response", apperr.ErrModelGeneration)
	}
	return GenerateResult{Response: answer, Model: model}, nil
}

// ListModels returns the daemon's installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", apperr.ErrModelGeneration, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: bad tags response: %v", apperr.ErrModelGeneration, err)
	}
	return tags.Models, nil
}

// HasModel reports whether a model (or one of its tags) is installed.
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == model || strings.HasPrefix(m.Name, model+":") {
			return true, nil
		}
	}
	return false, nil
}

// Ensure makes a model available, pulling it from the registry when it is
// not installed yet. Pulls can run for minutes on first use.
func (c *Client) Ensure(ctx context.Context, model string) error {
	ok, err := c.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	reqBody, err := json.Marshal(pullRequest{Name: model})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: pull failed with status %d: %s", apperr.ErrModelGeneration, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	// Drain the pull progress stream.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Healthy reports whether the daemon answers at all.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
