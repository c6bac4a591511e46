package embedding

import (
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// NewOllamaEmbedder builds an embedder backed by the ollama daemon. The
// same model must be used at ingestion and query time; the model name is
// recorded in chunk metadata so stale vectors can be told apart.
func NewOllamaEmbedder(baseURL, model string) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}
