package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	MaxFileSizeMB int64  `yaml:"max_file_size_mb"`
}

type RAGConfig struct {
	VectorStore      string `yaml:"vector_store"`
	ChromemPath      string `yaml:"chromem_path"`
	CollectionName   string `yaml:"collection_name"`
	EmbeddingModel   string `yaml:"embedding_model"`
	// EmbeddingDimensions is the vector width of the embedding model;
	// only the postgres backend needs it (the column type is fixed).
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
	ChunkSize           int `yaml:"chunk_size"`
	ChunkOverlap        int `yaml:"chunk_overlap"`
	MaxContextChunks    int `yaml:"max_context_chunks"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Storage  StorageConfig  `yaml:"storage"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama2",
			TimeoutSeconds: 90,
		},
		Storage: StorageConfig{
			UploadDir:     "data/uploads",
			MaxFileSizeMB: 50,
		},
		RAG: RAGConfig{
			VectorStore:      "chromem",
			ChromemPath:      "data/chroma_db",
			CollectionName:      "study_documents",
			EmbeddingModel:      "nomic-embed-text",
			EmbeddingDimensions: 768,
			ChunkSize:           1000,
			ChunkOverlap:        200,
			MaxContextChunks:    5,
		},
	}
}

// LoadConfig reads the yaml config file (missing file falls back to
// defaults), then applies environment overrides. A .env file in the working
// directory is loaded first so both sources behave the same.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Ollama.Model, "OLLAMA_MODEL")
	setString(&cfg.Storage.UploadDir, "UPLOAD_DIR")
	setString(&cfg.RAG.VectorStore, "VECTOR_STORE")
	setString(&cfg.RAG.ChromemPath, "CHROMEM_PATH")
	setString(&cfg.RAG.CollectionName, "COLLECTION_NAME")
	setString(&cfg.RAG.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Database.Password, "DATABASE_PASSWORD")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.RAG.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.RAG.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&cfg.RAG.EmbeddingDimensions, "EMBEDDING_DIMENSIONS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *StorageConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}
