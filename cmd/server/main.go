package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"study-rag/internal/chunker"
	"study-rag/internal/config"
	"study-rag/internal/embedding"
	"study-rag/internal/filestore"
	"study-rag/internal/handler"
	"study-rag/internal/ollama"
	"study-rag/internal/rag"
	"study-rag/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	store, err := filestore.NewStore(cfg.Storage.UploadDir, cfg.Storage.MaxFileSizeBytes())
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing file store")
	}

	index, err := vectorstore.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}

	embedder, err := embedding.NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.RAG.EmbeddingModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	llmClient := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model,
		time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second)

	splitter := chunker.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	ragService := rag.NewService(store, splitter, embedder, index, llmClient,
		cfg.RAG.EmbeddingModel, cfg.RAG.CollectionName, cfg.RAG.MaxContextChunks)

	router := handler.NewRouter(
		handler.NewFileHandler(store, ragService),
		handler.NewRAGHandler(ragService),
		handler.NewLLMHandler(llmClient),
		cfg.Server.CORSOrigins,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		// Generation against a local model can run long.
		WriteTimeout: time.Duration(cfg.Ollama.TimeoutSeconds+30) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server exited")
}
