package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"study-rag/internal/middleware"
)

// NewRouter wires the full route surface. Handlers receive their
// dependencies explicitly; nothing here is process-global.
func NewRouter(files *FileHandler, ragH *RAGHandler, llm *LLMHandler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))

	r.GET("/", apiInfo)
	r.GET("/health", health)

	fg := r.Group("/files")
	{
		fg.POST("/upload", files.Upload)
		fg.GET("/", files.List)
		fg.GET("/supported/extensions", files.SupportedExtensions)
		fg.GET("/:id", files.Get)
		fg.DELETE("/:id", files.Delete)
	}

	rg := r.Group("/rag")
	{
		rg.POST("/search", ragH.Search)
		rg.POST("/query", ragH.Query)
		rg.GET("/stats", ragH.Stats)
		rg.POST("/reset", ragH.Reset)
		rg.GET("/health", ragH.Health)
	}

	lg := r.Group("/llm")
	{
		lg.POST("/query", llm.Query)
		lg.GET("/models", llm.Models)
		lg.POST("/models/:model/ensure", llm.Ensure)
		lg.GET("/status", llm.Status)
		lg.GET("/health", llm.Health)
	}

	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "healthy",
		"message":   "API is running",
		"timestamp": time.Now().UTC(),
	})
}

func apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":   "Study Document RAG API",
		"message": "Upload study documents and query them with retrieval-augmented generation",
		"endpoints": gin.H{
			"files": gin.H{
				"upload":     "POST /files/upload",
				"list":       "GET /files/",
				"details":    "GET /files/:id",
				"delete":     "DELETE /files/:id",
				"extensions": "GET /files/supported/extensions",
			},
			"rag": gin.H{
				"search": "POST /rag/search",
				"query":  "POST /rag/query",
				"stats":  "GET /rag/stats",
				"reset":  "POST /rag/reset",
				"health": "GET /rag/health",
			},
			"llm": gin.H{
				"query":  "POST /llm/query",
				"models": "GET /llm/models",
				"ensure": "POST /llm/models/:model/ensure",
				"status": "GET /llm/status",
				"health": "GET /llm/health",
			},
			"system": gin.H{
				"health": "GET /health",
			},
		},
	})
}
