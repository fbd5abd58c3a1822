package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/config"
	"github.com/mgagent/companion/internal/agent"
	"github.com/mgagent/companion/internal/api/handlers"
	"github.com/mgagent/companion/internal/api/middleware"
	"github.com/mgagent/companion/internal/api/routes"
	"github.com/mgagent/companion/internal/cache"
	applog "github.com/mgagent/companion/internal/logger"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/providers/embedding"
	"github.com/mgagent/companion/internal/providers/llm"
	"github.com/mgagent/companion/internal/registry"
	pgrepo "github.com/mgagent/companion/internal/repositories/postgres"
	"github.com/mgagent/companion/internal/services"
	"github.com/mgagent/companion/internal/workers"
)

// extractionScheduler bridges the chat service onto the worker pool.
type extractionScheduler struct {
	pool *workers.ExtractionPool
}

func (s extractionScheduler) Enqueue(t services.ChatExtraction) bool {
	return s.pool.Enqueue(workers.ExtractionTask{
		UserID:  t.UserID,
		Message: t.Message,
		Reply:   t.Reply,
	})
}

func main() {
	_ = godotenv.Load()

	logger := applog.New("companion")

	db, err := config.InitPostgres()
	if err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	logger.Info("PostgreSQL connected")

	if err := db.AutoMigrate(&models.ChatRecord{}, &models.MemoryRecord{}, &models.DocChunk{}); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	rdb, err := config.InitRedis()
	if err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	logger.Info("Redis connected")

	llmCfg, err := config.LoadLLM()
	if err != nil {
		log.Fatalf("LLM config error: %v", err)
	}

	textLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     llmCfg.BaseURL,
		APIKey:      llmCfg.APIKey,
		Model:       llmCfg.TextModel,
		Temperature: llmCfg.Temperature,
	})
	visionLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     llmCfg.BaseURL,
		APIKey:      llmCfg.APIKey,
		Model:       llmCfg.VisionModel,
		Temperature: llmCfg.Temperature,
	})
	embedder := embedding.NewOpenAIEmbedder(embedding.OpenAIEmbedderConfig{
		BaseURL:    llmCfg.BaseURL,
		APIKey:     llmCfg.APIKey,
		Model:      llmCfg.EmbedModel,
		Dimensions: llmCfg.EmbedDims,
	})

	redisCache := cache.NewRedisCache(rdb)
	chatRecords := services.NewChatRecordService(pgrepo.NewChatRecordRepo(db), redisCache)
	memory := services.NewMemoryService(pgrepo.NewMemoryRepo(db), embedder, textLLM, logger)
	rag := services.NewRAGService(pgrepo.NewDocChunkRepo(db), embedder)

	tools := agent.NewDispatcher(logger)
	tools.Register(services.QueryManualTool(rag))
	ag := agent.New(textLLM, memory, tools, llmCfg.AssistantName, logger)

	ctx := context.Background()
	pool := &workers.ExtractionPool{Memory: memory, Logger: logger}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("extraction pool error: %v", err)
	}

	reg := registry.New(logger)
	chat := services.NewChatService(chatRecords, ag, visionLLM, reg, extractionScheduler{pool: pool}, logger)

	if doc := os.Getenv("AUTO_INDEX_DOC"); doc != "" {
		indexProductDoc(ctx, rag, doc, logger)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	routes.RegisterRoutes(r, routes.Deps{
		Conversation: handlers.NewConversationHandler(chatRecords),
		Memory:       handlers.NewMemoryHandler(memory),
		RAG:          handlers.NewRAGHandler(rag),
		WS:           handlers.NewWSHandler(chat, reg, logger),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func indexProductDoc(ctx context.Context, rag services.RAGService, path string, logger *logrus.Logger) {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Errorf("auto-index: cannot read %s: %v", path, err)
		return
	}
	fileType := "txt"
	if len(path) > 3 && path[len(path)-3:] == ".md" {
		fileType = "md"
	}
	if _, err := rag.IndexDocument(ctx, string(b), fileType); err != nil {
		logger.Errorf("auto-index: %s failed: %v", path, err)
	}
}
