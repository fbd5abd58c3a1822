package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/mgagent/companion/internal/api/handlers"
	"github.com/mgagent/companion/internal/api/middleware"
)

type Deps struct {
	Conversation *handlers.ConversationHandler
	Memory       *handlers.MemoryHandler
	RAG          *handlers.RAGHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/conversation/history", d.Conversation.History)

	auth.GET("/memory/search", d.Memory.Search)
	auth.DELETE("/memory", d.Memory.Clear)

	auth.POST("/rag/index", d.RAG.Index)

	// WebSocket
	auth.GET("/ws/chat", d.WS.ChatWS)
}
