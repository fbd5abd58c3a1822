package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mgagent/companion/internal/services"
	"github.com/mgagent/companion/internal/utils"
)

type RAGHandler struct {
	rag services.RAGService
}

func NewRAGHandler(rag services.RAGService) *RAGHandler {
	return &RAGHandler{rag: rag}
}

type indexRequest struct {
	Text     string `json:"text"`
	FileType string `json:"file_type"` // "md" or "txt"
}

// Index embeds and stores one document for retrieval through query_manual.
func (h *RAGHandler) Index(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RAGHandler.Index", "invalid request body", err))
		return
	}
	if req.Text == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RAGHandler.Index", "text is required", nil))
		return
	}

	n, err := h.rag.IndexDocument(c.Request.Context(), req.Text, req.FileType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chunks": n})
}
