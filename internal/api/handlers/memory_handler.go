package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mgagent/companion/internal/services"
	"github.com/mgagent/companion/internal/utils"
)

type MemoryHandler struct {
	memory services.MemoryService
}

func NewMemoryHandler(memory services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

// Search runs a similarity search over the caller's own memory.
func (h *MemoryHandler) Search(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	query := c.Query("query")
	if query == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MemoryHandler.Search", "query is required", nil))
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "5"))

	rows, err := h.memory.SearchRecords(c.Request.Context(), userID, query, topK)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"memories": rows})
}

// Clear deletes every memory record of the caller.
func (h *MemoryHandler) Clear(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.memory.ClearUserMemory(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
