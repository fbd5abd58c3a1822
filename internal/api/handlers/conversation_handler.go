package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mgagent/companion/internal/services"
)

type ConversationHandler struct {
	records services.ChatRecordService
}

func NewConversationHandler(records services.ChatRecordService) *ConversationHandler {
	return &ConversationHandler{records: records}
}

// History returns the caller's recent turns, oldest first.
func (h *ConversationHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rows, err := h.records.RecentRecords(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": rows})
}
