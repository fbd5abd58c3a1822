package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/registry"
	"github.com/mgagent/companion/internal/services"
)

type WSHandler struct {
	chat     services.ChatService
	registry *registry.Registry
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(chat services.ChatService, reg *registry.Registry, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		chat:     chat,
		registry: reg,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

// ChatWS is the duplex chat endpoint. One turn is processed to completion
// before the next inbound message on the connection is read; turns on other
// connections proceed concurrently.
func (h *WSHandler) ChatWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := registry.NewConn(conn)
	h.registry.Connect(userID, wc)
	defer h.registry.Disconnect(userID, wc)

	ctx := c.Request.Context()
	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}

		var msg models.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// protocol error skips the message, never the connection
			h.log.WithField("user_id", userID).WithError(err).Warn("malformed inbound message")
			ev, _ := json.Marshal(models.StreamMessage{
				UUID:    "",
				Content: services.GenericErrorText,
				Status:  models.StatusError,
			})
			if werr := wc.WriteText(ev); werr != nil {
				return
			}
			continue
		}

		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"uuid":    msg.UUID,
			"images":  len(msg.Image),
		}).Info("chat message received")

		if err := h.chat.HandleMessage(ctx, userID, msg); err != nil {
			// mid-stream failure: the error event is already out, tear the
			// connection down rather than leave it ambiguous
			h.log.WithField("user_id", userID).WithError(err).Error("turn failed, closing connection")
			return
		}
	}
}
