package models

// InboundMessage is one client-sent chat message on the WebSocket.
type InboundMessage struct {
	UUID  string   `json:"uuid"` // correlation token echoed on every event
	Text  string   `json:"text"`
	Image []string `json:"image,omitempty"`
	Video string   `json:"video,omitempty"`
}

// Stream event statuses. Exactly one start and one terminal (done or error)
// event frame every successfully processed message.
const (
	StatusStart     = "start"
	StatusStreaming = "streaming"
	StatusDone      = "done"
	StatusError     = "error"
)

// StreamMessage is one server-sent event of a streamed reply.
type StreamMessage struct {
	UUID    string `json:"uuid"`
	Content string `json:"content"`
	Status  string `json:"status"`
}
