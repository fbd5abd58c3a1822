package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a completion request. Content carries the text;
// Images carries optional image URLs for multimodal turns.
type Message struct {
	Role    string
	Content string
	Images  []string
}

// ToolSpec declares a callable function to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON schema for the arguments object
}

// ToolCallRequest is a fully assembled tool invocation from the model.
type ToolCallRequest struct {
	Name      string
	Arguments json.RawMessage
}

type ChunkKind int

const (
	// ChunkContent carries an incremental content delta.
	ChunkContent ChunkKind = iota
	// ChunkToolCalls is the single synthetic chunk carrying the assembled
	// tool call requests; emitted only when the upstream finishes with a
	// tool-call signal, always last on the stream.
	ChunkToolCalls
)

// Chunk is one unit of a streaming response. Kind discriminates content
// deltas from the synthetic tool-call chunk so consumers can switch
// exhaustively instead of probing fields.
type Chunk struct {
	Kind         ChunkKind
	Content      string
	Model        string
	FinishReason string // empty until the upstream signals a finish
	ToolCalls    []ToolCallRequest
}

// Done reports whether the upstream signaled a terminal reason on this chunk.
func (c Chunk) Done() bool { return c.FinishReason != "" }

// Client wraps the chat-completion API. Streams are finite, not restartable,
// and closed by the producer; callers drive backpressure by consumption rate.
type Client interface {
	// Complete performs a single non-streaming request and returns the full
	// response text.
	Complete(ctx context.Context, system Message, user Message, history []Message) (string, error)

	// Stream yields one Chunk per upstream increment.
	Stream(ctx context.Context, system Message, user Message, history []Message) (<-chan Chunk, <-chan error)

	// StreamWithTools behaves like Stream but attaches tool specs; if the
	// upstream ends with a tool-call finish reason, content chunks are
	// followed by exactly one ChunkToolCalls carrying the assembled calls.
	// If it never signals tool invocation the stream is indistinguishable
	// from Stream.
	StreamWithTools(ctx context.Context, system Message, user Message, history []Message, tools []ToolSpec, toolChoice string) (<-chan Chunk, <-chan error)

	// Model reports the model id this client targets.
	Model() string
}
