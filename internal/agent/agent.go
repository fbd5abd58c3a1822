// Package agent drives the tool-augmented completion flow for one turn: fetch
// memory, stream with tools attached, run at most one tool round-trip, stream
// the final answer.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/internal/prompt"
	"github.com/mgagent/companion/internal/providers/llm"
)

// MemoryHit is one retrieved long-term memory snippet.
type MemoryHit struct {
	Category string
	Content  string
}

// MemoryRetriever is the slice of the memory service the agent needs.
type MemoryRetriever interface {
	SearchUserMemory(ctx context.Context, userID, query string, topK int) ([]MemoryHit, error)
}

const memoryTopK = 5

type Agent struct {
	llm           llm.Client
	memory        MemoryRetriever
	tools         *Dispatcher
	assistantName string
	log           *logrus.Logger
}

func New(client llm.Client, memory MemoryRetriever, tools *Dispatcher, assistantName string, log *logrus.Logger) *Agent {
	return &Agent{
		llm:           client,
		memory:        memory,
		tools:         tools,
		assistantName: assistantName,
		log:           log,
	}
}

// Run streams the reply for one user message. Content chunks arrive on the
// returned channel in order; at most one error is sent before both channels
// close. The tool round-trip, when it happens, is invisible to the consumer
// apart from the latency gap.
func (a *Agent) Run(ctx context.Context, userID, text string, history []llm.Message) (<-chan llm.Chunk, <-chan error) {
	out := make(chan llm.Chunk, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		userMsg := llm.Message{Role: llm.RoleUser, Content: text}
		userMemory := a.fetchMemory(ctx, userID, text)

		system, err := prompt.Build(prompt.TemplateInitial, map[string]string{
			"assistant_name": a.assistantName,
			"user_memory":    userMemory,
		})
		if err != nil {
			errs <- err
			return
		}

		chunks, streamErrs := a.llm.StreamWithTools(ctx, system, userMsg, history, a.tools.Specs(), "auto")
		for chunk := range chunks {
			if chunk.Kind != llm.ChunkToolCalls {
				if !forward(ctx, out, chunk) {
					return
				}
				continue
			}

			if err := a.toolRoundTrip(ctx, out, chunk, userMsg, history, userMemory); err != nil {
				errs <- err
			}
			// exactly one round-trip per turn; the follow-up stream has no
			// tools attached so it cannot recurse
			return
		}
		if err := <-streamErrs; err != nil {
			errs <- err
		}
	}()

	return out, errs
}

func (a *Agent) toolRoundTrip(ctx context.Context, out chan<- llm.Chunk, call llm.Chunk, userMsg llm.Message, history []llm.Message, userMemory string) error {
	toolResult, err := a.tools.Invoke(ctx, call.ToolCalls)
	if err != nil {
		return err
	}

	system, err := prompt.Build(prompt.TemplatePostTool, map[string]string{
		"assistant_name": a.assistantName,
		"user_memory":    userMemory,
		"tool_result":    toolResult,
	})
	if err != nil {
		return err
	}

	chunks, streamErrs := a.llm.Stream(ctx, system, userMsg, history)
	for chunk := range chunks {
		if !forward(ctx, out, chunk) {
			return ctx.Err()
		}
	}
	return <-streamErrs
}

// fetchMemory retrieves and formats the user's long-term memory. Memory is
// an enrichment, never a correctness dependency: any retrieval failure
// degrades to an empty context instead of failing the turn.
func (a *Agent) fetchMemory(ctx context.Context, userID, query string) string {
	hits, err := a.memory.SearchUserMemory(ctx, userID, query, memoryTopK)
	if err != nil {
		a.log.WithField("user_id", userID).WithError(err).Warn("memory retrieval failed, continuing without")
		return ""
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("[%s] %s", h.Category, h.Content))
	}
	return strings.Join(lines, "\n")
}

func forward(ctx context.Context, out chan<- llm.Chunk, c llm.Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
