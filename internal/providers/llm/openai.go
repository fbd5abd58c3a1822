package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mgagent/companion/internal/utils"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, system Message, user Message, history []Message) (string, error) {
	const op = "OpenAIClient.Complete"

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(system, user, history),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", utils.E(utils.CodeUpstream, op, "completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", utils.E(utils.CodeUpstream, op, "completion returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, system Message, user Message, history []Message) (<-chan Chunk, <-chan error) {
	return c.stream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(system, user, history),
		Temperature: c.temperature,
		Stream:      true,
	})
}

func (c *OpenAIClient) StreamWithTools(ctx context.Context, system Message, user Message, history []Message, tools []ToolSpec, toolChoice string) (<-chan Chunk, <-chan error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(system, user, history),
		Temperature: c.temperature,
		Stream:      true,
		Tools:       buildTools(tools),
	}
	if toolChoice != "" {
		req.ToolChoice = toolChoice
	}
	return c.stream(ctx, req)
}

func (c *OpenAIClient) stream(ctx context.Context, req openai.ChatCompletionRequest) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		const op = "OpenAIClient.stream"

		s, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errs <- utils.E(utils.CodeUpstream, op, "failed to open completion stream", err)
			return
		}
		defer s.Close()

		acc := newToolCallAccumulator()
		for {
			resp, err := s.Recv()
			if errors.Is(err, io.EOF) {
				// stream ended without a tool-call finish; nothing to
				// synthesize, consumer saw plain content chunks only
				return
			}
			if err != nil {
				errs <- utils.E(utils.CodeUpstream, op, "completion stream failed", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]

			if len(choice.Delta.ToolCalls) == 0 && choice.FinishReason != openai.FinishReasonToolCalls {
				select {
				case out <- Chunk{
					Kind:         ChunkContent,
					Content:      choice.Delta.Content,
					Model:        resp.Model,
					FinishReason: string(choice.FinishReason),
				}:
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc.add(idx, tc.Function.Name, tc.Function.Arguments)
			}

			if choice.FinishReason == openai.FinishReasonToolCalls {
				// stop consuming and emit the single synthetic chunk with
				// every call fully assembled
				select {
				case out <- Chunk{
					Kind:         ChunkToolCalls,
					Model:        resp.Model,
					FinishReason: string(openai.FinishReasonToolCalls),
					ToolCalls:    acc.finalize(),
				}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return out, errs
}

func buildMessages(system Message, user Message, history []Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, toOpenAIMessage(system))
	for _, m := range history {
		msgs = append(msgs, toOpenAIMessage(m))
	}
	msgs = append(msgs, toOpenAIMessage(user))
	return msgs
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	if len(m.Images) == 0 {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: m.Content,
	})
	for _, url := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    url,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
}

func buildTools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
