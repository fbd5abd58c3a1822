package embedding

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mgagent/companion/internal/utils"
)

// batchSize is an internal tuning knob, not part of the embedding contract.
const batchSize = 10

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

type OpenAIEmbedderConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1024
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		dims:   dims,
	}
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "OpenAIEmbedder.EmbedTexts"

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:          openai.EmbeddingModel(e.model),
			Input:          texts[start:end],
			Dimensions:     e.dims,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return nil, utils.E(utils.CodeEmbedding, op, "embedding request failed", err)
		}
		for _, d := range resp.Data {
			all = append(all, d.Embedding)
		}
	}
	return all, nil
}
