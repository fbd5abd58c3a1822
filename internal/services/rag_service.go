package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/textsplitter"
	"gorm.io/datatypes"

	"github.com/mgagent/companion/internal/agent"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/providers/embedding"
	"github.com/mgagent/companion/internal/providers/llm"
	pgrepo "github.com/mgagent/companion/internal/repositories/postgres"
	"github.com/mgagent/companion/internal/utils"
)

const (
	ragTopK      = 2
	chunkSize    = 512
	chunkOverlap = 50
)

type RAGService interface {
	// Query returns the text of the chunks most similar to the question.
	Query(ctx context.Context, question string, topK int) ([]string, error)

	// IndexDocument splits, embeds and stores one document. Unlike the
	// retrieval path, failures here are fatal and surface to the caller.
	IndexDocument(ctx context.Context, text, fileType string) (int, error)
}

type ragService struct {
	chunks   pgrepo.DocChunkRepo
	embedder embedding.Embedder
}

func NewRAGService(chunks pgrepo.DocChunkRepo, embedder embedding.Embedder) RAGService {
	return &ragService{chunks: chunks, embedder: embedder}
}

func (s *ragService) Query(ctx context.Context, question string, topK int) ([]string, error) {
	const op = "RAGService.Query"

	if topK <= 0 {
		topK = ragTopK
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, err
	}

	rows, err := s.chunks.Search(ctx, vecs[0], topK)
	if err != nil {
		return nil, utils.E(utils.CodeVectorStore, op, "document search failed", err)
	}

	texts := make([]string, 0, len(rows))
	for _, r := range rows {
		texts = append(texts, r.Text)
	}
	return texts, nil
}

func (s *ragService) IndexDocument(ctx context.Context, text, fileType string) (int, error) {
	const op = "RAGService.IndexDocument"

	pieces, err := splitDocument(text, fileType)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to split document", err)
	}
	if len(pieces) == 0 {
		return 0, nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, pieces)
	if err != nil {
		return 0, err
	}

	meta, _ := json.Marshal(map[string]string{"file_type": fileType})
	now := time.Now().UTC()
	rows := make([]models.DocChunk, 0, len(pieces))
	for i, piece := range pieces {
		rows = append(rows, models.DocChunk{
			ID:        uuid.NewString(),
			Text:      piece,
			Embedding: pgvector.NewVector(vecs[i]),
			Metadata:  datatypes.JSON(meta),
			CreatedAt: now,
		})
	}

	if err := s.chunks.InsertBulk(ctx, rows); err != nil {
		return 0, utils.E(utils.CodeVectorStore, op, "document insert failed", err)
	}
	return len(rows), nil
}

func splitDocument(text, fileType string) ([]string, error) {
	var splitter textsplitter.TextSplitter
	if fileType == "md" {
		splitter = textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		)
	} else {
		splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		)
	}

	raw, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	pieces := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces, nil
}

// QueryManualTool declares the documentation-lookup tool backed by the RAG
// service, for registration with the agent's dispatcher.
func QueryManualTool(rag RAGService) (llm.ToolSpec, agent.ToolFunc) {
	spec := llm.ToolSpec{
		Name:        "query_manual",
		Description: "Look up the product documentation when the user asks about the assistant's identity, capabilities, usage or limits.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "the user question to look up"}
			},
			"required": ["query"]
		}`),
	}

	fn := func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		chunks, err := rag.Query(ctx, query, ragTopK)
		if err != nil {
			return "", err
		}
		return strings.Join(chunks, "\n"), nil
	}
	return spec, fn
}
