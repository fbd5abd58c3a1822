package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/internal/agent"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/prompt"
	"github.com/mgagent/companion/internal/providers/embedding"
	"github.com/mgagent/companion/internal/providers/llm"
	pgrepo "github.com/mgagent/companion/internal/repositories/postgres"
	"github.com/mgagent/companion/internal/utils"
)

const memorySourceChat = "chat"

type MemoryService interface {
	agent.MemoryRetriever

	// SearchRecords is SearchUserMemory for the REST surface, returning
	// full rows.
	SearchRecords(ctx context.Context, userID, query string, topK int) ([]models.MemoryRecord, error)

	// AddUserMemories embeds the contents in one batch and inserts them as
	// memory records. categories and contents are parallel slices.
	AddUserMemories(ctx context.Context, userID string, categories, contents []string, source string) error

	ClearUserMemory(ctx context.Context, userID string) error

	// ExtractAndStore asks the model for profile-worthy facts in the
	// exchange and stores whatever it finds. Best-effort: parse failures
	// are logged, never raised. Runs off the reply path.
	ExtractAndStore(ctx context.Context, userID, message, reply string) error
}

type memoryService struct {
	memories pgrepo.MemoryRepo
	embedder embedding.Embedder
	llm      llm.Client
	log      *logrus.Logger
}

func NewMemoryService(memories pgrepo.MemoryRepo, embedder embedding.Embedder, client llm.Client, log *logrus.Logger) MemoryService {
	return &memoryService{memories: memories, embedder: embedder, llm: client, log: log}
}

func (s *memoryService) SearchUserMemory(ctx context.Context, userID, query string, topK int) ([]agent.MemoryHit, error) {
	rows, err := s.SearchRecords(ctx, userID, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]agent.MemoryHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, agent.MemoryHit{Category: r.Category, Content: r.Content})
	}
	return hits, nil
}

func (s *memoryService) SearchRecords(ctx context.Context, userID, query string, topK int) ([]models.MemoryRecord, error) {
	const op = "MemoryService.SearchRecords"

	if userID == "" || query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and query are required", nil)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	rows, err := s.memories.SearchByUser(ctx, userID, vecs[0], topK)
	if err != nil {
		return nil, utils.E(utils.CodeVectorStore, op, "memory search failed", err)
	}
	return rows, nil
}

func (s *memoryService) AddUserMemories(ctx context.Context, userID string, categories, contents []string, source string) error {
	const op = "MemoryService.AddUserMemories"

	if len(categories) != len(contents) {
		return utils.E(utils.CodeInvalidArgument, op, "categories and contents must be the same length", nil)
	}
	if len(contents) == 0 {
		return nil
	}
	if source == "" {
		source = memorySourceChat
	}

	vecs, err := s.embedder.EmbedTexts(ctx, contents)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	recs := make([]models.MemoryRecord, 0, len(contents))
	for i := range contents {
		recs = append(recs, models.MemoryRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			Category:  categories[i],
			Content:   contents[i],
			Source:    source,
			Embedding: pgvector.NewVector(vecs[i]),
			Timestamp: now,
		})
	}

	if err := s.memories.InsertBulk(ctx, recs); err != nil {
		return utils.E(utils.CodeVectorStore, op, "memory insert failed", err)
	}
	return nil
}

func (s *memoryService) ClearUserMemory(ctx context.Context, userID string) error {
	const op = "MemoryService.ClearUserMemory"

	if err := s.memories.DeleteByUser(ctx, userID); err != nil {
		return utils.E(utils.CodeVectorStore, op, "memory delete failed", err)
	}
	return nil
}

func (s *memoryService) ExtractAndStore(ctx context.Context, userID, message, reply string) error {
	const op = "MemoryService.ExtractAndStore"

	system, err := prompt.Build(prompt.TemplateMemoryExtract, nil)
	if err != nil {
		return err
	}

	exchange := "User: " + message + "\nAssistant: " + reply
	raw, err := s.llm.Complete(ctx, system, llm.Message{Role: llm.RoleUser, Content: exchange}, nil)
	if err != nil {
		return err
	}

	categories, contents, ok := parseMemoryPoints(raw)
	if !ok {
		s.log.WithField("user_id", userID).Debug("memory extraction returned nothing usable")
		return nil
	}
	if len(contents) == 0 {
		return nil
	}

	return s.AddUserMemories(ctx, userID, categories, contents, memorySourceChat)
}

// parseMemoryPoints parses the extraction response: either the no-content
// sentinel or a JSON array of single-key {category: content} objects. The
// bool is false only when the payload is malformed.
func parseMemoryPoints(raw string) (categories, contents []string, ok bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" || strings.EqualFold(strings.Trim(text, `"`), prompt.NoMemorySentinel) {
		return nil, nil, true
	}

	var items []map[string]string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, nil, false
	}

	for _, item := range items {
		for category, content := range item {
			if content == "" {
				continue
			}
			categories = append(categories, category)
			contents = append(contents, content)
		}
	}
	return categories, contents, true
}
