package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mgagent/companion/internal/cache"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/providers/llm"
	pgrepo "github.com/mgagent/companion/internal/repositories/postgres"
	"github.com/mgagent/companion/internal/utils"
)

// HistoryTurns is the fixed history window, in turns; each turn is a user
// row plus an assistant row.
const HistoryTurns = 7

const historyTTL = 5 * time.Minute

type ChatRecordService interface {
	// SaveTurn persists one turn row and invalidates the user's cached
	// history.
	SaveTurn(ctx context.Context, rec *models.ChatRecord) error

	// RecentHistory returns the history window as completion messages in
	// chronological order, plus the number of underlying rows.
	RecentHistory(ctx context.Context, userID string) ([]llm.Message, int, error)

	// RecentRecords returns the raw rows of the history window, for the
	// REST surface.
	RecentRecords(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error)
}

type chatRecordService struct {
	records pgrepo.ChatRecordRepo
	cache   cache.Cache
}

func NewChatRecordService(records pgrepo.ChatRecordRepo, c cache.Cache) ChatRecordService {
	return &chatRecordService{records: records, cache: c}
}

func historyKey(userID string) string { return "chat:history:" + userID }

func (s *chatRecordService) SaveTurn(ctx context.Context, rec *models.ChatRecord) error {
	const op = "ChatRecordService.SaveTurn"

	if rec.UserID == "" || rec.Role == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id and role are required", nil)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert chat record", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, historyKey(rec.UserID))
	}
	return nil
}

func (s *chatRecordService) RecentHistory(ctx context.Context, userID string) ([]llm.Message, int, error) {
	const op = "ChatRecordService.RecentHistory"

	rows, err := s.loadWindow(ctx, userID)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to load chat history", err)
	}

	msgs := make([]llm.Message, 0, len(rows))
	for _, r := range rows {
		role := llm.RoleAssistant
		if r.Role == models.RoleUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: r.Text, Images: r.Image})
	}
	return msgs, len(rows), nil
}

func (s *chatRecordService) RecentRecords(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	const op = "ChatRecordService.RecentRecords"

	rows, err := s.records.LatestN(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list chat records", err)
	}
	return rows, nil
}

func (s *chatRecordService) loadWindow(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	key := historyKey(userID)

	if s.cache != nil {
		var cached []models.ChatRecord
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	rows, err := s.records.LatestN(ctx, userID, HistoryTurns*2)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, rows, historyTTL)
	}
	return rows, nil
}
