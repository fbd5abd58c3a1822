package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/utils"
)

type ChatRecordRepo interface {
	Insert(ctx context.Context, rec *models.ChatRecord) error
	// LatestN returns up to n of the user's most recent turns in
	// chronological (oldest-first) order.
	LatestN(ctx context.Context, userID string, n int) ([]models.ChatRecord, error)
	GetByID(ctx context.Context, id string) (*models.ChatRecord, error)
}

type chatRecordRepo struct {
	db *gorm.DB
}

func NewChatRecordRepo(db *gorm.DB) ChatRecordRepo {
	return &chatRecordRepo{db: db}
}

func (r *chatRecordRepo) Insert(ctx context.Context, rec *models.ChatRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *chatRecordRepo) LatestN(ctx context.Context, userID string, n int) ([]models.ChatRecord, error) {
	if n <= 0 {
		n = 14
	}

	var rows []models.ChatRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role IN ?", userID, []string{models.RoleUser, models.RoleAssistant}).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// query returns newest-first; flip back into conversation order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *chatRecordRepo) GetByID(ctx context.Context, id string) (*models.ChatRecord, error) {
	var row models.ChatRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
