package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mgagent/companion/internal/models"
)

type MemoryRepo interface {
	InsertBulk(ctx context.Context, recs []models.MemoryRecord) error
	// SearchByUser runs a cosine nearest-neighbor search restricted to one
	// user, most similar first.
	SearchByUser(ctx context.Context, userID string, embedding []float32, topK int) ([]models.MemoryRecord, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type memoryRepo struct {
	db *gorm.DB
}

func NewMemoryRepo(db *gorm.DB) MemoryRepo {
	return &memoryRepo{db: db}
}

func (r *memoryRepo) InsertBulk(ctx context.Context, recs []models.MemoryRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

func (r *memoryRepo) SearchByUser(ctx context.Context, userID string, embedding []float32, topK int) ([]models.MemoryRecord, error) {
	if topK <= 0 {
		topK = 5
	}

	var rows []models.MemoryRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding <=> ?",
			Vars:               []interface{}{pgvector.NewVector(embedding)},
			WithoutParentheses: true,
		}}).
		Limit(topK).
		Find(&rows).Error
	return rows, err
}

func (r *memoryRepo) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.MemoryRecord{}).Error
}
