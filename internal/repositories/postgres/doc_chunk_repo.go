package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mgagent/companion/internal/models"
)

type DocChunkRepo interface {
	InsertBulk(ctx context.Context, chunks []models.DocChunk) error
	Search(ctx context.Context, embedding []float32, topK int) ([]models.DocChunk, error)
	DeleteAll(ctx context.Context) error
}

type docChunkRepo struct {
	db *gorm.DB
}

func NewDocChunkRepo(db *gorm.DB) DocChunkRepo {
	return &docChunkRepo{db: db}
}

func (r *docChunkRepo) InsertBulk(ctx context.Context, chunks []models.DocChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&chunks).Error
}

func (r *docChunkRepo) Search(ctx context.Context, embedding []float32, topK int) ([]models.DocChunk, error) {
	if topK <= 0 {
		topK = 2
	}

	var rows []models.DocChunk
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding <=> ?",
			Vars:               []interface{}{pgvector.NewVector(embedding)},
			WithoutParentheses: true,
		}}).
		Limit(topK).
		Find(&rows).Error
	return rows, err
}

func (r *docChunkRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.DocChunk{}).Error
}
