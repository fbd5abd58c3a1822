package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// MemoryRecord is a durable categorized snippet about a user, extracted from
// past conversations and retrieved by similarity search. Insert-only; rows
// are never updated, only bulk-deleted per user.
type MemoryRecord struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string          `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Category  string          `gorm:"column:category;type:varchar(128)" json:"category"`
	Content   string          `gorm:"column:content;type:text" json:"content"`
	Source    string          `gorm:"column:source;type:varchar(128)" json:"source"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"-"`
	Timestamp time.Time       `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
}

func (MemoryRecord) TableName() string { return "memory_records" }
