package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocChunk is one embedded slice of the product documentation, served to the
// model through the query_manual tool.
type DocChunk struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Text      string          `gorm:"column:text;type:text" json:"text"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"-"`
	Metadata  datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"` // source file, section headers
	CreatedAt time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (DocChunk) TableName() string { return "doc_chunks" }
