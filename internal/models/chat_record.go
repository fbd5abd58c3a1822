package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRecord is one persisted conversation turn. A user row is inserted when
// the message arrives; the paired assistant row is inserted after the stream
// finishes, sharing the same client-supplied UUID.
type ChatRecord struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	// client correlation token, echoed back on every stream event
	UUID string `gorm:"column:uuid;type:varchar(64);index" json:"uuid"`

	Role  string `gorm:"column:role;type:varchar(32)" json:"role"`
	Model string `gorm:"column:model;type:varchar(128)" json:"model,omitempty"`

	Text  string         `gorm:"column:text;type:text" json:"text"`
	Image pq.StringArray `gorm:"column:image;type:text[]" json:"image,omitempty"`
	Video string         `gorm:"column:video;type:text" json:"video,omitempty"`

	ResponseStartTime *time.Time `gorm:"column:response_start_time;type:timestamptz" json:"response_start_time,omitempty"`
	ResponseEndTime   *time.Time `gorm:"column:response_end_time;type:timestamptz" json:"response_end_time,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ChatRecord) TableName() string { return "chat_records" }
