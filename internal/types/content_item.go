package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentItem stores one generated draft or channel variant. PlanID and
// RunID are cleared (not the row deleted) when a published run survives its
// plan's deletion.
type ContentItem struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	PlanID *uuid.UUID `gorm:"type:uuid;index" json:"plan_id,omitempty"`
	RunID  *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`

	Title     string `gorm:"not null" json:"title"`
	Body      string `gorm:"type:text" json:"body"`
	Channel   string `json:"channel,omitempty"`
	IsVariant bool   `gorm:"not null;default:false" json:"is_variant"`

	HumanEdited bool       `gorm:"not null;default:false" json:"human_edited"`
	EditedBy    *uuid.UUID `gorm:"type:uuid" json:"edited_by,omitempty"`
	EditNotes   string     `json:"edit_notes,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedBy uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	UpdatedBy uuid.UUID      `gorm:"type:uuid" json:"updated_by"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContentItem) TableName() string { return "content_item" }
