package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionAutoHide      = "auto_hide"
	ActionClearAutoHide = "clear_auto_hide"
	ActionResetScore    = "reset_score"
	ActionResolveReport = "resolve_report"
	ActionAutoFlagText  = "auto_flag_text"
)

// ModerationLog is the append-only audit trail of moderation actions. A nil
// ActorID means the engine acted on its own.
type ModerationLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Action     string         `gorm:"size:50;not null;index" json:"action"`
	TargetType string         `gorm:"size:20;not null;index:idx_moderation_logs_target,priority:1" json:"target_type"`
	TargetID   string         `gorm:"size:64;not null;index:idx_moderation_logs_target,priority:2" json:"target_id"`
	ContentURL string         `gorm:"size:1000" json:"content_url,omitempty"`
	Reason     string         `gorm:"size:1000" json:"reason,omitempty"`
	Metadata   datatypes.JSON `json:"metadata"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (l *ModerationLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
