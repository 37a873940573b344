package services

import (
	"context"
	"encoding/json"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is one moderation action. A nil Actor means the engine itself.
type AuditEntry struct {
	Actor      *uuid.UUID
	Action     string
	TargetType string
	TargetID   string
	ContentURL string
	Reason     string
	Metadata   map[string]any
}

// AuditRecorder is the sink for moderation actions. Writes happen after the
// state change is committed and failures are never propagated.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type GormAuditRecorder struct {
	db *gorm.DB
}

var _ AuditRecorder = (*GormAuditRecorder)(nil)

func NewGormAuditRecorder(db *gorm.DB) *GormAuditRecorder {
	return &GormAuditRecorder{db: db}
}

func (r *GormAuditRecorder) Record(ctx context.Context, entry AuditEntry) error {
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&models.ModerationLog{
		ActorID:    entry.Actor,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		ContentURL: entry.ContentURL,
		Reason:     truncate(entry.Reason, 1000),
		Metadata:   datatypes.JSON(raw),
	}).Error
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
