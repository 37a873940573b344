package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScoreMeta records manual interventions on a score.
type ScoreMeta struct {
	ResetCount    int        `json:"reset_count,omitempty"`
	LastResetAt   *time.Time `json:"last_reset_at,omitempty"`
	LastResetBy   *uuid.UUID `json:"last_reset_by,omitempty"`
	RestoreCount  int        `json:"restore_count,omitempty"`
	LastRestoreAt *time.Time `json:"last_restore_at,omitempty"`
	LastRestoreBy *uuid.UUID `json:"last_restore_by,omitempty"`
}

// ContentReportScore is the running aggregate of reports against one content
// item and the sole authority for its auto-hide state.
type ContentReportScore struct {
	ID               uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	ContentType      string                        `gorm:"size:20;not null;uniqueIndex:idx_report_scores_content,priority:1" json:"content_type"`
	ContentID        string                        `gorm:"size:64;not null;uniqueIndex:idx_report_scores_content,priority:2" json:"content_id"`
	ReportsCount     int                           `gorm:"not null;default:0" json:"reports_count"`
	ReportersCount   int                           `gorm:"not null;default:0" json:"reporters_count"`
	WeightTotal      float64                       `gorm:"not null;default:0" json:"weight_total"`
	WeightThreshold  float64                       `gorm:"not null;default:0" json:"weight_threshold"`
	SiteScale        float64                       `gorm:"not null;default:1" json:"site_scale"`
	AutoHiddenAt     *time.Time                    `gorm:"index" json:"auto_hidden_at,omitempty"`
	AutoAction       bool                          `gorm:"not null;default:false" json:"auto_action"`
	LastReportAt     *time.Time                    `json:"last_report_at,omitempty"`
	LastRecomputedAt *time.Time                    `json:"last_recomputed_at,omitempty"`
	Meta             datatypes.JSONType[ScoreMeta] `json:"meta"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

func (s *ContentReportScore) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s *ContentReportScore) IsAutoHidden() bool {
	return s.AutoHiddenAt != nil
}

// ContentReportReporter is one member of the exact distinct-reporter set of a
// content item.
type ContentReportReporter struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContentType string    `gorm:"size:20;not null;uniqueIndex:idx_report_reporters_member,priority:1" json:"content_type"`
	ContentID   string    `gorm:"size:64;not null;uniqueIndex:idx_report_reporters_member,priority:2" json:"content_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_reporters_member,priority:3;index" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *ContentReportReporter) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
