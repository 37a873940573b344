package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReasonSpam      = "spam"
	ReasonAbuse     = "abuse"
	ReasonOfftopic  = "offtopic"
	ReasonOther     = "other"
	ReasonAdminFlag = "admin_flag"
)

var ReportReasons = []string{ReasonSpam, ReasonAbuse, ReasonOfftopic, ReasonOther, ReasonAdminFlag}

const (
	ResolutionPending   = "pending"
	ResolutionConfirmed = "confirmed"
	ResolutionRejected  = "rejected"
)

// ReportMeta snapshots the calibration a report was weighed against.
type ReportMeta struct {
	SiteScale float64 `json:"site_scale"`
	Threshold float64 `json:"threshold"`
}

// ContentReport is one report event. Rows are append-only: only the
// resolution fields and the aggregation marker change after creation, and the
// weight snapshot is never recomputed.
type ContentReport struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID                      `gorm:"type:uuid;not null;index" json:"user_id"`
	ReporterRole   string                         `gorm:"size:20;not null" json:"reporter_role"`
	RoleWeight     float64                        `gorm:"not null" json:"role_weight"`
	ReporterWeight float64                        `gorm:"not null" json:"reporter_weight"`
	ReporterTrust  float64                        `gorm:"not null" json:"reporter_trust"`
	Weight         float64                        `gorm:"not null" json:"weight"`
	ContentType    string                         `gorm:"size:20;not null;index:idx_content_reports_content,priority:1" json:"content_type"`
	ContentID      string                         `gorm:"size:64;not null;index:idx_content_reports_content,priority:2" json:"content_id"`
	ContentURL     string                         `gorm:"size:1000" json:"content_url"`
	Reason         string                         `gorm:"size:20;not null" json:"reason"`
	Details        string                         `gorm:"size:2000" json:"details,omitempty"`
	ResolvedStatus string                         `gorm:"size:20;not null;default:'pending';index" json:"resolved_status"`
	ResolvedAt     *time.Time                     `json:"resolved_at,omitempty"`
	ResolvedBy     *uuid.UUID                     `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolutionNote string                         `gorm:"size:1000" json:"resolution_note,omitempty"`
	AutoAction     bool                           `gorm:"not null;default:false" json:"auto_action"`
	AggregatedAt   *time.Time                     `json:"aggregated_at,omitempty"`
	Meta           datatypes.JSONType[ReportMeta] `json:"meta"`
	CreatedAt      time.Time                      `gorm:"index" json:"created_at"`
}

func (r *ContentReport) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

func (r *ContentReport) IsResolved() bool {
	return r.ResolvedStatus == ResolutionConfirmed || r.ResolvedStatus == ResolutionRejected
}
