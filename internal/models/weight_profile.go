package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivitySnapshot is the set of platform counters trust is derived from.
type ActivitySnapshot struct {
	Posts          int64   `json:"posts"`
	Comments       int64   `json:"comments"`
	Reviews        int64   `json:"reviews"`
	Follows        int64   `json:"follows"`
	Upvotes        int64   `json:"upvotes"`
	Saves          int64   `json:"saves"`
	AccountAgeDays float64 `json:"account_age_days"`
}

// ProfileMeta keeps the inputs of the last trust computation.
type ProfileMeta struct {
	Role     string           `json:"role"`
	Snapshot ActivitySnapshot `json:"snapshot"`
}

// ReportWeightProfile is the per-user trust state. It lives and dies with the
// user row.
type ReportWeightProfile struct {
	ID                uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	ReportsSubmitted  int                             `gorm:"not null;default:0" json:"reports_submitted"`
	ReportsConfirmed  int                             `gorm:"not null;default:0" json:"reports_confirmed"`
	ReportsRejected   int                             `gorm:"not null;default:0" json:"reports_rejected"`
	ReportsAutoHidden int                             `gorm:"not null;default:0" json:"reports_auto_hidden"`
	ActivityPoints    float64                         `gorm:"not null;default:0" json:"activity_points"`
	TrustScore        float64                         `gorm:"not null;default:1" json:"trust_score"`
	Weight            float64                         `gorm:"not null;default:1" json:"weight"`
	LastComputedAt    *time.Time                      `json:"last_computed_at,omitempty"`
	Meta              datatypes.JSONType[ProfileMeta] `json:"meta"`
	CreatedAt         time.Time                       `json:"created_at"`
	UpdatedAt         time.Time                       `json:"updated_at"`
}

func (p *ReportWeightProfile) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Resolved is the number of this user's reports a moderator has ruled on.
func (p *ReportWeightProfile) Resolved() int {
	return p.ReportsConfirmed + p.ReportsRejected
}
