package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyOutcome describes what a single ApplyReport call changed.
type ApplyOutcome struct {
	Score       models.ContentReportScore
	// Applied is false when the report had already been aggregated.
	Applied     bool
	// NewReporter is true when the reporter joined the distinct set.
	NewReporter bool
	// NewlyHidden is true only for the call that crossed the threshold.
	NewlyHidden bool
}

// ReportAggregator owns every write to content_report_scores.
type ReportAggregator struct {
	db     *gorm.DB
	policy *config.Policy
	locks  *keyedMutex
	now    func() time.Time
}

func NewReportAggregator(db *gorm.DB, policy *config.Policy, now func() time.Time) *ReportAggregator {
	if now == nil {
		now = time.Now
	}
	return &ReportAggregator{db: db, policy: policy, locks: newKeyedMutex(), now: now}
}

// Threshold is the weight an item of contentType must reach at scale.
func (a *ReportAggregator) Threshold(contentType string, scale float64) float64 {
	t := a.policy.AutoHide.BaseThreshold * scale
	if contentType == config.ContentQuestion {
		t *= a.policy.AutoHide.QuestionMultiplier
	}
	return t
}

// ApplyReport folds an existing report into its content score. Calling it
// again for the same report is a no-op that returns the current score.
func (a *ReportAggregator) ApplyReport(ctx context.Context, reportID uuid.UUID, scale float64) (ApplyOutcome, error) {
	var report models.ContentReport
	if err := a.db.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyOutcome{}, ErrReportNotFound
		}
		return ApplyOutcome{}, storageErr("load report", err)
	}

	unlock := a.locks.Lock(contentKey(report.ContentType, report.ContentID))
	defer unlock()

	var out ApplyOutcome
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = a.applyReportTx(tx, &report, scale, a.now())
		return err
	})
	if err != nil {
		return ApplyOutcome{}, storageErr("apply report", err)
	}
	return out, nil
}

// applyReportTx must run inside a transaction with the content key held.
func (a *ReportAggregator) applyReportTx(tx *gorm.DB, report *models.ContentReport, scale float64, now time.Time) (ApplyOutcome, error) {
	claim := tx.Model(&models.ContentReport{}).
		Where("id = ? AND aggregated_at IS NULL", report.ID).
		Update("aggregated_at", now)
	if claim.Error != nil {
		return ApplyOutcome{}, claim.Error
	}
	if claim.RowsAffected == 0 {
		score, err := findScore(tx, report.ContentType, report.ContentID)
		if err != nil {
			return ApplyOutcome{}, err
		}
		return ApplyOutcome{Score: score}, nil
	}
	report.AggregatedAt = &now

	score, err := lockScore(tx, report.ContentType, report.ContentID)
	if err != nil {
		return ApplyOutcome{}, err
	}

	member := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ContentReportReporter{
		ContentType: report.ContentType,
		ContentID:   report.ContentID,
		UserID:      report.UserID,
	})
	if member.Error != nil {
		return ApplyOutcome{}, member.Error
	}

	out := ApplyOutcome{Applied: true, NewReporter: member.RowsAffected > 0}
	score.ReportsCount++
	if out.NewReporter {
		score.ReportersCount++
	}
	score.WeightTotal += report.Weight
	score.LastReportAt = &now
	score.LastRecomputedAt = &now

	if !score.IsAutoHidden() {
		score.SiteScale = scale
		score.WeightThreshold = a.Threshold(report.ContentType, scale)
		if score.ReportsCount >= a.policy.AutoHide.MinimumReports && score.WeightTotal >= score.WeightThreshold {
			score.AutoHiddenAt = &now
			score.AutoAction = true
			out.NewlyHidden = true
		}
	}

	if err := tx.Save(&score).Error; err != nil {
		return ApplyOutcome{}, err
	}

	if out.NewlyHidden {
		report.AutoAction = true
		if err := tx.Model(&models.ContentReport{}).Where("id = ?", report.ID).Update("auto_action", true).Error; err != nil {
			return ApplyOutcome{}, err
		}
		reporters := tx.Model(&models.ContentReportReporter{}).
			Select("user_id").
			Where("content_type = ? AND content_id = ?", report.ContentType, report.ContentID)
		if err := tx.Model(&models.ReportWeightProfile{}).
			Where("user_id IN (?)", reporters).
			UpdateColumn("reports_auto_hidden", gorm.Expr("reports_auto_hidden + ?", 1)).Error; err != nil {
			return ApplyOutcome{}, err
		}
	}

	out.Score = score
	return out, nil
}

// ClearAutoHide lifts an automatic hide. Counters stay as they are, so the
// item will not hide again until a reset or further reports.
func (a *ReportAggregator) ClearAutoHide(ctx context.Context, actorID *uuid.UUID, contentType, contentID string) (models.ContentReportScore, bool, error) {
	unlock := a.locks.Lock(contentKey(contentType, contentID))
	defer unlock()

	var (
		score   models.ContentReportScore
		changed bool
	)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		score, err = findScoreForUpdate(tx, contentType, contentID)
		if err != nil {
			return err
		}
		if !score.IsAutoHidden() {
			return nil
		}
		now := a.now()
		meta := score.Meta.Data()
		meta.RestoreCount++
		meta.LastRestoreAt = &now
		meta.LastRestoreBy = actorID
		score.Meta = datatypes.NewJSONType(meta)
		score.AutoHiddenAt = nil
		score.AutoAction = false
		score.LastRecomputedAt = &now
		changed = true
		return tx.Save(&score).Error
	})
	if err != nil {
		return models.ContentReportScore{}, false, storageErr("clear auto hide", err)
	}
	return score, changed, nil
}

// ResetScore zeroes the counters and the distinct reporter set. Hide state is
// untouched; that is ClearAutoHide's job.
func (a *ReportAggregator) ResetScore(ctx context.Context, actorID *uuid.UUID, contentType, contentID string) (models.ContentReportScore, error) {
	unlock := a.locks.Lock(contentKey(contentType, contentID))
	defer unlock()

	var score models.ContentReportScore
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		score, err = findScoreForUpdate(tx, contentType, contentID)
		if err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", contentType, contentID).
			Delete(&models.ContentReportReporter{}).Error; err != nil {
			return err
		}
		now := a.now()
		meta := score.Meta.Data()
		meta.ResetCount++
		meta.LastResetAt = &now
		meta.LastResetBy = actorID
		score.Meta = datatypes.NewJSONType(meta)
		score.ReportsCount = 0
		score.ReportersCount = 0
		score.WeightTotal = 0
		score.LastRecomputedAt = &now
		return tx.Save(&score).Error
	})
	if err != nil {
		return models.ContentReportScore{}, storageErr("reset score", err)
	}
	return score, nil
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// lockScore makes sure the row exists, then locks it.
func lockScore(tx *gorm.DB, contentType, contentID string) (models.ContentReportScore, error) {
	seed := models.ContentReportScore{ContentType: contentType, ContentID: contentID, SiteScale: 1}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return models.ContentReportScore{}, err
	}
	return findScoreForUpdate(tx, contentType, contentID)
}

func findScoreForUpdate(tx *gorm.DB, contentType, contentID string) (models.ContentReportScore, error) {
	return findScore(forUpdate(tx), contentType, contentID)
}

func findScore(tx *gorm.DB, contentType, contentID string) (models.ContentReportScore, error) {
	var score models.ContentReportScore
	err := tx.Where("content_type = ? AND content_id = ?", contentType, contentID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return score, ErrScoreNotFound
	}
	return score, err
}
