package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/notify"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxContentIDLen  = 64
	maxDetailsLen    = 2000
	maxContentURLLen = 1000
	maxNoteLen       = 1000
)

type SubmitReportInput struct {
	ReporterID  uuid.UUID
	ContentType string
	ContentID   string
	Reason      string
	Details     string
	ContentURL  string
}

type SubmitResult struct {
	Report      models.ContentReport
	Score       models.ContentReportScore
	AutoHidden  bool
	// NewlyHidden is true only for the report that triggered the hide.
	NewlyHidden bool
}

type ScreenInput struct {
	AuthorID    uuid.UUID
	ContentType string
	ContentID   string
	ContentURL  string
	Text        string
}

type ReportFilter struct {
	ContentType string
	ContentID   string
	Status      string
	ReporterID  *uuid.UUID
	Limit       int
	Offset      int
}

// Options carries the collaborators of the engine. Zero values fall back to
// database-backed defaults.
type Options struct {
	Now      func() time.Time
	Scale    ScaleProvider
	Activity ActivitySource
	Recorder AuditRecorder
	Notifier notify.Notifier
}

// ModerationService is the entry point of the moderation engine. Every
// operation runs synchronously in the caller's goroutine.
type ModerationService struct {
	db         *gorm.DB
	policy     *config.Policy
	trust      *TrustScorer
	weights    *ReportWeightCalculator
	aggregator *ReportAggregator
	text       *TextScorer
	scale      ScaleProvider
	activity   ActivitySource
	recorder   AuditRecorder
	notifier   notify.Notifier
	now        func() time.Time
	userLocks  *keyedMutex
}

func NewModerationService(db *gorm.DB, policy *config.Policy, opts Options) (*ModerationService, error) {
	if policy == nil {
		return nil, configErr("policy is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scale == nil {
		opts.Scale = NewSiteScaleEstimator(policy, GormReportVolume{DB: db}, nil, opts.Now)
	}
	if opts.Activity == nil {
		opts.Activity = NewGormActivitySource(db)
	}
	if opts.Recorder == nil {
		opts.Recorder = NewGormAuditRecorder(db)
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	return &ModerationService{
		db:         db,
		policy:     policy,
		trust:      NewTrustScorer(policy),
		weights:    NewReportWeightCalculator(policy),
		aggregator: NewReportAggregator(db, policy, opts.Now),
		text:       NewTextScorer(policy),
		scale:      opts.Scale,
		activity:   opts.Activity,
		recorder:   opts.Recorder,
		notifier:   opts.Notifier,
		now:        opts.Now,
		userLocks:  newKeyedMutex(),
	}, nil
}

func (s *ModerationService) Policy() *config.Policy {
	return s.policy
}

// SubmitReport records a report, folds its weight into the content score and
// hides the content once the threshold is crossed.
func (s *ModerationService) SubmitReport(ctx context.Context, in SubmitReportInput) (*SubmitResult, error) {
	in.ContentType = strings.TrimSpace(in.ContentType)
	in.ContentID = strings.TrimSpace(in.ContentID)
	in.Reason = strings.TrimSpace(in.Reason)
	in.Details = strings.TrimSpace(in.Details)
	in.ContentURL = strings.TrimSpace(in.ContentURL)

	if err := validateReportInput(in); err != nil {
		reportsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	role, err := s.activity.UserRole(ctx, in.ReporterID)
	if err != nil {
		return nil, err
	}
	if in.Reason == models.ReasonAdminFlag && !models.IsModerator(role) {
		reportsRejected.WithLabelValues("validation").Inc()
		return nil, validationErr("reason %q is reserved for moderators", in.Reason)
	}

	author, err := s.activity.ContentAuthor(ctx, in.ContentType, in.ContentID)
	if err != nil {
		return nil, err
	}
	if author == in.ReporterID {
		reportsRejected.WithLabelValues("self_report").Inc()
		return nil, ErrSelfReport
	}

	scale, err := s.scale.CurrentScale(ctx)
	if err != nil {
		return nil, err
	}

	unlockUser := s.userLocks.Lock(userKey(in.ReporterID.String()))
	defer unlockUser()

	profile, err := s.refreshProfile(ctx, in.ReporterID, role, false)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.weights.WeightFor(role, profile.TrustScore)
	if err != nil {
		return nil, err
	}

	unlockContent := s.aggregator.locks.Lock(contentKey(in.ContentType, in.ContentID))
	defer unlockContent()

	now := s.now()
	report := models.ContentReport{
		UserID:         in.ReporterID,
		ReporterRole:   breakdown.Role,
		RoleWeight:     breakdown.RoleWeight,
		ReporterWeight: breakdown.ReporterWeight,
		ReporterTrust:  breakdown.TrustScore,
		Weight:         breakdown.Weight,
		ContentType:    in.ContentType,
		ContentID:      in.ContentID,
		ContentURL:     in.ContentURL,
		Reason:         in.Reason,
		Details:        in.Details,
		ResolvedStatus: models.ResolutionPending,
		Meta: datatypes.NewJSONType(models.ReportMeta{
			SiteScale: scale,
			Threshold: s.aggregator.Threshold(in.ContentType, scale),
		}),
		CreatedAt: now,
	}

	var out ApplyOutcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !s.policy.Reports.AllowDuplicates {
			var n int64
			if err := tx.Model(&models.ContentReport{}).
				Where("user_id = ? AND content_type = ? AND content_id = ?", in.ReporterID, in.ContentType, in.ContentID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrDuplicateReport
			}
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		var err error
		if out, err = s.aggregator.applyReportTx(tx, &report, scale, now); err != nil {
			return err
		}
		return tx.Model(&models.ReportWeightProfile{}).
			Where("user_id = ?", in.ReporterID).
			UpdateColumn("reports_submitted", gorm.Expr("reports_submitted + ?", 1)).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReport) {
			reportsRejected.WithLabelValues("duplicate").Inc()
		}
		return nil, storageErr("submit report", err)
	}

	reportsSubmitted.WithLabelValues(in.ContentType, in.Reason).Inc()
	reportWeights.Observe(report.Weight)
	slog.Info("report submitted",
		"user_id", in.ReporterID.String(),
		"content_type", in.ContentType,
		"content_id", in.ContentID,
		"weight", report.Weight,
		"weight_total", out.Score.WeightTotal,
	)

	if out.NewlyHidden {
		s.afterAutoHide(ctx, &report, out.Score, author)
	}

	return &SubmitResult{
		Report:      report,
		Score:       out.Score,
		AutoHidden:  out.Score.IsAutoHidden(),
		NewlyHidden: out.NewlyHidden,
	}, nil
}

// ApplyReport re-applies a stored report; safe to call any number of times.
func (s *ModerationService) ApplyReport(ctx context.Context, reportID uuid.UUID) (*ApplyOutcome, error) {
	scale, err := s.scale.CurrentScale(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.aggregator.ApplyReport(ctx, reportID, scale)
	if err != nil {
		return nil, err
	}
	if out.NewlyHidden {
		var report models.ContentReport
		if err := s.db.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
			return nil, storageErr("reload report", err)
		}
		author, err := s.activity.ContentAuthor(ctx, report.ContentType, report.ContentID)
		if err != nil {
			slog.Warn("content author lookup failed", "content_type", report.ContentType, "content_id", report.ContentID, "error", err)
		}
		s.afterAutoHide(ctx, &report, out.Score, author)
	}
	return &out, nil
}

func (s *ModerationService) AnalyzeText(text, contentType string) (Verdict, error) {
	v, err := s.text.Analyze(text, contentType)
	if err != nil {
		return Verdict{}, err
	}
	textVerdictCount.WithLabelValues(contentType, v.Status).Inc()
	return v, nil
}

// ScreenContent scores a freshly published body and, when it is flagged,
// leaves an audit entry and asks moderators to take a look.
func (s *ModerationService) ScreenContent(ctx context.Context, in ScreenInput) (Verdict, error) {
	if !slices.Contains(config.ContentTypes, in.ContentType) {
		return Verdict{}, validationErr("unknown content type %q", in.ContentType)
	}
	if strings.TrimSpace(in.ContentID) == "" {
		return Verdict{}, validationErr("content id is required")
	}
	v, err := s.AnalyzeText(in.Text, in.ContentType)
	if err != nil {
		return Verdict{}, err
	}
	if !v.Flagged {
		return v, nil
	}

	names := make([]string, 0, len(v.Signals))
	for _, sig := range v.Signals {
		names = append(names, sig.Name)
	}
	s.record(ctx, AuditEntry{
		Action:     models.ActionAutoFlagText,
		TargetType: in.ContentType,
		TargetID:   in.ContentID,
		ContentURL: in.ContentURL,
		Reason:     "text heuristics: " + strings.Join(names, ", "),
		Metadata: map[string]any{
			"author_id":       in.AuthorID.String(),
			"score":           v.Score,
			"score_threshold": v.ScoreThreshold,
			"signals":         v.Signals,
		},
	})
	s.notify(ctx, notify.Request{
		Kind:        notify.KindTextFlagged,
		Audience:    notify.AudienceModerators,
		ContentType: in.ContentType,
		ContentID:   in.ContentID,
		ContentURL:  in.ContentURL,
		Message:     fmt.Sprintf("New %s was flagged by text heuristics (score %.2f)", in.ContentType, v.Score),
		CreatedAt:   s.now(),
	})
	return v, nil
}

// RecomputeTrust rebuilds a user's profile from fresh activity counts.
func (s *ModerationService) RecomputeTrust(ctx context.Context, userID uuid.UUID) (*models.ReportWeightProfile, error) {
	role, err := s.activity.UserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock := s.userLocks.Lock(userKey(userID.String()))
	defer unlock()

	profile, err := s.refreshProfile(ctx, userID, role, true)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RecomputeAllTrust walks every existing profile in batches. A failure on one
// user is logged and does not stop the pass.
func (s *ModerationService) RecomputeAllTrust(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	done := 0
	var batch []models.ReportWeightProfile
	res := s.db.WithContext(ctx).Select("id", "user_id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		ids := make([]uuid.UUID, 0, len(batch))
		for _, p := range batch {
			ids = append(ids, p.UserID)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.RecomputeTrust(ctx, id); err != nil {
				slog.Warn("trust recompute failed", "user_id", id.String(), "error", err)
				continue
			}
			done++
		}
		return nil
	})
	if res.Error != nil {
		return done, storageErr("recompute all trust", res.Error)
	}
	return done, nil
}

func (s *ModerationService) CurrentSiteScale(ctx context.Context) (float64, error) {
	return s.scale.CurrentScale(ctx)
}

// ClearAutoHide restores an automatically hidden item. Counters are kept.
func (s *ModerationService) ClearAutoHide(ctx context.Context, actorID uuid.UUID, contentType, contentID string) (*models.ContentReportScore, error) {
	if err := validateContentKey(contentType, contentID); err != nil {
		return nil, err
	}
	actor := actorRef(actorID)
	score, changed, err := s.aggregator.ClearAutoHide(ctx, actor, contentType, contentID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.record(ctx, AuditEntry{
			Actor:      actor,
			Action:     models.ActionClearAutoHide,
			TargetType: contentType,
			TargetID:   contentID,
			Metadata: map[string]any{
				"reports_count":   score.ReportsCount,
				"reporters_count": score.ReportersCount,
				"weight_total":    score.WeightTotal,
			},
		})
	}
	return &score, nil
}

// ResetScore is the only operation that lowers a score's counters.
func (s *ModerationService) ResetScore(ctx context.Context, adminID uuid.UUID, contentType, contentID, reason string) (*models.ContentReportScore, error) {
	if err := validateContentKey(contentType, contentID); err != nil {
		return nil, err
	}
	var before models.ContentReportScore
	if err := s.db.WithContext(ctx).Where("content_type = ? AND content_id = ?", contentType, contentID).First(&before).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScoreNotFound
		}
		return nil, storageErr("load score", err)
	}
	actor := actorRef(adminID)
	score, err := s.aggregator.ResetScore(ctx, actor, contentType, contentID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionResetScore,
		TargetType: contentType,
		TargetID:   contentID,
		Reason:     reason,
		Metadata: map[string]any{
			"previous_reports_count":   before.ReportsCount,
			"previous_reporters_count": before.ReportersCount,
			"previous_weight_total":    before.WeightTotal,
		},
	})
	return &score, nil
}

// ResolveReport records a moderator's ruling on a report and feeds it back
// into the reporter's trust. A report is resolved at most once.
func (s *ModerationService) ResolveReport(ctx context.Context, moderatorID, reportID uuid.UUID, status, note string) (*models.ContentReport, error) {
	if status != models.ResolutionConfirmed && status != models.ResolutionRejected {
		return nil, validationErr("status must be %q or %q", models.ResolutionConfirmed, models.ResolutionRejected)
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLen {
		return nil, validationErr("note must be at most %d characters", maxNoteLen)
	}
	modRole, err := s.activity.UserRole(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	if !models.IsModerator(modRole) {
		return nil, ErrForbidden
	}

	var report models.ContentReport
	if err := s.db.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, storageErr("load report", err)
	}
	if report.IsResolved() {
		return nil, ErrAlreadyResolved
	}

	role, err := s.activity.UserRole(ctx, report.UserID)
	if err != nil {
		return nil, err
	}

	unlock := s.userLocks.Lock(userKey(report.UserID.String()))
	defer unlock()

	now := s.now()
	snap, err := s.activity.ActivitySnapshot(ctx, report.UserID, now)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.ContentReport{}).
			Where("id = ? AND resolved_status = ?", reportID, models.ResolutionPending).
			Updates(map[string]any{
				"resolved_status": status,
				"resolved_at":     now,
				"resolved_by":     moderatorID,
				"resolution_note": note,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return ErrAlreadyResolved
		}

		profile, err := lockProfile(tx, report.UserID)
		if err != nil {
			return err
		}
		if status == models.ResolutionConfirmed {
			profile.ReportsConfirmed++
		} else {
			profile.ReportsRejected++
		}
		if err := s.trust.Apply(&profile, role, snap, now); err != nil {
			return err
		}
		return tx.Save(&profile).Error
	})
	if err != nil {
		return nil, storageErr("resolve report", err)
	}
	trustRecomputeCount.Inc()

	report.ResolvedStatus = status
	report.ResolvedAt = &now
	report.ResolvedBy = &moderatorID
	report.ResolutionNote = note

	s.record(ctx, AuditEntry{
		Actor:      &moderatorID,
		Action:     models.ActionResolveReport,
		TargetType: report.ContentType,
		TargetID:   report.ContentID,
		ContentURL: report.ContentURL,
		Reason:     note,
		Metadata: map[string]any{
			"report_id":   report.ID.String(),
			"reporter_id": report.UserID.String(),
			"status":      status,
		},
	})
	return &report, nil
}

func (s *ModerationService) ListReports(ctx context.Context, f ReportFilter) ([]models.ContentReport, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	q := s.db.WithContext(ctx).Model(&models.ContentReport{})
	if f.ContentType != "" {
		q = q.Where("content_type = ?", f.ContentType)
	}
	if f.ContentID != "" {
		q = q.Where("content_id = ?", f.ContentID)
	}
	if f.Status != "" {
		q = q.Where("resolved_status = ?", f.Status)
	}
	if f.ReporterID != nil {
		q = q.Where("user_id = ?", *f.ReporterID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count reports", err)
	}
	var reports []models.ContentReport
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&reports).Error; err != nil {
		return nil, 0, storageErr("list reports", err)
	}
	return reports, total, nil
}

func (s *ModerationService) GetScore(ctx context.Context, contentType, contentID string) (*models.ContentReportScore, error) {
	if err := validateContentKey(contentType, contentID); err != nil {
		return nil, err
	}
	score, err := findScore(s.db.WithContext(ctx), contentType, contentID)
	if err != nil {
		return nil, storageErr("load score", err)
	}
	return &score, nil
}

// refreshProfile loads the user's profile, creating it on first use, and
// recomputes trust when forced, stale or the role changed. Caller holds the
// user lock.
func (s *ModerationService) refreshProfile(ctx context.Context, userID uuid.UUID, role string, force bool) (models.ReportWeightProfile, error) {
	now := s.now()
	var profile models.ReportWeightProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		force = true
	case err != nil:
		return profile, storageErr("load profile", err)
	}
	if !force && !s.profileStale(&profile, role, now) {
		return profile, nil
	}

	snap, err := s.activity.ActivitySnapshot(ctx, userID, now)
	if err != nil {
		return profile, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if profile, err = lockProfile(tx, userID); err != nil {
			return err
		}
		if err := s.trust.Apply(&profile, role, snap, now); err != nil {
			return err
		}
		return tx.Save(&profile).Error
	})
	if err != nil {
		return profile, storageErr("save profile", err)
	}
	trustRecomputeCount.Inc()
	return profile, nil
}

func (s *ModerationService) profileStale(p *models.ReportWeightProfile, role string, now time.Time) bool {
	if p.LastComputedAt == nil || p.Meta.Data().Role != role {
		return true
	}
	return now.Sub(*p.LastComputedAt) >= s.policy.Trust.RefreshInterval()
}

func (s *ModerationService) afterAutoHide(ctx context.Context, report *models.ContentReport, score models.ContentReportScore, author uuid.UUID) {
	autoHideCount.WithLabelValues(report.ContentType).Inc()
	slog.Warn("content auto hidden",
		"action", models.ActionAutoHide,
		"content_type", report.ContentType,
		"content_id", report.ContentID,
		"weight_total", score.WeightTotal,
		"threshold", score.WeightThreshold,
	)

	s.record(ctx, AuditEntry{
		Action:     models.ActionAutoHide,
		TargetType: report.ContentType,
		TargetID:   report.ContentID,
		ContentURL: report.ContentURL,
		Reason:     "report weight threshold reached",
		Metadata: map[string]any{
			"report_id":        report.ID.String(),
			"reports_count":    score.ReportsCount,
			"reporters_count":  score.ReportersCount,
			"weight_total":     score.WeightTotal,
			"weight_threshold": score.WeightThreshold,
			"site_scale":       score.SiteScale,
		},
	})

	msg := fmt.Sprintf("A %s was hidden automatically after community reports", report.ContentType)
	if author != uuid.Nil {
		s.notify(ctx, notify.Request{
			Kind:        notify.KindAutoHidden,
			Recipients:  []string{author.String()},
			ContentType: report.ContentType,
			ContentID:   report.ContentID,
			ContentURL:  report.ContentURL,
			Message:     msg,
			CreatedAt:   s.now(),
		})
	}
	s.notify(ctx, notify.Request{
		Kind:        notify.KindAutoHidden,
		Audience:    notify.AudienceModerators,
		ContentType: report.ContentType,
		ContentID:   report.ContentID,
		ContentURL:  report.ContentURL,
		Message:     msg,
		CreatedAt:   s.now(),
	})
}

func (s *ModerationService) record(ctx context.Context, entry AuditEntry) {
	if err := s.recorder.Record(ctx, entry); err != nil {
		sinkFailureCount.WithLabelValues("audit").Inc()
		slog.Error("moderation audit write failed",
			"action", entry.Action,
			"content_type", entry.TargetType,
			"content_id", entry.TargetID,
			"error", err.Error(),
		)
		sentry.CaptureException(err)
	}
}

func (s *ModerationService) notify(ctx context.Context, req notify.Request) {
	if err := s.notifier.Notify(ctx, req); err != nil {
		sinkFailureCount.WithLabelValues("notify").Inc()
		slog.Error("notification request failed",
			"action", req.Kind,
			"content_type", req.ContentType,
			"content_id", req.ContentID,
			"error", err.Error(),
		)
		sentry.CaptureException(err)
	}
}

// lockProfile makes sure the profile row exists, then locks it.
func lockProfile(tx *gorm.DB, userID uuid.UUID) (models.ReportWeightProfile, error) {
	seed := models.ReportWeightProfile{UserID: userID, TrustScore: 1, Weight: 1}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return models.ReportWeightProfile{}, err
	}
	var profile models.ReportWeightProfile
	err := forUpdate(tx).Where("user_id = ?", userID).First(&profile).Error
	return profile, err
}

func validateReportInput(in SubmitReportInput) error {
	if in.ReporterID == uuid.Nil {
		return validationErr("reporter id is required")
	}
	if err := validateContentKey(in.ContentType, in.ContentID); err != nil {
		return err
	}
	if !slices.Contains(models.ReportReasons, in.Reason) {
		return validationErr("reason must be one of %s", strings.Join(models.ReportReasons, ", "))
	}
	if utf8.RuneCountInString(in.Details) > maxDetailsLen {
		return validationErr("details must be at most %d characters", maxDetailsLen)
	}
	if utf8.RuneCountInString(in.ContentURL) > maxContentURLLen {
		return validationErr("content url must be at most %d characters", maxContentURLLen)
	}
	return nil
}

func validateContentKey(contentType, contentID string) error {
	if !slices.Contains(config.ContentTypes, contentType) {
		return validationErr("content type must be one of %s", strings.Join(config.ContentTypes, ", "))
	}
	if contentID == "" || len(contentID) > maxContentIDLen {
		return validationErr("content id must be 1-%d characters", maxContentIDLen)
	}
	return nil
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
