package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertReport(t *testing.T, db *gorm.DB, reporter uuid.UUID, contentType, contentID string, weight float64) uuid.UUID {
	t.Helper()
	r := models.ContentReport{
		UserID:         reporter,
		ReporterRole:   models.RoleUser,
		RoleWeight:     1,
		ReporterWeight: weight,
		ReporterTrust:  weight,
		Weight:         weight,
		ContentType:    contentType,
		ContentID:      contentID,
		Reason:         models.ReasonSpam,
		ResolvedStatus: models.ResolutionPending,
		CreatedAt:      testNow,
	}
	require.NoError(t, db.Create(&r).Error)
	return r.ID
}

func TestAggregatorQuestionThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	contentID := uuid.NewString()
	reporters := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, r := range reporters {
		require.NoError(t, db.Create(&models.ReportWeightProfile{UserID: r, TrustScore: 1, Weight: 1}).Error)
	}

	out, err := agg.ApplyReport(ctx, insertReport(t, db, reporters[0], config.ContentQuestion, contentID, 2.5), 1)
	require.NoError(t, err)
	assert.True(out.Applied)
	assert.InDelta(7.5, out.Score.WeightThreshold, 1e-9)
	assert.False(out.Score.IsAutoHidden())

	out, err = agg.ApplyReport(ctx, insertReport(t, db, reporters[1], config.ContentQuestion, contentID, 2.5), 1)
	require.NoError(t, err)
	assert.False(out.Score.IsAutoHidden())

	third := insertReport(t, db, reporters[2], config.ContentQuestion, contentID, 2.5)
	out, err = agg.ApplyReport(ctx, third, 1)
	require.NoError(t, err)
	assert.True(out.NewlyHidden)
	assert.True(out.Score.IsAutoHidden())
	assert.True(out.Score.AutoAction)
	assert.Equal(3, out.Score.ReportsCount)
	assert.Equal(3, out.Score.ReportersCount)
	assert.InDelta(7.5, out.Score.WeightTotal, 1e-9)
	assert.Equal(testNow, *out.Score.AutoHiddenAt)

	var report models.ContentReport
	require.NoError(t, db.First(&report, "id = ?", third).Error)
	assert.True(report.AutoAction)
	assert.NotNil(report.AggregatedAt)

	var profiles []models.ReportWeightProfile
	require.NoError(t, db.Find(&profiles).Error)
	require.Len(t, profiles, 3)
	for _, p := range profiles {
		assert.Equal(1, p.ReportsAutoHidden)
	}
}

func TestAggregatorMinimumReports(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	contentID := uuid.NewString()
	out, err := agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, contentID, 5), 1)
	require.NoError(t, err)
	out, err = agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, contentID, 5), 1)
	require.NoError(t, err)
	assert.InDelta(10.0, out.Score.WeightTotal, 1e-9)
	assert.False(out.Score.IsAutoHidden(), "two reports never hide, whatever their weight")
}

func TestAggregatorIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	id := insertReport(t, db, uuid.New(), config.ContentPost, "p1", 1.5)
	first, err := agg.ApplyReport(ctx, id, 1)
	require.NoError(t, err)
	assert.True(first.Applied)

	for i := 0; i < 3; i++ {
		again, err := agg.ApplyReport(ctx, id, 1)
		require.NoError(t, err)
		assert.False(again.Applied)
		assert.Equal(1, again.Score.ReportsCount)
		assert.InDelta(1.5, again.Score.WeightTotal, 1e-9)
	}

	_, err = agg.ApplyReport(ctx, uuid.New(), 1)
	assert.ErrorIs(err, ErrReportNotFound)
}

func TestAggregatorMonotonicAndSticky(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	var prevTotal float64
	var prevCount int
	var hiddenAt *models.ContentReportScore
	for i := 0; i < 6; i++ {
		out, err := agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, "p1", 2), 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(out.Score.WeightTotal, prevTotal)
		assert.Greater(out.Score.ReportsCount, prevCount)
		prevTotal, prevCount = out.Score.WeightTotal, out.Score.ReportsCount

		if out.NewlyHidden {
			assert.Nil(hiddenAt, "auto hide fired twice")
			s := out.Score
			hiddenAt = &s
		}
	}
	require.NotNil(t, hiddenAt)
	assert.Equal(3, hiddenAt.ReportsCount)

	score, err := findScore(db, config.ContentPost, "p1")
	require.NoError(t, err)
	assert.Equal(6, score.ReportsCount)
	assert.InDelta(12.0, score.WeightTotal, 1e-9)
	assert.Equal(hiddenAt.WeightThreshold, score.WeightThreshold)
}

func TestAggregatorDistinctReporters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	reporter := uuid.New()
	out, err := agg.ApplyReport(ctx, insertReport(t, db, reporter, config.ContentPost, "p1", 1), 1)
	require.NoError(t, err)
	assert.True(out.NewReporter)

	out, err = agg.ApplyReport(ctx, insertReport(t, db, reporter, config.ContentPost, "p1", 1), 1)
	require.NoError(t, err)
	assert.False(out.NewReporter)
	assert.Equal(2, out.Score.ReportsCount)
	assert.Equal(1, out.Score.ReportersCount)
}

func TestAggregatorSiteScaleRaisesThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	var out ApplyOutcome
	for i := 0; i < 3; i++ {
		var err error
		out, err = agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, "p1", 2), 2)
		require.NoError(t, err)
	}
	assert.InDelta(10.0, out.Score.WeightThreshold, 1e-9)
	assert.Equal(2.0, out.Score.SiteScale)
	assert.False(out.Score.IsAutoHidden())
}

func TestAggregatorConcurrentReports(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = insertReport(t, db, uuid.New(), config.ContentComment, "c1", 0.5)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := agg.ApplyReport(ctx, id, 1)
			assert.NoError(err)
		}(id)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := agg.ApplyReport(ctx, id, 1)
			assert.NoError(err)
		}(id)
	}
	wg.Wait()

	score, err := findScore(db, config.ContentComment, "c1")
	require.NoError(t, err)
	assert.Equal(20, score.ReportsCount)
	assert.Equal(20, score.ReportersCount)
	assert.InDelta(10.0, score.WeightTotal, 1e-9)
}

func TestAggregatorClearAndReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	agg := NewReportAggregator(db, testPolicy(t), fixedClock)
	actor := uuid.New()

	_, _, err := agg.ClearAutoHide(ctx, &actor, config.ContentPost, "p1")
	assert.ErrorIs(err, ErrScoreNotFound)

	for i := 0; i < 3; i++ {
		_, err := agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, "p1", 2), 1)
		require.NoError(t, err)
	}

	score, changed, err := agg.ClearAutoHide(ctx, &actor, config.ContentPost, "p1")
	require.NoError(t, err)
	assert.True(changed)
	assert.False(score.IsAutoHidden())
	assert.False(score.AutoAction)
	assert.Equal(3, score.ReportsCount)
	assert.InDelta(6.0, score.WeightTotal, 1e-9)
	assert.Equal(1, score.Meta.Data().RestoreCount)
	assert.Equal(actor, *score.Meta.Data().LastRestoreBy)

	_, changed, err = agg.ClearAutoHide(ctx, &actor, config.ContentPost, "p1")
	require.NoError(t, err)
	assert.False(changed)

	// counters are still past the threshold, so the next report hides again
	out, err := agg.ApplyReport(ctx, insertReport(t, db, uuid.New(), config.ContentPost, "p1", 2), 1)
	require.NoError(t, err)
	assert.True(out.NewlyHidden)

	score, err = agg.ResetScore(ctx, &actor, config.ContentPost, "p1")
	require.NoError(t, err)
	assert.Zero(score.ReportsCount)
	assert.Zero(score.ReportersCount)
	assert.Zero(score.WeightTotal)
	assert.True(score.IsAutoHidden(), "reset keeps the hide state")
	assert.Equal(1, score.Meta.Data().ResetCount)

	var members int64
	require.NoError(t, db.Model(&models.ContentReportReporter{}).Where("content_id = ?", "p1").Count(&members).Error)
	assert.Zero(members)
}
