package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/scalecache"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ScaleProvider yields the current site scale factor.
type ScaleProvider interface {
	CurrentScale(ctx context.Context) (float64, error)
}

// FixedScale is a ScaleProvider that never changes.
type FixedScale float64

func (f FixedScale) CurrentScale(context.Context) (float64, error) {
	return float64(f), nil
}

// ReportVolumeSource counts reports filed since a point in time.
type ReportVolumeSource interface {
	CountReportsSince(ctx context.Context, since time.Time) (int64, error)
}

// GormReportVolume counts rows of content_reports.
type GormReportVolume struct {
	DB *gorm.DB
}

func (v GormReportVolume) CountReportsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := v.DB.WithContext(ctx).Model(&models.ContentReport{}).
		Where("created_at >= ?", since).
		Count(&n).Error
	return n, err
}

// SiteScaleEstimator calibrates auto-hide sensitivity to site-wide report
// volume. The value is cached for cache_seconds; concurrent misses share one
// computation and a racing writer simply wins.
type SiteScaleEstimator struct {
	cfg    config.SiteScalePolicy
	volume ReportVolumeSource
	cache  scalecache.Store
	now    func() time.Time
	group  singleflight.Group
}

var _ ScaleProvider = (*SiteScaleEstimator)(nil)

func NewSiteScaleEstimator(policy *config.Policy, volume ReportVolumeSource, cache scalecache.Store, now func() time.Time) *SiteScaleEstimator {
	if cache == nil {
		cache = scalecache.NewMemStore()
	}
	if now == nil {
		now = time.Now
	}
	return &SiteScaleEstimator{
		cfg:    policy.SiteScale,
		volume: volume,
		cache:  cache,
		now:    now,
	}
}

// ScaleFor maps an observed daily rate onto the clamped scale.
func (e *SiteScaleEstimator) ScaleFor(observedPerDay float64) float64 {
	ratio := observedPerDay / e.cfg.BaseReportsPerDay
	return clamp(1+e.cfg.Sensitivity*(ratio-1), e.cfg.MinScale, e.cfg.MaxScale)
}

func (e *SiteScaleEstimator) CurrentScale(ctx context.Context) (float64, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Scale, nil
}

// Snapshot returns the cached value, recomputing it on a miss or expiry.
func (e *SiteScaleEstimator) Snapshot(ctx context.Context) (scalecache.Snapshot, error) {
	snap, ok, err := e.cache.Load(ctx)
	if err != nil {
		slog.Warn("site scale cache read failed", "error", err)
	} else if ok && snap.Fresh(e.now(), e.cfg.CacheTTL()) {
		return snap, nil
	}

	v, err, _ := e.group.Do("site_scale", func() (any, error) {
		return e.Recompute(ctx)
	})
	if err != nil {
		return scalecache.Snapshot{}, err
	}
	return v.(scalecache.Snapshot), nil
}

// Recompute ignores the cache, computes a fresh snapshot and stores it.
func (e *SiteScaleEstimator) Recompute(ctx context.Context) (scalecache.Snapshot, error) {
	if e.cfg.WindowDays <= 0 || e.cfg.BaseReportsPerDay <= 0 {
		return scalecache.Snapshot{}, configErr("site_scale window_days and base_reports_per_day must be > 0")
	}
	now := e.now()
	since := now.Add(-time.Duration(e.cfg.WindowDays) * 24 * time.Hour)
	n, err := e.volume.CountReportsSince(ctx, since)
	if err != nil {
		return scalecache.Snapshot{}, storageErr("count recent reports", err)
	}
	observed := float64(n) / float64(e.cfg.WindowDays)
	snap := scalecache.Snapshot{
		Scale:          e.ScaleFor(observed),
		ObservedPerDay: observed,
		ComputedAt:     now,
	}
	if err := e.cache.Store(ctx, snap); err != nil {
		slog.Warn("site scale cache write failed", "error", err)
	}
	siteScaleGauge.Set(snap.Scale)
	return snap, nil
}

func (e *SiteScaleEstimator) Invalidate(ctx context.Context) error {
	return e.cache.Invalidate(ctx)
}
