package services

import (
	"math"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"gorm.io/datatypes"
)

// AccuracyCounts are a reporter's moderator-resolved outcomes.
type AccuracyCounts struct {
	Confirmed int
	Rejected  int
}

type TrustResult struct {
	ActivityPoints float64
	TrustScore     float64
	Weight         float64
}

// TrustScorer turns activity and report accuracy into a bounded trust
// multiplier. It holds no state besides the policy.
type TrustScorer struct {
	policy *config.Policy
}

func NewTrustScorer(policy *config.Policy) *TrustScorer {
	return &TrustScorer{policy: policy}
}

// ActivityPoints is the clamped, weighted activity total.
func (s *TrustScorer) ActivityPoints(snap models.ActivitySnapshot) float64 {
	t := s.policy.Trust
	p := t.Points
	age := math.Min(math.Max(snap.AccountAgeDays, 0), t.AgeDaysCap)
	points := float64(snap.Posts)*p.Post +
		float64(snap.Comments)*p.Comment +
		float64(snap.Reviews)*p.Review +
		float64(snap.Follows)*p.Follow +
		float64(snap.Upvotes)*p.Upvote +
		float64(snap.Saves)*p.Save +
		age*p.AgePerDay
	return clamp(points, 0, t.ActivityCap)
}

// AccuracyAdjustment is zero until the reporter has at least one resolved
// report; above an even split it boosts, below it penalizes.
func (s *TrustScorer) AccuracyAdjustment(acc AccuracyCounts) float64 {
	confirmed := max(acc.Confirmed, 0)
	rejected := max(acc.Rejected, 0)
	resolved := confirmed + rejected
	if resolved == 0 {
		return 0
	}
	ratio := float64(confirmed) / float64(max(1, resolved))
	switch {
	case ratio > 0.5:
		return s.policy.Trust.AccuracyBoostMax * ratio
	case ratio < 0.5:
		return -s.policy.Trust.AccuracyPenaltyMax * (1 - ratio)
	default:
		return 0
	}
}

// Compute is a pure function of its inputs.
func (s *TrustScorer) Compute(role string, acc AccuracyCounts, snap models.ActivitySnapshot) (TrustResult, error) {
	roleWeight, err := s.policy.RoleWeight(role)
	if err != nil {
		return TrustResult{}, err
	}
	t := s.policy.Trust
	points := s.ActivityPoints(snap)
	base := 1 + points/t.ActivityDivisor
	trust := clamp(base+s.AccuracyAdjustment(acc), t.MinTrust, t.MaxTrust)
	return TrustResult{
		ActivityPoints: points,
		TrustScore:     trust,
		Weight:         roleWeight * trust,
	}, nil
}

// Apply recomputes the profile in place from its own accuracy counters.
func (s *TrustScorer) Apply(profile *models.ReportWeightProfile, role string, snap models.ActivitySnapshot, now time.Time) error {
	res, err := s.Compute(role, AccuracyCounts{
		Confirmed: profile.ReportsConfirmed,
		Rejected:  profile.ReportsRejected,
	}, snap)
	if err != nil {
		return err
	}
	profile.ActivityPoints = res.ActivityPoints
	profile.TrustScore = res.TrustScore
	profile.Weight = res.Weight
	computedAt := now
	profile.LastComputedAt = &computedAt
	profile.Meta = datatypes.NewJSONType(models.ProfileMeta{Role: role, Snapshot: snap})
	return nil
}

// clamp also maps NaN to lo so drift can never escape the bounds.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
