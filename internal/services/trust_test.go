package services

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustZeroActivity(t *testing.T) {
	assert := assert.New(t)
	s := NewTrustScorer(testPolicy(t))

	res, err := s.Compute(models.RoleUser, AccuracyCounts{}, models.ActivitySnapshot{})
	require.NoError(t, err)
	assert.Equal(0.0, res.ActivityPoints)
	assert.Equal(1.0, res.TrustScore)
	assert.Equal(1.0, res.Weight)
}

func TestTrustActivityPoints(t *testing.T) {
	assert := assert.New(t)
	s := NewTrustScorer(testPolicy(t))

	points := s.ActivityPoints(models.ActivitySnapshot{Posts: 10, Comments: 20, AccountAgeDays: 100})
	assert.InDelta(32.0, points, 1e-9)

	// age is capped before weighting
	points = s.ActivityPoints(models.ActivitySnapshot{AccountAgeDays: 10_000})
	assert.InDelta(365*0.02, points, 1e-9)

	// total is capped
	points = s.ActivityPoints(models.ActivitySnapshot{Posts: 1_000})
	assert.Equal(100.0, points)

	// negative age never subtracts
	points = s.ActivityPoints(models.ActivitySnapshot{AccountAgeDays: -50})
	assert.Equal(0.0, points)
}

func TestTrustAccuracyAdjustment(t *testing.T) {
	s := NewTrustScorer(testPolicy(t))

	tests := []struct {
		name string
		acc  AccuracyCounts
		want float64
	}{
		{"no resolved reports", AccuracyCounts{}, 0},
		{"mostly confirmed", AccuracyCounts{Confirmed: 3, Rejected: 1}, 0.375},
		{"all confirmed", AccuracyCounts{Confirmed: 4}, 0.5},
		{"even split", AccuracyCounts{Confirmed: 2, Rejected: 2}, 0},
		{"mostly rejected", AccuracyCounts{Confirmed: 1, Rejected: 3}, -0.375},
		{"all rejected", AccuracyCounts{Rejected: 5}, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.AccuracyAdjustment(tt.acc), 1e-9)
		})
	}
}

func TestTrustClampedToBounds(t *testing.T) {
	assert := assert.New(t)
	policy := testPolicy(t)
	policy.Trust.MaxTrust = 2.0
	policy.Trust.MinTrust = 0.75
	s := NewTrustScorer(policy)

	res, err := s.Compute(models.RoleUser, AccuracyCounts{Confirmed: 10}, models.ActivitySnapshot{Posts: 1_000})
	require.NoError(t, err)
	assert.Equal(2.0, res.TrustScore)

	res, err = s.Compute(models.RoleUser, AccuracyCounts{Rejected: 10}, models.ActivitySnapshot{})
	require.NoError(t, err)
	assert.Equal(0.75, res.TrustScore)
}

func TestTrustRoleWeight(t *testing.T) {
	assert := assert.New(t)
	s := NewTrustScorer(testPolicy(t))

	snap := models.ActivitySnapshot{Posts: 25}
	res, err := s.Compute(models.RoleModerator, AccuracyCounts{}, snap)
	require.NoError(t, err)
	assert.InDelta(1.5, res.TrustScore, 1e-9)
	assert.InDelta(3.0, res.Weight, 1e-9)

	again, err := s.Compute(models.RoleModerator, AccuracyCounts{}, snap)
	require.NoError(t, err)
	assert.Equal(res, again)

	_, err = s.Compute("banned", AccuracyCounts{}, snap)
	assert.ErrorIs(err, ErrConfiguration)
}

func TestTrustApply(t *testing.T) {
	assert := assert.New(t)
	s := NewTrustScorer(testPolicy(t))

	p := models.ReportWeightProfile{ReportsConfirmed: 1}
	snap := models.ActivitySnapshot{Posts: 5}
	require.NoError(t, s.Apply(&p, models.RoleMaker, snap, testNow))

	assert.InDelta(10.0, p.ActivityPoints, 1e-9)
	assert.InDelta(1.6, p.TrustScore, 1e-9)
	assert.InDelta(2.0, p.Weight, 1e-9)
	assert.Equal(testNow, *p.LastComputedAt)
	assert.Equal(models.RoleMaker, p.Meta.Data().Role)
	assert.Equal(snap, p.Meta.Data().Snapshot)
}

func TestReportWeightClamp(t *testing.T) {
	assert := assert.New(t)
	c := NewReportWeightCalculator(testPolicy(t))

	b, err := c.WeightFor(models.RoleUser, 1)
	require.NoError(t, err)
	assert.Equal(1.0, b.Weight)
	assert.Equal(models.RoleUser, b.Role)

	b, err = c.WeightFor("", 1.2)
	require.NoError(t, err)
	assert.Equal(models.RoleUser, b.Role)
	assert.InDelta(1.2, b.Weight, 1e-9)

	b, err = c.WeightFor(models.RoleAdmin, 3)
	require.NoError(t, err)
	assert.Equal(9.0, b.ReporterWeight)
	assert.Equal(5.0, b.Weight)

	b, err = c.WeightFor(models.RoleUser, 0.01)
	require.NoError(t, err)
	assert.Equal(0.1, b.Weight)

	_, err = c.WeightFor("ghost", 1)
	assert.ErrorIs(err, ErrConfiguration)
}
