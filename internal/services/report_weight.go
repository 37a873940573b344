package services

import (
	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
)

// WeightBreakdown is snapshotted on every report row so later trust changes
// never rewrite history.
type WeightBreakdown struct {
	Role           string
	RoleWeight     float64
	TrustScore     float64
	ReporterWeight float64
	Weight         float64
}

type ReportWeightCalculator struct {
	policy *config.Policy
}

func NewReportWeightCalculator(policy *config.Policy) *ReportWeightCalculator {
	return &ReportWeightCalculator{policy: policy}
}

// WeightFor assumes self-reports were already excluded.
func (c *ReportWeightCalculator) WeightFor(role string, trustScore float64) (WeightBreakdown, error) {
	if role == "" {
		role = "user"
	}
	roleWeight, err := c.policy.RoleWeight(role)
	if err != nil {
		return WeightBreakdown{}, err
	}
	raw := roleWeight * trustScore
	return WeightBreakdown{
		Role:           role,
		RoleWeight:     roleWeight,
		TrustScore:     trustScore,
		ReporterWeight: raw,
		Weight:         clamp(raw, c.policy.Weight.Min, c.policy.Weight.Max),
	}, nil
}
