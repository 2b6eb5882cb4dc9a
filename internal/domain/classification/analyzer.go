package classification

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// Risk labels
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// SensitivityAnalyzer aggregates per-field levels into entity-level views
type SensitivityAnalyzer struct {
	analysis   access.AnalysisPolicy
	evaluation access.EvaluationPolicy
}

// NewSensitivityAnalyzer creates an analyzer bound to a policy
func NewSensitivityAnalyzer(policy access.Policy) *SensitivityAnalyzer {
	return &SensitivityAnalyzer{
		analysis:   policy.Analysis,
		evaluation: policy.Evaluation,
	}
}

// CalculateEntitySensitivity rolls field levels up into one entity level
func (a *SensitivityAnalyzer) CalculateEntitySensitivity(fields map[string]access.SensitivityLevel) access.SensitivityLevel {
	if len(fields) == 0 {
		return access.SensitivityPublic
	}
	counts := countLevels(fields)
	total := float64(len(fields))

	switch {
	case counts[access.SensitivityRestricted] > 0:
		return access.SensitivityRestricted
	case float64(counts[access.SensitivityConfidential])/total > a.analysis.ConfidentialRatio,
		counts[access.SensitivityConfidential] > 0:
		return access.SensitivityConfidential
	case float64(counts[access.SensitivityInternal])/total > a.analysis.InternalRatio:
		return access.SensitivityInternal
	}
	return access.SensitivityPublic
}

// Distribution is the weighted sensitivity profile of a field set
type Distribution struct {
	TotalFields int                             `json:"total_fields"`
	Counts      map[access.SensitivityLevel]int `json:"counts"`
	Score       float64                         `json:"score"`
	RiskLevel   string                          `json:"risk_level"`
}

// AnalyzeDistribution scores a field set in [0, 1] by weighted tier counts
func (a *SensitivityAnalyzer) AnalyzeDistribution(fields map[string]access.SensitivityLevel) Distribution {
	d := Distribution{
		TotalFields: len(fields),
		Counts:      countLevels(fields),
		RiskLevel:   RiskLow,
	}
	if d.TotalFields == 0 {
		return d
	}

	weighted := a.analysis.InternalWeight*float64(d.Counts[access.SensitivityInternal]) +
		a.analysis.ConfidentialWeight*float64(d.Counts[access.SensitivityConfidential]) +
		a.analysis.RestrictedWeight*float64(d.Counts[access.SensitivityRestricted])
	d.Score = access.Clamp01(weighted / float64(d.TotalFields))

	switch {
	case d.Score >= a.analysis.HighRiskAt:
		d.RiskLevel = RiskHigh
	case d.Score >= a.analysis.MediumRiskAt:
		d.RiskLevel = RiskMedium
	}
	return d
}

// SharingRisk is the estimated danger of handing a field set to another
// company
type SharingRisk struct {
	Score           float64  `json:"score"`
	RiskLevel       string   `json:"risk_level"`
	BaseScore       float64  `json:"base_score"`
	CrossCompany    bool     `json:"cross_company"`
	Recommendations []string `json:"recommendations"`
}

// CalculateSharingRisk combines the field profile with relationship trust
func (a *SensitivityAnalyzer) CalculateSharingRisk(fields map[string]access.SensitivityLevel, companyA, companyB uuid.UUID, relationshipStrength float64) SharingRisk {
	dist := a.AnalyzeDistribution(fields)
	cross := companyA != companyB
	strength := access.Clamp01(relationshipStrength)

	score := dist.Score + (1-strength)*a.analysis.WeakTrustPenalty
	if cross {
		score += a.analysis.CrossCompanyPenalty
	}
	score = access.Clamp01(score)

	r := SharingRisk{
		Score:        score,
		BaseScore:    dist.Score,
		CrossCompany: cross,
	}
	switch {
	case score >= a.analysis.CriticalSharingAt:
		r.RiskLevel = RiskCritical
	case score >= a.analysis.HighSharingAt:
		r.RiskLevel = RiskHigh
	case score >= a.analysis.MediumSharingAt:
		r.RiskLevel = RiskMedium
	default:
		r.RiskLevel = RiskLow
	}
	r.Recommendations = a.recommend(r, dist, strength)
	return r
}

func (a *SensitivityAnalyzer) recommend(r SharingRisk, dist Distribution, strength float64) []string {
	var recs []string
	switch r.RiskLevel {
	case RiskCritical:
		recs = append(recs, "Deny sharing or require manual approval")
	case RiskHigh:
		recs = append(recs, "Require approval before sharing and apply strict field-level filtering")
	case RiskMedium:
		recs = append(recs, "Apply field-level filtering to sensitive fields")
	default:
		recs = append(recs, "Sharing is acceptable with standard logging")
	}
	if dist.Counts[access.SensitivityRestricted] > 0 {
		recs = append(recs, "Remove restricted fields before sharing")
	}
	if r.CrossCompany && strength < a.evaluation.SensitiveStrength {
		recs = append(recs, "Strengthen the business relationship or issue an explicit permission")
	}
	if dist.Counts[access.SensitivityConfidential] > 0 && r.CrossCompany {
		recs = append(recs, "Mask or round confidential values")
	}
	return recs
}

// FilteringStrategyFor picks the redaction strategy for a granted
// cross-company request. Sensitivity observed in the payload counts as
// sensitive data here.
func (a *SensitivityAnalyzer) FilteringStrategyFor(req access.AccessRequest, relationshipStrength float64) access.FilteringStrategy {
	switch {
	case req.CarriesSensitiveData():
		return access.FilteringFieldLevel
	case relationshipStrength < a.evaluation.FieldLevelBelow:
		return access.FilteringFieldLevel
	case req.AccessType == access.AccessRead && a.IsAnalyticalPurpose(req.Purpose):
		return access.FilteringAggregationOnly
	}
	return access.FilteringNone
}

// IsAnalyticalPurpose reports whether a stated purpose asks for analytics
func (a *SensitivityAnalyzer) IsAnalyticalPurpose(purpose string) bool {
	purpose = strings.ToLower(purpose)
	if purpose == "" {
		return false
	}
	return lo.SomeBy(a.evaluation.AnalyticalPurposeKeys, func(key string) bool {
		return strings.Contains(purpose, key)
	})
}

func countLevels(fields map[string]access.SensitivityLevel) map[access.SensitivityLevel]int {
	return lo.CountValues(lo.Values(fields))
}
