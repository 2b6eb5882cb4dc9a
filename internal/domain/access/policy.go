package access

import "time"

// Policy holds every heuristic tuning value the engine uses. It is loaded
// once at startup (see config.Config.Policy) and passed by value into each
// component, so owners can recalibrate without a code change.
type Policy struct {
	Relationship RelationshipPolicy `koanf:"relationship"`
	Risk         RiskPolicy         `koanf:"risk"`
	Evaluation   EvaluationPolicy   `koanf:"evaluation"`
	Analysis     AnalysisPolicy     `koanf:"analysis"`
	Grants       GrantPolicy        `koanf:"grants"`
}

// RelationshipPolicy tunes relationship strength scoring
type RelationshipPolicy struct {
	TypeBaseStrength    map[string]float64 `koanf:"type_base_strength"`
	DefaultBaseStrength float64            `koanf:"default_base_strength"`
	MaxAgeBonus         float64            `koanf:"max_age_bonus"`
	AgeBonusFullDays    int                `koanf:"age_bonus_full_days"`
	VerificationBonus   float64            `koanf:"verification_bonus"`

	TransactionBase float64     `koanf:"transaction_base"`
	FrequencyTiers  []TierBonus `koanf:"frequency_tiers"`
	RecencyTiers    []TierBonus `koanf:"recency_tiers"`

	MultiHopStrength float64 `koanf:"multi_hop_strength"`

	BasicInfoThreshold   float64 `koanf:"basic_info_threshold"`
	FinancialThreshold   float64 `koanf:"financial_threshold"`
	OperationalThreshold float64 `koanf:"operational_threshold"`
	StrategicThreshold   float64 `koanf:"strategic_threshold"`
	ConfidentialCapAt    float64 `koanf:"confidential_cap_at"`
	InternalCapAt        float64 `koanf:"internal_cap_at"`

	CacheTTL time.Duration `koanf:"cache_ttl"`
	// NegativeCacheTTL bounds how long a "no relationship" result is
	// cached, so a newly recorded relationship takes effect quickly
	NegativeCacheTTL time.Duration `koanf:"negative_cache_ttl"`
}

// TierBonus awards Bonus when a measured value crosses Threshold. Frequency
// tiers match count >= Threshold; recency tiers match age-in-days <= Threshold.
// Tiers are checked in order and the first match wins.
type TierBonus struct {
	Threshold int     `koanf:"threshold"`
	Bonus     float64 `koanf:"bonus"`
}

// RiskPolicy tunes the cross-company risk score
type RiskPolicy struct {
	CrossCompanyBase      float64 `koanf:"cross_company_base"`
	RestrictedPenalty     float64 `koanf:"restricted_penalty"`
	ConfidentialPenalty   float64 `koanf:"confidential_penalty"`
	StrengthCredit        float64 `koanf:"strength_credit"`
	NoRelationshipPenalty float64 `koanf:"no_relationship_penalty"`
	MutatingPenalty       float64 `koanf:"mutating_penalty"`
	ApprovalThreshold     float64 `koanf:"approval_threshold"`
}

// EvaluationPolicy tunes decision gates
type EvaluationPolicy struct {
	SensitiveStrength     float64       `koanf:"sensitive_strength"`
	TrustThreshold        float64       `koanf:"trust_threshold"`
	FieldLevelBelow       float64       `koanf:"field_level_below"`
	PrivilegedRoles       []string      `koanf:"privileged_roles"`
	SuspiciousDenials     int           `koanf:"suspicious_denials"`
	SuspiciousWindow      time.Duration `koanf:"suspicious_window"`
	AnalyticalPurposeKeys []string      `koanf:"analytical_purpose_keys"`
}

// AnalysisPolicy tunes entity sensitivity aggregation and sharing risk
type AnalysisPolicy struct {
	ConfidentialRatio   float64 `koanf:"confidential_ratio"`
	InternalRatio       float64 `koanf:"internal_ratio"`
	InternalWeight      float64 `koanf:"internal_weight"`
	ConfidentialWeight  float64 `koanf:"confidential_weight"`
	RestrictedWeight    float64 `koanf:"restricted_weight"`
	HighRiskAt          float64 `koanf:"high_risk_at"`
	MediumRiskAt        float64 `koanf:"medium_risk_at"`
	CriticalSharingAt   float64 `koanf:"critical_sharing_at"`
	HighSharingAt       float64 `koanf:"high_sharing_at"`
	MediumSharingAt     float64 `koanf:"medium_sharing_at"`
	WeakTrustPenalty    float64 `koanf:"weak_trust_penalty"`
	CrossCompanyPenalty float64 `koanf:"cross_company_penalty"`
}

// GrantPolicy tunes permission lifecycle defaults
type GrantPolicy struct {
	DefaultDurationDays int           `koanf:"default_duration_days"`
	ExpiringWindow      time.Duration `koanf:"expiring_window"`
	RecentDenialLimit   int           `koanf:"recent_denial_limit"`
}

// DefaultPolicy returns the stock calibration
func DefaultPolicy() Policy {
	return Policy{
		Relationship: RelationshipPolicy{
			TypeBaseStrength: map[string]float64{
				string(RelationshipStrategicPartner):   0.9,
				string(RelationshipPreferredSupplier):  0.8,
				string(RelationshipRegularSupplier):    0.6,
				string(RelationshipOccasionalSupplier): 0.4,
			},
			DefaultBaseStrength: 0.5,
			MaxAgeBonus:         0.2,
			AgeBonusFullDays:    730,
			VerificationBonus:   0.1,
			TransactionBase:     0.3,
			FrequencyTiers: []TierBonus{
				{Threshold: 10, Bonus: 0.3},
				{Threshold: 5, Bonus: 0.2},
				{Threshold: 2, Bonus: 0.1},
			},
			RecencyTiers: []TierBonus{
				{Threshold: 30, Bonus: 0.2},
				{Threshold: 90, Bonus: 0.1},
				{Threshold: 365, Bonus: 0.05},
			},
			MultiHopStrength:     0.3,
			BasicInfoThreshold:   0.2,
			FinancialThreshold:   0.6,
			OperationalThreshold: 0.4,
			StrategicThreshold:   0.8,
			ConfidentialCapAt:    0.8,
			InternalCapAt:        0.4,
			CacheTTL:             5 * time.Minute,
			NegativeCacheTTL:     30 * time.Second,
		},
		Risk: RiskPolicy{
			CrossCompanyBase:      0.3,
			RestrictedPenalty:     0.4,
			ConfidentialPenalty:   0.2,
			StrengthCredit:        0.2,
			NoRelationshipPenalty: 0.3,
			MutatingPenalty:       0.2,
			ApprovalThreshold:     0.8,
		},
		Evaluation: EvaluationPolicy{
			SensitiveStrength:     0.7,
			TrustThreshold:        DefaultTrustThreshold,
			FieldLevelBelow:       0.5,
			PrivilegedRoles:       []string{string(RoleAdmin), string(RoleManager)},
			SuspiciousDenials:     10,
			SuspiciousWindow:      time.Hour,
			AnalyticalPurposeKeys: []string{"analytic", "aggregate", "statistic"},
		},
		Analysis: AnalysisPolicy{
			ConfidentialRatio:   0.3,
			InternalRatio:       0.5,
			InternalWeight:      0.25,
			ConfidentialWeight:  0.5,
			RestrictedWeight:    1.0,
			HighRiskAt:          0.7,
			MediumRiskAt:        0.4,
			CriticalSharingAt:   0.8,
			HighSharingAt:       0.6,
			MediumSharingAt:     0.4,
			WeakTrustPenalty:    0.3,
			CrossCompanyPenalty: 0.3,
		},
		Grants: GrantPolicy{
			DefaultDurationDays: 0,
			ExpiringWindow:      7 * 24 * time.Hour,
			RecentDenialLimit:   10,
		},
	}
}

// BaseStrengthFor returns the configured base strength of a relationship type
func (p RelationshipPolicy) BaseStrengthFor(t RelationshipType) float64 {
	if v, ok := p.TypeBaseStrength[string(t)]; ok {
		return v
	}
	return p.DefaultBaseStrength
}

// FrequencyBonus returns the first tier whose threshold count is reached
func (p RelationshipPolicy) FrequencyBonus(count int) float64 {
	for _, tier := range p.FrequencyTiers {
		if count >= tier.Threshold {
			return tier.Bonus
		}
	}
	return 0
}

// RecencyBonus returns the first tier whose day window contains ageDays
func (p RelationshipPolicy) RecencyBonus(ageDays int) float64 {
	for _, tier := range p.RecencyTiers {
		if ageDays <= tier.Threshold {
			return tier.Bonus
		}
	}
	return 0
}

// IsPrivileged reports whether role may read sensitive same-company data
// without filtering
func (p EvaluationPolicy) IsPrivileged(role Role) bool {
	for _, r := range p.PrivilegedRoles {
		if Role(r) == role {
			return true
		}
	}
	return false
}
