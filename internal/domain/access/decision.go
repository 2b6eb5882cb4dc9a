package access

import (
	"time"

	"github.com/google/uuid"
)

// Common decision factors recorded for auditing
const (
	FactorExistingPermission  = "existing_permission"
	FactorSameCompany         = "same_company"
	FactorCrossCompany        = "cross_company"
	FactorSensitiveData       = "sensitive_data"
	FactorNonSensitiveData    = "non_sensitive_data"
	FactorSensitivePayload    = "sensitive_payload"
	FactorPrivilegedRole      = "privileged_role"
	FactorUnprivilegedRole    = "unprivileged_role"
	FactorNoRelationship      = "no_relationship"
	FactorWeakRelationship    = "insufficient_relationship_strength"
	FactorTrustedRelationship = "trusted_relationship"
	FactorSuspiciousActivity  = "suspicious_activity"
	FactorHighRisk            = "high_risk"
	FactorRelationshipPrefix  = "relationship:"
	FactorRiskScorePrefix     = "risk_score:"
	FactorFilteringPrefix     = "filtering:"
)

// Denial reasons surfaced to callers
const (
	ReasonNoRelationship       = "No business relationship exists"
	ReasonInsufficientStrength = "Insufficient relationship strength for sensitive data"
	ReasonApprovalRequired     = "Risk score requires manual approval"
	ReasonAccessCheckFailed    = "Access check could not be completed"
)

// Conditions attached to conditional grants
const (
	ConditionSensitiveFieldsFiltered = "sensitive fields filtered"
	ConditionEntityMinimized         = "entity reduced to minimal representation when restricted"
	ConditionAggregatedOnly          = "only aggregated values are shared"
)

// AccessDecision is the outcome of evaluating an AccessRequest. Build it with
// Allow, Deny, Conditional or RequireApproval so the result always agrees
// with the decision type.
type AccessDecision struct {
	Type              DecisionType
	Result            AccessResult
	PermissionID      *uuid.UUID
	DenialReason      string
	Factors           []string
	Conditions        []string
	ExpiresAt         *time.Time
	FilteringStrategy FilteringStrategy
	FilteredFields    []string
	RiskScore         float64
}

// Allow returns an unconditional grant
func Allow(factors ...string) *AccessDecision {
	return &AccessDecision{
		Type:              DecisionAllow,
		Result:            ResultGranted,
		Factors:           append([]string(nil), factors...),
		FilteringStrategy: FilteringNone,
	}
}

// Deny returns a denial with the given reason
func Deny(reason string, factors ...string) *AccessDecision {
	return &AccessDecision{
		Type:              DecisionDeny,
		Result:            ResultDenied,
		DenialReason:      reason,
		Factors:           append([]string(nil), factors...),
		FilteringStrategy: FilteringNone,
	}
}

// Conditional returns a grant that is subject to filtering. A none strategy
// degrades to Allow.
func Conditional(strategy FilteringStrategy, conditions []string, factors ...string) *AccessDecision {
	if strategy == FilteringNone || strategy == "" {
		d := Allow(factors...)
		d.Conditions = append([]string(nil), conditions...)
		return d
	}
	return &AccessDecision{
		Type:              DecisionConditional,
		Result:            ResultGrantedWithConditions,
		Factors:           append([]string(nil), factors...),
		Conditions:        append([]string(nil), conditions...),
		FilteringStrategy: strategy,
	}
}

// RequireApproval holds the request for a manual decision
func RequireApproval(reason string, factors ...string) *AccessDecision {
	return &AccessDecision{
		Type:              DecisionRequireApproval,
		Result:            ResultPendingApproval,
		DenialReason:      reason,
		Factors:           append([]string(nil), factors...),
		FilteringStrategy: FilteringNone,
	}
}

// IsGranted reports whether data may be returned at all
func (d *AccessDecision) IsGranted() bool {
	return d.Type == DecisionAllow || d.Type == DecisionConditional
}

// RequiresFiltering reports whether the payload must pass through the filter
// engine before it is returned
func (d *AccessDecision) RequiresFiltering() bool {
	return d.FilteringStrategy != FilteringNone && d.FilteringStrategy != ""
}

// AddFactor appends audit factors
func (d *AccessDecision) AddFactor(factors ...string) {
	d.Factors = append(d.Factors, factors...)
}

// WithPermission attaches the matched explicit permission
func (d *AccessDecision) WithPermission(p *DataAccessPermission) *AccessDecision {
	if p == nil {
		return d
	}
	id := p.ID
	d.PermissionID = &id
	if p.ExpiresAt != nil {
		exp := *p.ExpiresAt
		d.ExpiresAt = &exp
	}
	d.Conditions = append(d.Conditions, p.Conditions...)
	return d
}
