package accesscontrol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/classification"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// ReasonSuspiciousActivity holds cross-company access for users with a burst
// of recent denials
const ReasonSuspiciousActivity = "Recent denied attempts require manual review"

// PermissionEvaluator turns an AccessRequest into an AccessDecision. It is
// deterministic for a given store state and never retries.
type PermissionEvaluator struct {
	logger      *zap.Logger
	checker     *RelationshipChecker
	permissions access.PermissionRepository
	directory   access.DirectoryRepository
	audit       access.AuditRepository
	analyzer    *classification.SensitivityAnalyzer
	policy      access.Policy
	clock       access.Clock
}

// NewPermissionEvaluator creates a new evaluator
func NewPermissionEvaluator(
	logger *zap.Logger,
	checker *RelationshipChecker,
	permissions access.PermissionRepository,
	directory access.DirectoryRepository,
	audit access.AuditRepository,
	analyzer *classification.SensitivityAnalyzer,
	policy access.Policy,
	clock access.Clock,
) *PermissionEvaluator {
	return &PermissionEvaluator{
		logger:      logger.With(zap.String("component", "permission_evaluator")),
		checker:     checker,
		permissions: permissions,
		directory:   directory,
		audit:       audit,
		analyzer:    analyzer,
		policy:      policy,
		clock:       clock,
	}
}

// Evaluate decides req. The matched explicit permission is returned when one
// covers the request.
func (e *PermissionEvaluator) Evaluate(ctx context.Context, req access.AccessRequest) (*access.AccessDecision, *access.DataAccessPermission, error) {
	pctx, err := e.BuildContext(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	perm, err := e.findCoveringPermission(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if perm != nil {
		d := access.Allow(access.FactorExistingPermission).WithPermission(perm)
		return d, perm, nil
	}

	if !req.IsCrossCompanyAccess() {
		return e.sameCompany(req, pctx), nil, nil
	}
	return e.crossCompany(req, pctx), nil, nil
}

// BuildContext gathers relationship, role and risk inputs for req
func (e *PermissionEvaluator) BuildContext(ctx context.Context, req access.AccessRequest) (access.PermissionContext, error) {
	pctx := access.PermissionContext{TrustThreshold: e.policy.Evaluation.TrustThreshold}

	role, err := e.directory.GetUserRole(ctx, req.RequestingUserID, req.RequestingCompanyID)
	if err != nil && !errors.IsNotFound(err) {
		return pctx, errors.NewInternalError("failed to load requester role").WithCause(err)
	}
	pctx.RequesterRole = role

	tier, err := e.directory.GetCompanyTier(ctx, req.RequestingCompanyID)
	if err != nil && !errors.IsNotFound(err) {
		return pctx, errors.NewInternalError("failed to load company tier").WithCause(err)
	}
	pctx.CompanyTier = tier

	if req.IsCrossCompanyAccess() {
		rel, err := e.checker.Check(ctx, req.RequestingCompanyID, *req.TargetCompanyID)
		if err != nil {
			return pctx, err
		}
		pctx.RelationshipExists = rel.Exists
		pctx.RelationshipType = rel.Type
		pctx.RelationshipStrength = rel.Strength
	} else {
		pctx.RelationshipExists = true
		pctx.RelationshipType = access.RelationshipSameCompany
		pctx.RelationshipStrength = 1.0
	}

	if threshold := e.policy.Evaluation.SuspiciousDenials; threshold > 0 {
		since := e.clock.Now().Add(-e.policy.Evaluation.SuspiciousWindow)
		denials, err := e.audit.CountRecentDenials(ctx, req.RequestingUserID, since)
		if err != nil {
			return pctx, errors.NewInternalError("failed to count recent denials").WithCause(err)
		}
		pctx.SuspiciousActivity = denials >= threshold
	}

	return pctx, nil
}

func (e *PermissionEvaluator) findCoveringPermission(ctx context.Context, req access.AccessRequest) (*access.DataAccessPermission, error) {
	now := e.clock.Now()
	candidates, err := e.permissions.FindActive(ctx, req.RequestingCompanyID, req.EffectiveTargetCompany(), req.DataCategory, req.AccessType, now)
	if err != nil {
		return nil, errors.NewInternalError("failed to search permissions").WithCause(err)
	}
	for _, p := range candidates {
		if p.Covers(req, now) {
			return p, nil
		}
	}
	return nil, nil
}

func (e *PermissionEvaluator) sameCompany(req access.AccessRequest, pctx access.PermissionContext) *access.AccessDecision {
	if !req.CarriesSensitiveData() {
		return access.Allow(access.FactorSameCompany, access.FactorNonSensitiveData)
	}
	if e.policy.Evaluation.IsPrivileged(pctx.RequesterRole) {
		return access.Allow(access.FactorSameCompany, access.FactorSensitiveData, access.FactorPrivilegedRole)
	}
	return access.Conditional(access.FilteringFieldLevel,
		[]string{access.ConditionSensitiveFieldsFiltered},
		access.FactorSameCompany, access.FactorSensitiveData, access.FactorUnprivilegedRole,
	)
}

func (e *PermissionEvaluator) crossCompany(req access.AccessRequest, pctx access.PermissionContext) *access.AccessDecision {
	factors := []string{access.FactorCrossCompany}

	if !pctx.RelationshipExists {
		return access.Deny(access.ReasonNoRelationship, append(factors, access.FactorNoRelationship)...)
	}
	factors = append(factors, access.FactorRelationshipPrefix+pctx.RelationshipType.String())

	// only declared sensitivity gates; payload sensitivity just filters
	switch {
	case req.IsSensitiveData():
		factors = append(factors, access.FactorSensitiveData)
		if pctx.RelationshipStrength < e.policy.Evaluation.SensitiveStrength {
			return access.Deny(access.ReasonInsufficientStrength, append(factors, access.FactorWeakRelationship)...)
		}
	case req.CarriesSensitiveData():
		factors = append(factors, access.FactorSensitivePayload)
	default:
		factors = append(factors, access.FactorNonSensitiveData)
	}
	if pctx.IsTrustedRelationship() {
		factors = append(factors, access.FactorTrustedRelationship)
	}

	risk := e.RiskScore(req, pctx)
	pctx.RiskScore = risk
	factors = append(factors, fmt.Sprintf("%s%.2f", access.FactorRiskScorePrefix, risk))

	if risk > e.policy.Risk.ApprovalThreshold {
		d := access.RequireApproval(access.ReasonApprovalRequired, append(factors, access.FactorHighRisk)...)
		d.RiskScore = risk
		return d
	}
	if pctx.SuspiciousActivity {
		d := access.RequireApproval(ReasonSuspiciousActivity, append(factors, access.FactorSuspiciousActivity)...)
		d.RiskScore = risk
		return d
	}

	strategy := e.analyzer.FilteringStrategyFor(req, pctx.RelationshipStrength)
	factors = append(factors, access.FactorFilteringPrefix+strategy.String())

	d := access.Conditional(strategy, conditionsFor(strategy), factors...)
	d.RiskScore = risk
	return d
}

// RiskScore estimates the danger of granting a cross-company request,
// clamped to [0, 1]
func (e *PermissionEvaluator) RiskScore(req access.AccessRequest, pctx access.PermissionContext) float64 {
	rp := e.policy.Risk
	risk := rp.CrossCompanyBase

	switch req.Sensitivity() {
	case access.SensitivityRestricted:
		risk += rp.RestrictedPenalty
	case access.SensitivityConfidential:
		risk += rp.ConfidentialPenalty
	}

	if pctx.RelationshipExists {
		risk -= pctx.RelationshipStrength * rp.StrengthCredit
	} else {
		risk += rp.NoRelationshipPenalty
	}

	if req.AccessType.IsMutating() {
		risk += rp.MutatingPenalty
	}
	return access.Clamp01(risk)
}

func conditionsFor(strategy access.FilteringStrategy) []string {
	switch strategy {
	case access.FilteringFieldLevel:
		return []string{access.ConditionSensitiveFieldsFiltered}
	case access.FilteringEntityLevel:
		return []string{access.ConditionEntityMinimized}
	case access.FilteringAggregationOnly:
		return []string{access.ConditionAggregatedOnly}
	}
	return nil
}
