package accesscontrol

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/classification"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
	"github.com/davidleathers/dependable-access-control/internal/domain/filtering"
	"github.com/davidleathers/dependable-access-control/internal/infrastructure/telemetry"
)

const serviceName = "accesscontrol"

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	clock   access.Clock
	cache   RelationshipCache
	metrics MetricsRecorder
	tracer  telemetry.TracerInterface
}

// WithClock overrides the wall clock
func WithClock(clock access.Clock) Option {
	return func(o *serviceOptions) { o.clock = clock }
}

// WithRelationshipCache enables relationship result caching
func WithRelationshipCache(cache RelationshipCache) Option {
	return func(o *serviceOptions) { o.cache = cache }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithTracer sets the tracer used for service spans
func WithTracer(t telemetry.TracerInterface) Option {
	return func(o *serviceOptions) { o.tracer = t }
}

// Service is the public face of the access-control engine. Denials are
// results, not errors; errors are returned only for invalid input and for
// management operations whose store writes failed.
type Service struct {
	logger     *zap.Logger
	validate   *validator.Validate
	checker    *RelationshipChecker
	evaluator  *PermissionEvaluator
	manager    *PermissionManager
	auditLog   *AccessLogger
	auditRepo  access.AuditRepository
	classifier *classification.FieldClassifier
	analyzer   *classification.SensitivityAnalyzer
	filter     *filtering.DataFilterEngine
	metrics    MetricsRecorder
	tracer     telemetry.TracerInterface
	clock      access.Clock
	policy     access.Policy
}

// NewService wires the engine components around the given stores
func NewService(logger *zap.Logger, stores Stores, classifier *classification.FieldClassifier, policy access.Policy, opts ...Option) *Service {
	o := serviceOptions{
		clock:   access.RealClock{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = telemetry.NewOpenTelemetryTracer(serviceName)
	}

	analyzer := classification.NewSensitivityAnalyzer(policy)
	checker := NewRelationshipChecker(logger, stores.Relationships, stores.Transactions, o.cache, o.metrics, policy.Relationship, o.clock)

	return &Service{
		logger:     logger.With(zap.String("service", serviceName)),
		validate:   validator.New(),
		checker:    checker,
		evaluator:  NewPermissionEvaluator(logger, checker, stores.Permissions, stores.Directory, stores.Audit, analyzer, policy, o.clock),
		manager:    NewPermissionManager(logger, stores.Permissions, policy.Grants, o.clock),
		auditLog:   NewAccessLogger(logger, stores.Audit, o.metrics, o.clock),
		auditRepo:  stores.Audit,
		classifier: classifier,
		analyzer:   analyzer,
		filter:     filtering.NewDataFilterEngine(classifier, analyzer, logger),
		metrics:    o.metrics,
		tracer:     o.tracer,
		clock:      o.clock,
		policy:     policy,
	}
}

// CheckAccessPermission decides an access attempt. Internal failures are
// audited and reported as a denial with a generic reason.
func (s *Service) CheckAccessPermission(ctx context.Context, in CheckAccessInput) (*CheckResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "CheckAccessPermission")
	defer span.End()

	if err := s.validateInput(in); err != nil {
		telemetry.WithSpanError(span, err)
		return invalidResult(err), err
	}
	req, err := s.newRequest(in.params())
	if err != nil {
		telemetry.WithSpanError(span, err)
		return invalidResult(err), err
	}

	res := s.check(ctx, req)
	s.tracer.SetAttributes(span, map[string]interface{}{
		"access.result":        res.Result.String(),
		"access.cross_company": req.IsCrossCompanyAccess(),
		"access.data_category": req.DataCategory.String(),
	})
	return res, nil
}

// FilterSensitiveData checks access for the payload's owner and returns the
// payload redacted according to the decision. Sensitivity classified from
// the payload's fields selects the filtering strategy; only the caller's
// SensitivityLevel takes part in denial and grant matching.
func (s *Service) FilterSensitiveData(ctx context.Context, in FilterInput) (res *FilterResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "FilterSensitiveData")
	defer span.End()

	if err := s.validateInput(in); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	accessType := in.AccessType
	if accessType == "" {
		accessType = access.AccessRead
	}

	req, err := s.newRequest(access.RequestParams{
		RequestingUserID:    in.RequestingUserID,
		RequestingCompanyID: in.RequestingCompanyID,
		TargetCompanyID:     in.TargetCompanyID,
		DataCategory:        in.DataCategory,
		AccessType:          accessType,
		EntityType:          in.EntityType,
		EntityID:            in.EntityID,
		SensitivityLevel:    in.SensitivityLevel,
		PayloadSensitivity:  s.inferSensitivity(in.Payload, in.EntityType),
		IPAddress:           in.IPAddress,
		SessionID:           in.SessionID,
		Purpose:             in.Purpose,
		RequestedFields:     in.RequestedFields,
	})
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	check := s.check(ctx, req)
	if !check.Granted() {
		return &FilterResult{Check: check}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res = &FilterResult{Check: s.failClosed(ctx, req, fmt.Errorf("panic while filtering: %v", r))}
			err = nil
		}
	}()

	data, contexts, err := s.filter.Filter(in.Payload, check.Decision, filtering.Options{
		EntityType:         req.EntityType,
		RequesterCompanyID: req.RequestingCompanyID,
		TargetCompanyID:    req.EffectiveTargetCompany(),
		RequestedFields:    req.RequestedFields,
	})
	if err != nil {
		telemetry.WithSpanError(span, err)
		return &FilterResult{Check: check}, err
	}

	filtered := lo.Uniq(lo.FlatMap(contexts, func(fc *access.DataFilterContext, _ int) []string {
		return fc.FilteredFields
	}))
	applied := lo.SomeBy(contexts, func(fc *access.DataFilterContext) bool {
		return fc.FilteringApplied
	})

	s.metrics.RecordFiltering(ctx, check.Decision.FilteringStrategy, len(filtered))
	s.auditLog.LogDataAccess(ctx, req, check.Decision, payloadSize(in.Payload), filtered, applied)

	return &FilterResult{
		Check:            check,
		Data:             data,
		FilteringApplied: applied,
		FilteredFields:   filtered,
		Contexts:         contexts,
	}, nil
}

// GrantPermission issues an explicit permission for the input's scope
func (s *Service) GrantPermission(ctx context.Context, in GrantPermissionInput) (*access.DataAccessPermission, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "GrantPermission")
	defer span.End()

	if err := s.validateInput(in); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, err
	}
	req, err := s.newRequest(in.Request.params())
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	p, err := s.manager.Grant(ctx, req, in.GrantedBy, GrantOptions{
		DurationDays:   in.DurationDays,
		Conditions:     in.Conditions,
		MaxSensitivity: in.MaxSensitivity,
	})
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	grantedBy := in.GrantedBy
	s.auditLog.LogPermissionEvent(ctx, access.AuditPermissionGranted, p, &grantedBy, "")
	s.metrics.RecordPermissionChange(ctx, access.AuditPermissionGranted, 1)
	return p, nil
}

// RevokePermission deactivates a permission. It returns false when the
// permission does not exist or was already inactive.
func (s *Service) RevokePermission(ctx context.Context, id, revokedBy uuid.UUID, reason string) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "RevokePermission")
	defer span.End()

	if id == uuid.Nil || revokedBy == uuid.Nil {
		err := errors.NewValidationError("INVALID_INPUT", "permission ID and revoking user are required")
		telemetry.WithSpanError(span, err)
		return false, err
	}

	p, ok, err := s.manager.Revoke(ctx, id, revokedBy, reason)
	if err != nil || !ok {
		telemetry.WithSpanError(span, err)
		return false, err
	}
	s.auditLog.LogPermissionEvent(ctx, access.AuditPermissionRevoked, p, &revokedBy, reason)
	s.metrics.RecordPermissionChange(ctx, access.AuditPermissionRevoked, 1)
	return true, nil
}

// RevokeUserPermissions revokes every active grant issued to a user and
// returns how many were revoked. Partial failures are returned together.
func (s *Service) RevokeUserPermissions(ctx context.Context, userID, revokedBy uuid.UUID, reason string) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "RevokeUserPermissions")
	defer span.End()

	if userID == uuid.Nil || revokedBy == uuid.Nil {
		err := errors.NewValidationError("INVALID_INPUT", "user ID and revoking user are required")
		telemetry.WithSpanError(span, err)
		return 0, err
	}

	revoked, err := s.manager.RevokeAllForUser(ctx, userID, revokedBy, reason)
	s.recordRevocations(ctx, revoked, &revokedBy, reason)
	telemetry.WithSpanError(span, err)
	return len(revoked), err
}

// RevokeAllForCompany revokes every active grant held by a company
func (s *Service) RevokeAllForCompany(ctx context.Context, companyID, revokedBy uuid.UUID, reason string) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "RevokeAllForCompany")
	defer span.End()

	if companyID == uuid.Nil || revokedBy == uuid.Nil {
		err := errors.NewValidationError("INVALID_INPUT", "company ID and revoking user are required")
		telemetry.WithSpanError(span, err)
		return 0, err
	}

	revoked, err := s.manager.RevokeAllForCompany(ctx, companyID, revokedBy, reason)
	s.recordRevocations(ctx, revoked, &revokedBy, reason)
	telemetry.WithSpanError(span, err)
	return len(revoked), err
}

// ExtendPermission pushes a permission's expiry out by additionalDays. It
// returns false when the permission does not exist or is inactive.
func (s *Service) ExtendPermission(ctx context.Context, id uuid.UUID, additionalDays int, extendedBy uuid.UUID) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "ExtendPermission")
	defer span.End()

	p, ok, err := s.manager.Extend(ctx, id, additionalDays, extendedBy)
	if err != nil || !ok {
		telemetry.WithSpanError(span, err)
		return false, err
	}
	s.auditLog.LogPermissionEvent(ctx, access.AuditPermissionExtended, p, &extendedBy, fmt.Sprintf("extended by %d days", additionalDays))
	s.metrics.RecordPermissionChange(ctx, access.AuditPermissionExtended, 1)
	return true, nil
}

// CleanupExpiredPermissions deactivates grants past their expiry and returns
// how many were deactivated
func (s *Service) CleanupExpiredPermissions(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "CleanupExpiredPermissions")
	defer span.End()

	expired, err := s.manager.CleanupExpired(ctx)
	for _, p := range expired {
		s.auditLog.LogPermissionEvent(ctx, access.AuditPermissionExpired, p, nil, access.ReasonExpired)
	}
	if len(expired) > 0 {
		s.metrics.RecordPermissionChange(ctx, access.AuditPermissionExpired, len(expired))
		s.logger.Info("expired permissions deactivated", zap.Int("count", len(expired)))
	}
	telemetry.WithSpanError(span, err)
	return len(expired), err
}

// GetPermissionSummary counts a company's active grants
func (s *Service) GetPermissionSummary(ctx context.Context, companyID uuid.UUID) (*PermissionSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "GetPermissionSummary")
	defer span.End()

	summary, err := s.manager.Summary(ctx, companyID)
	telemetry.WithSpanError(span, err)
	return summary, err
}

// GetRelationshipPermissions reports what a relationship between two
// companies allows in broad terms
func (s *Service) GetRelationshipPermissions(ctx context.Context, companyA, companyB uuid.UUID) (access.RelationshipCapabilities, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "GetRelationshipPermissions")
	defer span.End()

	caps, err := s.checker.GetRelationshipPermissions(ctx, companyA, companyB)
	telemetry.WithSpanError(span, err)
	return caps, err
}

// GetAccessSummary reports a company's access attempts over the last days.
// days <= 0 uses DefaultSummaryDays.
func (s *Service) GetAccessSummary(ctx context.Context, companyID uuid.UUID, days int) (*AccessSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.tracer, serviceName, "GetAccessSummary")
	defer span.End()

	if days <= 0 {
		days = DefaultSummaryDays
	}
	now := s.clock.Now()
	since := now.AddDate(0, 0, -days)

	entries, err := s.auditRepo.ListForCompany(ctx, companyID, since)
	if err != nil {
		err = errors.NewInternalError("failed to load audit entries").WithCause(err)
		telemetry.WithSpanError(span, err)
		return nil, err
	}

	attempts := lo.Filter(entries, func(e *access.AuditEntry, _ int) bool { return e.IsAttempt() })
	users := lo.Uniq(lo.Map(attempts, func(e *access.AuditEntry, _ int) uuid.UUID { return e.ActorUserID }))
	dataAccess := lo.CountBy(entries, func(e *access.AuditEntry) bool { return e.EventType == access.AuditDataAccessed })

	summary := &AccessSummary{
		CompanyID:         companyID,
		PeriodDays:        days,
		Since:             since,
		TotalAttempts:     len(attempts),
		ByResult:          make(map[access.AccessResult]int),
		UniqueUsers:       len(users),
		CrossCompanyCount: lo.CountBy(attempts, func(e *access.AuditEntry) bool { return e.IsCrossCompany() }),
		DataAccessEvents:  dataAccess,
		RecentDenials:     []DenialRecord{},
		GeneratedAt:       now,
	}

	limit := s.policy.Grants.RecentDenialLimit
	for _, e := range attempts {
		summary.ByResult[e.Result]++
		if e.Result != access.ResultDenied || len(summary.RecentDenials) >= limit {
			continue
		}
		summary.RecentDenials = append(summary.RecentDenials, DenialRecord{
			OccurredAt:      e.OccurredAt,
			ActorUserID:     e.ActorUserID,
			ActorCompanyID:  e.ActorCompanyID,
			TargetCompanyID: e.TargetCompanyID,
			DataCategory:    e.DataCategory,
			Reason:          e.Reason,
		})
	}
	return summary, nil
}

// check evaluates req and audits the decision. It never returns an error:
// failures, including panics, deny.
func (s *Service) check(ctx context.Context, req access.AccessRequest) (res *CheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = s.failClosed(ctx, req, fmt.Errorf("panic during access check: %v", r))
		}
	}()

	decision, perm, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		return s.failClosed(ctx, req, err)
	}

	s.metrics.RecordDecision(ctx, decision.Type, req.IsCrossCompanyAccess(), time.Since(start))
	s.auditLog.LogAttempt(ctx, req, decision)
	s.logger.Debug("access decided",
		zap.String("requesting_user_id", req.RequestingUserID.String()),
		zap.String("requesting_company_id", req.RequestingCompanyID.String()),
		zap.String("target_company_id", req.EffectiveTargetCompany().String()),
		zap.String("decision", decision.Type.String()),
		zap.String("filtering", decision.FilteringStrategy.String()),
		zap.Strings("factors", decision.Factors),
	)

	outcome := errors.OutcomeSuccess
	if decision.Type == access.DecisionDeny {
		outcome = errors.OutcomeDenied
	}
	return &CheckResult{
		Outcome:      outcome,
		Result:       decision.Result,
		Decision:     decision,
		Permission:   perm,
		DenialReason: decision.DenialReason,
	}
}

func (s *Service) failClosed(ctx context.Context, req access.AccessRequest, cause error) *CheckResult {
	telemetry.WithSpanError(s.tracer.GetSpan(ctx), cause)
	s.logger.Error("access check failed",
		zap.Error(cause),
		zap.String("requesting_user_id", req.RequestingUserID.String()),
		zap.String("requesting_company_id", req.RequestingCompanyID.String()),
		zap.String("data_category", req.DataCategory.String()),
	)
	s.metrics.RecordCheckError(ctx, errors.OutcomeOf(cause).String())
	s.auditLog.LogError(ctx, req, cause)

	return &CheckResult{
		Outcome:      errors.OutcomeInternalError,
		Result:       access.ResultDenied,
		Decision:     access.Deny(access.ReasonAccessCheckFailed),
		DenialReason: access.ReasonAccessCheckFailed,
	}
}

func (s *Service) recordRevocations(ctx context.Context, revoked []*access.DataAccessPermission, by *uuid.UUID, reason string) {
	for _, p := range revoked {
		s.auditLog.LogPermissionEvent(ctx, access.AuditPermissionRevoked, p, by, reason)
	}
	if len(revoked) > 0 {
		s.metrics.RecordPermissionChange(ctx, access.AuditPermissionRevoked, len(revoked))
	}
}

func (s *Service) newRequest(p access.RequestParams) (access.AccessRequest, error) {
	p.RequestedAt = s.clock.Now()
	return access.NewAccessRequest(p)
}

func (s *Service) validateInput(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewValidationError("INVALID_INPUT", err.Error())
	}
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return errors.NewValidationError("INVALID_INPUT", "input failed validation").WithDetails(fields).WithCause(err)
}

// inferSensitivity classifies every field of the payload and returns the
// resulting entity sensitivity, or nil for payload shapes the filter engine
// does not accept
func (s *Service) inferSensitivity(payload any, entityType string) *access.SensitivityLevel {
	var items []map[string]any
	switch p := payload.(type) {
	case map[string]any:
		items = []map[string]any{p}
	case []map[string]any:
		items = p
	case []any:
		for _, v := range p {
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			items = append(items, m)
		}
	default:
		return nil
	}

	fields := make(map[string]access.SensitivityLevel)
	for _, item := range items {
		for name, level := range s.classifier.ClassifyFields(item, entityType) {
			if prev, ok := fields[name]; !ok || level.Rank() > prev.Rank() {
				fields[name] = level
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	level := s.analyzer.CalculateEntitySensitivity(fields)
	return &level
}

func invalidResult(err error) *CheckResult {
	return &CheckResult{
		Outcome:      errors.OutcomeOf(err),
		Result:       access.ResultDenied,
		DenialReason: err.Error(),
	}
}

// payloadSize counts the items in a payload
func payloadSize(payload any) int {
	switch p := payload.(type) {
	case nil:
		return 0
	case []map[string]any:
		return len(p)
	case []any:
		return len(p)
	}
	return 1
}
