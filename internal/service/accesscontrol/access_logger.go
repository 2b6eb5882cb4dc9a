package accesscontrol

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// AccessLogger appends audit rows. It never fails the caller: store errors
// are counted and reported through the logger at a bounded rate.
type AccessLogger struct {
	logger   *zap.Logger
	repo     access.AuditRepository
	metrics  MetricsRecorder
	clock    access.Clock
	reports  *rate.Limiter
	failures atomic.Int64
}

// NewAccessLogger creates a new access logger
func NewAccessLogger(logger *zap.Logger, repo access.AuditRepository, metrics MetricsRecorder, clock access.Clock) *AccessLogger {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AccessLogger{
		logger:  logger.With(zap.String("component", "access_logger")),
		repo:    repo,
		metrics: metrics,
		clock:   clock,
		// one report per second with a small burst
		reports: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// LogAttempt records the decision for an access attempt
func (l *AccessLogger) LogAttempt(ctx context.Context, req access.AccessRequest, d *access.AccessDecision) {
	entry := access.NewAuditEntryFromRequest(access.AuditEventForDecision(d.Type), req, l.clock.Now())
	entry.Result = d.Result
	entry.Reason = d.DenialReason
	entry.Factors = append([]string(nil), d.Factors...)
	entry.PermissionID = d.PermissionID
	l.write(ctx, entry)
}

// LogError records an attempt that failed closed
func (l *AccessLogger) LogError(ctx context.Context, req access.AccessRequest, cause error) {
	entry := access.NewAuditEntryFromRequest(access.AuditAccessError, req, l.clock.Now())
	entry.Result = access.ResultDenied
	if cause != nil {
		entry.Reason = cause.Error()
	}
	l.write(ctx, entry)
}

// LogDataAccess records a payload actually returned to the caller
func (l *AccessLogger) LogDataAccess(ctx context.Context, req access.AccessRequest, d *access.AccessDecision, payloadSize int, filtered []string, applied bool) {
	entry := access.NewAuditEntryFromRequest(access.AuditDataAccessed, req, l.clock.Now())
	entry.Result = d.Result
	entry.PermissionID = d.PermissionID
	entry.PayloadSize = payloadSize
	entry.FilteringApplied = applied
	entry.FilteredFields = filtered
	l.write(ctx, entry)
}

// LogPermissionEvent records a grant lifecycle change. actor is nil for
// system-initiated changes such as expiry.
func (l *AccessLogger) LogPermissionEvent(ctx context.Context, event access.AuditEventType, p *access.DataAccessPermission, actor *uuid.UUID, reason string) {
	entry := &access.AuditEntry{
		ID:             uuid.New(),
		EventType:      event,
		ActorCompanyID: p.GrantorCompanyID,
		EntityType:     p.EntityType,
		EntityID:       p.EntityID,
		DataCategory:   p.DataCategory,
		AccessType:     p.AccessType,
		Reason:         reason,
		OccurredAt:     l.clock.Now(),
	}
	if actor != nil {
		entry.ActorUserID = *actor
	}
	grantee := p.GranteeCompanyID
	entry.TargetCompanyID = &grantee
	id := p.ID
	entry.PermissionID = &id
	l.write(ctx, entry)
}

// Failures returns how many audit writes have failed
func (l *AccessLogger) Failures() int64 {
	return l.failures.Load()
}

func (l *AccessLogger) write(ctx context.Context, entry *access.AuditEntry) {
	err := l.repo.Append(ctx, entry)
	if err == nil {
		return
	}

	n := l.failures.Add(1)
	l.metrics.RecordAuditFailure(ctx, entry.EventType)
	if l.reports.Allow() {
		l.logger.Error("failed to write audit entry",
			zap.Error(err),
			zap.String("event_type", entry.EventType.String()),
			zap.String("actor_user_id", entry.ActorUserID.String()),
			zap.Int64("total_failures", n),
		)
	}
}
