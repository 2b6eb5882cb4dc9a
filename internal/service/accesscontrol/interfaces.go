package accesscontrol

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// RelationshipCache stores relationship results between checks. Get returns
// nil, nil on a miss.
type RelationshipCache interface {
	Get(ctx context.Context, a, b uuid.UUID) (*access.RelationshipResult, error)
	Set(ctx context.Context, a, b uuid.UUID, result access.RelationshipResult) error
}

// MetricsRecorder receives engine measurements
type MetricsRecorder interface {
	RecordDecision(ctx context.Context, decision access.DecisionType, crossCompany bool, latency time.Duration)
	RecordCheckError(ctx context.Context, outcome string)
	RecordFiltering(ctx context.Context, strategy access.FilteringStrategy, filteredFields int)
	RecordPermissionChange(ctx context.Context, event access.AuditEventType, count int)
	RecordAuditFailure(ctx context.Context, event access.AuditEventType)
	RecordRelationshipCheck(ctx context.Context, source string, cached bool)
}

// Stores groups the persistence ports the service reads and writes
type Stores struct {
	Permissions   access.PermissionRepository
	Relationships access.RelationshipRepository
	Transactions  access.TransactionRepository
	Directory     access.DirectoryRepository
	Audit         access.AuditRepository
}

type noopMetrics struct{}

func (noopMetrics) RecordDecision(context.Context, access.DecisionType, bool, time.Duration) {}
func (noopMetrics) RecordCheckError(context.Context, string)                                 {}
func (noopMetrics) RecordFiltering(context.Context, access.FilteringStrategy, int)           {}
func (noopMetrics) RecordPermissionChange(context.Context, access.AuditEventType, int)       {}
func (noopMetrics) RecordAuditFailure(context.Context, access.AuditEventType)                {}
func (noopMetrics) RecordRelationshipCheck(context.Context, string, bool)                    {}
