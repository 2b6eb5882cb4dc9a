package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

const auditColumns = `
	id, event_type, actor_user_id, actor_company_id, target_company_id,
	entity_type, entity_id, data_category, access_type, result, reason,
	factors, permission_id, payload_size, filtering_applied, filtered_fields,
	ip_address, user_agent, session_id, occurred_at`

// AuditRepository is the append-only access_audit_log store
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one entry. Entries are never updated.
func (r *AuditRepository) Append(ctx context.Context, e *access.AuditEntry) error {
	query := `
		INSERT INTO access_audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query,
		e.ID,
		string(e.EventType),
		e.ActorUserID,
		e.ActorCompanyID,
		e.TargetCompanyID,
		e.EntityType,
		e.EntityID,
		string(e.DataCategory),
		string(e.AccessType),
		string(e.Result),
		e.Reason,
		nonNilStrings(e.Factors),
		e.PermissionID,
		e.PayloadSize,
		e.FilteringApplied,
		nonNilStrings(e.FilteredFields),
		e.IPAddress,
		e.UserAgent,
		e.SessionID,
		e.OccurredAt,
	)
	return wrapError(err, "audit entry", "append audit entry")
}

// CountRecentDenials counts access_denied decisions only. Fail-closed
// access_error rows are excluded.
func (r *AuditRepository) CountRecentDenials(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM access_audit_log
		WHERE actor_user_id = $1 AND event_type = $2 AND result = $3 AND occurred_at >= $4`

	var n int
	if err := r.db.QueryRow(ctx, query, userID, string(access.AuditAccessDenied), string(access.ResultDenied), since).Scan(&n); err != nil {
		return 0, wrapError(err, "audit entry", "count recent denials")
	}
	return n, nil
}

func (r *AuditRepository) ListForCompany(ctx context.Context, companyID uuid.UUID, since time.Time) ([]*access.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM access_audit_log
		WHERE actor_company_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC`

	rows, err := r.db.Query(ctx, query, companyID, since)
	if err != nil {
		return nil, wrapError(err, "audit entry", "list audit entries")
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*access.AuditEntry, error) {
		return scanAuditEntry(row)
	})
	if err != nil {
		return nil, wrapError(err, "audit entry", "list audit entries")
	}
	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*access.AuditEntry, error) {
	var (
		e                                       access.AuditEntry
		eventType, category, accessType, result string
	)
	err := row.Scan(
		&e.ID,
		&eventType,
		&e.ActorUserID,
		&e.ActorCompanyID,
		&e.TargetCompanyID,
		&e.EntityType,
		&e.EntityID,
		&category,
		&accessType,
		&result,
		&e.Reason,
		&e.Factors,
		&e.PermissionID,
		&e.PayloadSize,
		&e.FilteringApplied,
		&e.FilteredFields,
		&e.IPAddress,
		&e.UserAgent,
		&e.SessionID,
		&e.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	e.EventType = access.AuditEventType(eventType)
	e.DataCategory = access.DataCategory(category)
	e.AccessType = access.AccessType(accessType)
	e.Result = access.AccessResult(result)
	return &e, nil
}
