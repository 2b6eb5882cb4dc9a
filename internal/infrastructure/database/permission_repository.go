package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	domainerrors "github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

const permissionColumns = `
	id, grantor_company_id, grantee_company_id, grantee_user_id, data_category,
	access_type, entity_type, entity_id, max_sensitivity, expires_at, conditions,
	is_active, granted_by, granted_at, revoked_at, revoked_by, revocation_reason,
	updated_at, version`

// PermissionRepository persists explicit grants in data_access_permissions
type PermissionRepository struct {
	db *pgxpool.Pool
}

// NewPermissionRepository creates a new PostgreSQL permission repository
func NewPermissionRepository(db *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Create(ctx context.Context, p *access.DataAccessPermission) error {
	query := `
		INSERT INTO data_access_permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	if p.Version == 0 {
		p.Version = 1
	}
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.GrantorCompanyID,
		p.GranteeCompanyID,
		p.GranteeUserID,
		string(p.DataCategory),
		string(p.AccessType),
		p.EntityType,
		p.EntityID,
		string(p.MaxSensitivity),
		p.ExpiresAt,
		nonNilStrings(p.Conditions),
		p.IsActive,
		p.GrantedBy,
		p.GrantedAt,
		p.RevokedAt,
		p.RevokedBy,
		p.RevocationReason,
		p.UpdatedAt,
		p.Version,
	)
	return wrapError(err, "permission", "create permission")
}

func (r *PermissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*access.DataAccessPermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM data_access_permissions WHERE id = $1`

	p, err := scanPermission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "permission", "get permission")
	}
	return p, nil
}

func (r *PermissionRepository) FindActive(ctx context.Context, granteeCompanyID, grantorCompanyID uuid.UUID, category access.DataCategory, accessType access.AccessType, now time.Time) ([]*access.DataAccessPermission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM data_access_permissions
		WHERE grantee_company_id = $1
		  AND grantor_company_id = $2
		  AND data_category = $3
		  AND access_type = $4
		  AND is_active
		  AND (expires_at IS NULL OR expires_at > $5)
		ORDER BY granted_at`

	return r.list(ctx, "find active permissions", query,
		granteeCompanyID, grantorCompanyID, string(category), string(accessType), now)
}

// Update writes p under optimistic locking on its version
func (r *PermissionRepository) Update(ctx context.Context, p *access.DataAccessPermission) error {
	query := `
		UPDATE data_access_permissions
		SET expires_at = $2,
		    conditions = $3,
		    is_active = $4,
		    revoked_at = $5,
		    revoked_by = $6,
		    revocation_reason = $7,
		    updated_at = $8,
		    version = version + 1
		WHERE id = $1 AND version = $9`

	tag, err := r.db.Exec(ctx, query,
		p.ID,
		p.ExpiresAt,
		nonNilStrings(p.Conditions),
		p.IsActive,
		p.RevokedAt,
		p.RevokedBy,
		p.RevocationReason,
		p.UpdatedAt,
		p.Version,
	)
	if err != nil {
		return wrapError(err, "permission", "update permission")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM data_access_permissions WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return wrapError(err, "permission", "check permission")
		}
		if !exists {
			return domainerrors.NewNotFoundError("permission")
		}
		return domainerrors.NewConflictError("permission was modified concurrently")
	}
	p.Version++
	return nil
}

func (r *PermissionRepository) ListActiveByGranteeUser(ctx context.Context, userID uuid.UUID) ([]*access.DataAccessPermission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM data_access_permissions
		WHERE grantee_user_id = $1 AND is_active
		ORDER BY granted_at`

	return r.list(ctx, "list user permissions", query, userID)
}

func (r *PermissionRepository) ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]*access.DataAccessPermission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM data_access_permissions
		WHERE grantee_company_id = $1 AND is_active
		ORDER BY granted_at`

	return r.list(ctx, "list company permissions", query, companyID)
}

func (r *PermissionRepository) ListExpired(ctx context.Context, now time.Time) ([]*access.DataAccessPermission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM data_access_permissions
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at`

	return r.list(ctx, "list expired permissions", query, now)
}

func (r *PermissionRepository) list(ctx context.Context, op, query string, args ...any) ([]*access.DataAccessPermission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "permission", op)
	}
	perms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*access.DataAccessPermission, error) {
		return scanPermission(row)
	})
	if err != nil {
		return nil, wrapError(err, "permission", op)
	}
	return perms, nil
}

func scanPermission(row pgx.Row) (*access.DataAccessPermission, error) {
	var (
		p                                    access.DataAccessPermission
		category, accessType, maxSensitivity string
	)
	err := row.Scan(
		&p.ID,
		&p.GrantorCompanyID,
		&p.GranteeCompanyID,
		&p.GranteeUserID,
		&category,
		&accessType,
		&p.EntityType,
		&p.EntityID,
		&maxSensitivity,
		&p.ExpiresAt,
		&p.Conditions,
		&p.IsActive,
		&p.GrantedBy,
		&p.GrantedAt,
		&p.RevokedAt,
		&p.RevokedBy,
		&p.RevocationReason,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.DataCategory = access.DataCategory(category)
	p.AccessType = access.AccessType(accessType)
	p.MaxSensitivity = access.SensitivityLevel(maxSensitivity)
	return &p, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
