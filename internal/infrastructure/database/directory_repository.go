package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// DirectoryRepository reads company membership and company attributes
type DirectoryRepository struct {
	db *pgxpool.Pool
}

// NewDirectoryRepository creates a new PostgreSQL directory repository
func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// GetUserRole returns the user's role in the company. A user without an
// active membership is a not-found error.
func (r *DirectoryRepository) GetUserRole(ctx context.Context, userID, companyID uuid.UUID) (access.Role, error) {
	query := `
		SELECT role FROM company_users
		WHERE user_id = $1 AND company_id = $2 AND is_active`

	var role string
	if err := r.db.QueryRow(ctx, query, userID, companyID).Scan(&role); err != nil {
		return "", wrapError(err, "company user", "get user role")
	}
	return access.Role(role), nil
}

func (r *DirectoryRepository) GetCompanyTier(ctx context.Context, companyID uuid.UUID) (string, error) {
	var tier string
	if err := r.db.QueryRow(ctx, `SELECT tier FROM companies WHERE id = $1`, companyID).Scan(&tier); err != nil {
		return "", wrapError(err, "company", "get company tier")
	}
	return tier, nil
}
