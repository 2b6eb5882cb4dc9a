package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PermissionRepository defines the interface for explicit grant persistence
type PermissionRepository interface {
	// Create stores a new grant
	Create(ctx context.Context, p *DataAccessPermission) error

	// GetByID retrieves a grant by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*DataAccessPermission, error)

	// FindActive lists active, unexpired grants from grantor to grantee for a
	// category and access type, oldest first
	FindActive(ctx context.Context, granteeCompanyID, grantorCompanyID uuid.UUID, category DataCategory, accessType AccessType, now time.Time) ([]*DataAccessPermission, error)

	// Update writes p if its Version still matches the stored row and
	// advances p.Version. A stale version yields a conflict error.
	Update(ctx context.Context, p *DataAccessPermission) error

	// ListActiveByGranteeUser lists active grants issued to a user
	ListActiveByGranteeUser(ctx context.Context, userID uuid.UUID) ([]*DataAccessPermission, error)

	// ListActiveByCompany lists active grants where the company is grantee
	ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]*DataAccessPermission, error)

	// ListExpired lists active grants whose expiry is at or before now
	ListExpired(ctx context.Context, now time.Time) ([]*DataAccessPermission, error)
}

// RelationshipRepository reads recorded business relationships
type RelationshipRepository interface {
	// FindActiveRelationship returns the active relationship between a and b
	// in either direction, or nil when none exists
	FindActiveRelationship(ctx context.Context, a, b uuid.UUID) (*BusinessRelationship, error)
}

// TransactionRepository reads completed trade history
type TransactionRepository interface {
	// TransactionStats summarizes completed transactions where seller sold to buyer
	TransactionStats(ctx context.Context, sellerID, buyerID uuid.UUID) (TransactionStats, error)

	// HasCommonCounterparty reports whether a third company has transacted
	// with both a and b
	HasCommonCounterparty(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// DirectoryRepository reads user roles and company attributes
type DirectoryRepository interface {
	GetUserRole(ctx context.Context, userID, companyID uuid.UUID) (Role, error)
	GetCompanyTier(ctx context.Context, companyID uuid.UUID) (string, error)
}

// AuditRepository is the append-only audit sink
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error

	// CountRecentDenials counts denied access decisions by a user since a
	// point in time. Audited internal errors are not denials.
	CountRecentDenials(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// ListForCompany lists entries whose actor is the company, newest first
	ListForCompany(ctx context.Context, companyID uuid.UUID, since time.Time) ([]*AuditEntry, error)
}

// ClassificationRule is a configured field sensitivity. EntityType "*"
// applies to every entity type.
type ClassificationRule struct {
	FieldName   string
	EntityType  string
	Sensitivity SensitivityLevel
}

// WildcardEntity matches any entity type in a ClassificationRule
const WildcardEntity = "*"

// ClassificationRuleRepository loads configured classification rules
type ClassificationRuleRepository interface {
	ListRules(ctx context.Context) ([]ClassificationRule, error)
}
