package accesscontrol

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// GrantOptions tune a new explicit permission
type GrantOptions struct {
	// DurationDays of zero falls back to the policy default; a policy
	// default of zero means the grant does not expire
	DurationDays   int
	Conditions     []string
	MaxSensitivity *access.SensitivityLevel
}

// PermissionSummary counts a company's active grants
type PermissionSummary struct {
	CompanyID      uuid.UUID                   `json:"company_id"`
	TotalActive    int                         `json:"total_active"`
	ByCategory     map[access.DataCategory]int `json:"by_category"`
	ByAccessType   map[access.AccessType]int   `json:"by_access_type"`
	ExpiringSoon   int                         `json:"expiring_soon"`
	ExpiringWithin time.Duration               `json:"expiring_within"`
	GeneratedAt    time.Time                   `json:"generated_at"`
}

// PermissionManager owns the explicit grant lifecycle. Every mutation is a
// single versioned row write; a lost race surfaces as a conflict error.
type PermissionManager struct {
	logger *zap.Logger
	repo   access.PermissionRepository
	policy access.GrantPolicy
	clock  access.Clock
}

// NewPermissionManager creates a new permission manager
func NewPermissionManager(logger *zap.Logger, repo access.PermissionRepository, policy access.GrantPolicy, clock access.Clock) *PermissionManager {
	return &PermissionManager{
		logger: logger.With(zap.String("component", "permission_manager")),
		repo:   repo,
		policy: policy,
		clock:  clock,
	}
}

// Grant issues a permission covering exactly req's scope
func (m *PermissionManager) Grant(ctx context.Context, req access.AccessRequest, grantedBy uuid.UUID, opts GrantOptions) (*access.DataAccessPermission, error) {
	now := m.clock.Now()

	days := opts.DurationDays
	if days == 0 {
		days = m.policy.DefaultDurationDays
	}
	if days < 0 {
		return nil, errors.NewValidationError("INVALID_DURATION", "duration must not be negative")
	}
	var expiresAt *time.Time
	if days > 0 {
		exp := now.AddDate(0, 0, days)
		expiresAt = &exp
	}

	maxSensitivity := access.SensitivityInternal
	switch {
	case opts.MaxSensitivity != nil:
		maxSensitivity = *opts.MaxSensitivity
	case req.SensitivityLevel != nil:
		maxSensitivity = *req.SensitivityLevel
	}

	p, err := access.NewPermissionFromRequest(req, grantedBy, maxSensitivity, expiresAt, opts.Conditions, now)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Create(ctx, p); err != nil {
		return nil, errors.NewInternalError("failed to store permission").WithCause(err)
	}

	m.logger.Info("permission granted",
		zap.String("permission_id", p.ID.String()),
		zap.String("grantor_company_id", p.GrantorCompanyID.String()),
		zap.String("grantee_company_id", p.GranteeCompanyID.String()),
		zap.String("data_category", p.DataCategory.String()),
		zap.String("access_type", p.AccessType.String()),
	)
	return p, nil
}

// Revoke deactivates a permission. It returns false without error when the
// permission does not exist or is already inactive.
func (m *PermissionManager) Revoke(ctx context.Context, id uuid.UUID, revokedBy uuid.UUID, reason string) (*access.DataAccessPermission, bool, error) {
	p, ok, err := m.loadActive(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := m.revoke(ctx, p, &revokedBy, reason); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// RevokeAllForUser revokes every active grant issued to a user. Failures do
// not stop the sweep; they are returned together.
func (m *PermissionManager) RevokeAllForUser(ctx context.Context, userID, revokedBy uuid.UUID, reason string) ([]*access.DataAccessPermission, error) {
	perms, err := m.repo.ListActiveByGranteeUser(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list user permissions").WithCause(err)
	}
	return m.revokeEach(ctx, perms, &revokedBy, reason)
}

// RevokeAllForCompany revokes every active grant held by a company
func (m *PermissionManager) RevokeAllForCompany(ctx context.Context, companyID, revokedBy uuid.UUID, reason string) ([]*access.DataAccessPermission, error) {
	perms, err := m.repo.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list company permissions").WithCause(err)
	}
	return m.revokeEach(ctx, perms, &revokedBy, reason)
}

// Extend pushes a permission's expiry out. It returns false without error
// when the permission does not exist or is inactive.
func (m *PermissionManager) Extend(ctx context.Context, id uuid.UUID, additionalDays int, extendedBy uuid.UUID) (*access.DataAccessPermission, bool, error) {
	if additionalDays <= 0 {
		return nil, false, errors.NewValidationError("INVALID_EXTENSION", "additional days must be positive")
	}
	p, ok, err := m.loadActive(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := p.Extend(additionalDays, m.clock.Now()); err != nil {
		return nil, false, err
	}
	if err := m.update(ctx, p); err != nil {
		return nil, false, err
	}

	m.logger.Info("permission extended",
		zap.String("permission_id", p.ID.String()),
		zap.String("extended_by", extendedBy.String()),
		zap.Timep("expires_at", p.ExpiresAt),
	)
	return p, true, nil
}

// CleanupExpired deactivates every active grant past its expiry
func (m *PermissionManager) CleanupExpired(ctx context.Context) ([]*access.DataAccessPermission, error) {
	perms, err := m.repo.ListExpired(ctx, m.clock.Now())
	if err != nil {
		return nil, errors.NewInternalError("failed to list expired permissions").WithCause(err)
	}
	return m.revokeEach(ctx, perms, nil, access.ReasonExpired)
}

// Summary counts a company's active grants by category and access type
func (m *PermissionManager) Summary(ctx context.Context, companyID uuid.UUID) (*PermissionSummary, error) {
	perms, err := m.repo.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list company permissions").WithCause(err)
	}

	now := m.clock.Now()
	s := &PermissionSummary{
		CompanyID:      companyID,
		ByCategory:     make(map[access.DataCategory]int),
		ByAccessType:   make(map[access.AccessType]int),
		ExpiringWithin: m.policy.ExpiringWindow,
		GeneratedAt:    now,
	}
	for _, p := range perms {
		if !p.IsValid(now) {
			continue
		}
		s.TotalActive++
		s.ByCategory[p.DataCategory]++
		s.ByAccessType[p.AccessType]++
		if p.ExpiresWithin(m.policy.ExpiringWindow, now) {
			s.ExpiringSoon++
		}
	}
	return s, nil
}

func (m *PermissionManager) loadActive(ctx context.Context, id uuid.UUID) (*access.DataAccessPermission, bool, error) {
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, errors.NewInternalError("failed to load permission").WithCause(err)
	}
	if !p.IsActive {
		return nil, false, nil
	}
	return p, true, nil
}

func (m *PermissionManager) revokeEach(ctx context.Context, perms []*access.DataAccessPermission, by *uuid.UUID, reason string) ([]*access.DataAccessPermission, error) {
	var result *multierror.Error
	revoked := make([]*access.DataAccessPermission, 0, len(perms))
	for _, p := range perms {
		if err := m.revoke(ctx, p, by, reason); err != nil {
			result = multierror.Append(result, fmt.Errorf("permission %s: %w", p.ID, err))
			continue
		}
		revoked = append(revoked, p)
	}
	return revoked, result.ErrorOrNil()
}

func (m *PermissionManager) revoke(ctx context.Context, p *access.DataAccessPermission, by *uuid.UUID, reason string) error {
	if err := p.Revoke(by, reason, m.clock.Now()); err != nil {
		return err
	}
	if err := m.update(ctx, p); err != nil {
		return err
	}
	m.logger.Info("permission revoked",
		zap.String("permission_id", p.ID.String()),
		zap.String("reason", reason),
	)
	return nil
}

func (m *PermissionManager) update(ctx context.Context, p *access.DataAccessPermission) error {
	if err := m.repo.Update(ctx, p); err != nil {
		if errors.IsConflict(err) {
			return err
		}
		return errors.NewInternalError("failed to update permission").WithCause(err)
	}
	return nil
}
