package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// ReasonExpired is recorded when the expiry sweep deactivates a grant
const ReasonExpired = "Expired"

// DataAccessPermission is an explicit, long-lived grant from one company to
// another. Rows are never deleted; revocation flips IsActive and stamps the
// revocation fields. Version is the optimistic-lock revision counter and is
// advanced by the repository on every successful update.
type DataAccessPermission struct {
	ID               uuid.UUID
	GrantorCompanyID uuid.UUID
	GranteeCompanyID uuid.UUID
	GranteeUserID    *uuid.UUID
	DataCategory     DataCategory
	AccessType       AccessType
	EntityType       string
	EntityID         *uuid.UUID
	MaxSensitivity   SensitivityLevel
	ExpiresAt        *time.Time
	Conditions       []string
	IsActive         bool
	GrantedBy        uuid.UUID
	GrantedAt        time.Time
	RevokedAt        *time.Time
	RevokedBy        *uuid.UUID
	RevocationReason string
	UpdatedAt        time.Time
	Version          int64
}

// NewPermissionFromRequest creates a grant covering exactly the request's
// scope. The grantee is the requesting company (and user); the grantor is the
// company that owns the data.
func NewPermissionFromRequest(req AccessRequest, grantedBy uuid.UUID, maxSensitivity SensitivityLevel, expiresAt *time.Time, conditions []string, now time.Time) (*DataAccessPermission, error) {
	if grantedBy == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_GRANTOR", "granting user ID is required")
	}
	if !maxSensitivity.IsValid() {
		return nil, errors.NewValidationError("INVALID_SENSITIVITY", "unknown max sensitivity: "+maxSensitivity.String())
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, errors.NewValidationError("INVALID_EXPIRY", "expiry must be in the future")
	}

	user := req.RequestingUserID
	return &DataAccessPermission{
		ID:               uuid.New(),
		GrantorCompanyID: req.EffectiveTargetCompany(),
		GranteeCompanyID: req.RequestingCompanyID,
		GranteeUserID:    &user,
		DataCategory:     req.DataCategory,
		AccessType:       req.AccessType,
		EntityType:       req.EntityType,
		EntityID:         cloneUUID(req.EntityID),
		MaxSensitivity:   maxSensitivity,
		ExpiresAt:        expiresAt,
		Conditions:       append([]string(nil), conditions...),
		IsActive:         true,
		GrantedBy:        grantedBy,
		GrantedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}, nil
}

// IsExpired reports whether the grant has passed its expiry at now
func (p *DataAccessPermission) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// IsValid reports whether the grant is active and unexpired at now
func (p *DataAccessPermission) IsValid(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now)
}

// Covers reports whether the grant authorizes req at now: same grantee,
// grantor, category and access type; entity type when the grant names one;
// entity id when both sides name one; requested sensitivity within the max.
func (p *DataAccessPermission) Covers(req AccessRequest, now time.Time) bool {
	if !p.IsValid(now) {
		return false
	}
	if p.GranteeCompanyID != req.RequestingCompanyID || p.GrantorCompanyID != req.EffectiveTargetCompany() {
		return false
	}
	if p.GranteeUserID != nil && *p.GranteeUserID != req.RequestingUserID {
		return false
	}
	if p.DataCategory != req.DataCategory || p.AccessType != req.AccessType {
		return false
	}
	if p.EntityType != "" && p.EntityType != req.EntityType {
		return false
	}
	if p.EntityID != nil && req.EntityID != nil && *p.EntityID != *req.EntityID {
		return false
	}
	if req.SensitivityLevel != nil && !req.SensitivityLevel.AtMost(p.MaxSensitivity) {
		return false
	}
	return true
}

// Revoke deactivates the grant. Revoking an inactive grant is an error so the
// caller can report "nothing changed".
func (p *DataAccessPermission) Revoke(by *uuid.UUID, reason string, now time.Time) error {
	if !p.IsActive {
		return errors.NewBusinessError("PERMISSION_INACTIVE", "permission is already inactive")
	}
	p.IsActive = false
	p.RevokedAt = &now
	p.RevokedBy = cloneUUID(by)
	p.RevocationReason = reason
	p.UpdatedAt = now
	return nil
}

// Extend pushes the expiry out by days, counted from the current expiry or
// from now when the grant has none.
func (p *DataAccessPermission) Extend(days int, now time.Time) error {
	if days <= 0 {
		return errors.NewValidationError("INVALID_EXTENSION", "additional days must be positive")
	}
	if !p.IsActive {
		return errors.NewBusinessError("PERMISSION_INACTIVE", "cannot extend an inactive permission")
	}
	base := now
	if p.ExpiresAt != nil {
		base = *p.ExpiresAt
	}
	next := base.AddDate(0, 0, days)
	p.ExpiresAt = &next
	p.UpdatedAt = now
	return nil
}

// ExpiresWithin reports whether an active grant expires inside the window
func (p *DataAccessPermission) ExpiresWithin(window time.Duration, now time.Time) bool {
	return p.IsValid(now) && p.ExpiresAt != nil && p.ExpiresAt.Before(now.Add(window))
}
