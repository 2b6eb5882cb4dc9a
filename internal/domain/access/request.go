package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// RequestParams carries the raw attributes of an access attempt
type RequestParams struct {
	RequestingUserID    uuid.UUID
	RequestingCompanyID uuid.UUID
	TargetCompanyID     *uuid.UUID
	DataCategory        DataCategory
	AccessType          AccessType
	EntityType          string
	EntityID            *uuid.UUID
	SensitivityLevel    *SensitivityLevel
	PayloadSensitivity  *SensitivityLevel
	RequestedAt         time.Time
	IPAddress           string
	UserAgent           string
	SessionID           string
	Purpose             string
	RequestedFields     []string
}

// AccessRequest is a validated access attempt. It is built once through
// NewAccessRequest and passed by value; the constructor copies every
// reference field so later mutation of the params cannot leak in.
type AccessRequest struct {
	RequestingUserID    uuid.UUID
	RequestingCompanyID uuid.UUID
	TargetCompanyID     *uuid.UUID
	DataCategory        DataCategory
	AccessType          AccessType
	EntityType          string
	EntityID            *uuid.UUID
	SensitivityLevel    *SensitivityLevel
	// PayloadSensitivity is what classification observed in the payload
	// being returned. It selects a filtering strategy but never gates or
	// scopes the decision; only SensitivityLevel does that.
	PayloadSensitivity *SensitivityLevel
	RequestedAt        time.Time
	IPAddress          string
	UserAgent          string
	SessionID          string
	Purpose            string
	RequestedFields    []string
}

// NewAccessRequest validates params and returns an immutable request
func NewAccessRequest(p RequestParams) (AccessRequest, error) {
	if p.RequestingUserID == uuid.Nil {
		return AccessRequest{}, errors.NewValidationError("INVALID_USER", "requesting user ID is required")
	}
	if p.RequestingCompanyID == uuid.Nil {
		return AccessRequest{}, errors.NewValidationError("INVALID_COMPANY", "requesting company ID is required")
	}
	if p.TargetCompanyID != nil && *p.TargetCompanyID == uuid.Nil {
		return AccessRequest{}, errors.NewValidationError("INVALID_TARGET", "target company ID must not be empty when set")
	}
	if !p.DataCategory.IsValid() {
		return AccessRequest{}, errors.NewValidationError("INVALID_CATEGORY", "unknown data category: "+p.DataCategory.String())
	}
	if !p.AccessType.IsValid() {
		return AccessRequest{}, errors.NewValidationError("INVALID_ACCESS_TYPE", "unknown access type: "+p.AccessType.String())
	}
	if p.EntityType == "" {
		if p.EntityID != nil {
			return AccessRequest{}, errors.NewValidationError("CONFLICTING_SCOPE", "entity ID requires an entity type")
		}
		return AccessRequest{}, errors.NewValidationError("INVALID_ENTITY_TYPE", "entity type is required")
	}
	if p.EntityID != nil && *p.EntityID == uuid.Nil {
		return AccessRequest{}, errors.NewValidationError("CONFLICTING_SCOPE", "entity ID must not be empty when set")
	}
	if p.SensitivityLevel != nil && !p.SensitivityLevel.IsValid() {
		return AccessRequest{}, errors.NewValidationError("INVALID_SENSITIVITY", "unknown sensitivity level: "+p.SensitivityLevel.String())
	}
	if p.PayloadSensitivity != nil && !p.PayloadSensitivity.IsValid() {
		return AccessRequest{}, errors.NewValidationError("INVALID_SENSITIVITY", "unknown payload sensitivity: "+p.PayloadSensitivity.String())
	}

	req := AccessRequest{
		RequestingUserID:    p.RequestingUserID,
		RequestingCompanyID: p.RequestingCompanyID,
		TargetCompanyID:     cloneUUID(p.TargetCompanyID),
		DataCategory:        p.DataCategory,
		AccessType:          p.AccessType,
		EntityType:          p.EntityType,
		EntityID:            cloneUUID(p.EntityID),
		RequestedAt:         p.RequestedAt,
		IPAddress:           p.IPAddress,
		UserAgent:           p.UserAgent,
		SessionID:           p.SessionID,
		Purpose:             p.Purpose,
	}
	if p.SensitivityLevel != nil {
		level := *p.SensitivityLevel
		req.SensitivityLevel = &level
	}
	if p.PayloadSensitivity != nil {
		level := *p.PayloadSensitivity
		req.PayloadSensitivity = &level
	}
	if len(p.RequestedFields) > 0 {
		req.RequestedFields = append([]string(nil), p.RequestedFields...)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	return req, nil
}

// IsCrossCompanyAccess reports whether the target is set and differs from
// the requester's company
func (r AccessRequest) IsCrossCompanyAccess() bool {
	return r.TargetCompanyID != nil && *r.TargetCompanyID != r.RequestingCompanyID
}

// IsSensitiveData reports whether the declared sensitivity is confidential
// or restricted
func (r AccessRequest) IsSensitiveData() bool {
	return r.SensitivityLevel != nil && r.SensitivityLevel.IsSensitive()
}

// CarriesSensitiveData reports whether the declared sensitivity or the
// observed payload sensitivity is confidential or restricted
func (r AccessRequest) CarriesSensitiveData() bool {
	return r.IsSensitiveData() || (r.PayloadSensitivity != nil && r.PayloadSensitivity.IsSensitive())
}

// EffectiveTargetCompany returns the company that owns the data
func (r AccessRequest) EffectiveTargetCompany() uuid.UUID {
	if r.TargetCompanyID != nil {
		return *r.TargetCompanyID
	}
	return r.RequestingCompanyID
}

// Sensitivity returns the declared sensitivity or public when none was given
func (r AccessRequest) Sensitivity() SensitivityLevel {
	if r.SensitivityLevel == nil {
		return SensitivityPublic
	}
	return *r.SensitivityLevel
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
