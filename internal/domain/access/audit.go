package access

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies what an audit row records
type AuditEventType string

const (
	AuditAccessGranted         AuditEventType = "access_granted"
	AuditAccessDenied          AuditEventType = "access_denied"
	AuditAccessConditional     AuditEventType = "access_conditional"
	AuditAccessPendingApproval AuditEventType = "access_pending_approval"
	AuditDataAccessed          AuditEventType = "data_accessed"
	AuditPermissionGranted     AuditEventType = "permission_granted"
	AuditPermissionRevoked     AuditEventType = "permission_revoked"
	AuditPermissionExtended    AuditEventType = "permission_extended"
	AuditPermissionExpired     AuditEventType = "permission_expired"
	AuditAccessError           AuditEventType = "access_error"
)

// String returns the string representation of the event type
func (t AuditEventType) String() string {
	return string(t)
}

// AuditEventForDecision maps a decision type to the attempt event it produces
func AuditEventForDecision(d DecisionType) AuditEventType {
	switch d {
	case DecisionAllow:
		return AuditAccessGranted
	case DecisionConditional:
		return AuditAccessConditional
	case DecisionRequireApproval:
		return AuditAccessPendingApproval
	}
	return AuditAccessDenied
}

// AuditEntry is a write-once record of an access event
type AuditEntry struct {
	ID               uuid.UUID
	EventType        AuditEventType
	ActorUserID      uuid.UUID
	ActorCompanyID   uuid.UUID
	TargetCompanyID  *uuid.UUID
	EntityType       string
	EntityID         *uuid.UUID
	DataCategory     DataCategory
	AccessType       AccessType
	Result           AccessResult
	Reason           string
	Factors          []string
	PermissionID     *uuid.UUID
	PayloadSize      int
	FilteringApplied bool
	FilteredFields   []string
	IPAddress        string
	UserAgent        string
	SessionID        string
	OccurredAt       time.Time
}

// NewAuditEntryFromRequest seeds an entry with the request's actor and scope
func NewAuditEntryFromRequest(eventType AuditEventType, req AccessRequest, now time.Time) *AuditEntry {
	return &AuditEntry{
		ID:              uuid.New(),
		EventType:       eventType,
		ActorUserID:     req.RequestingUserID,
		ActorCompanyID:  req.RequestingCompanyID,
		TargetCompanyID: cloneUUID(req.TargetCompanyID),
		EntityType:      req.EntityType,
		EntityID:        cloneUUID(req.EntityID),
		DataCategory:    req.DataCategory,
		AccessType:      req.AccessType,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
		SessionID:       req.SessionID,
		OccurredAt:      now,
	}
}

// IsCrossCompany reports whether the entry targeted another company
func (e *AuditEntry) IsCrossCompany() bool {
	return e.TargetCompanyID != nil && *e.TargetCompanyID != e.ActorCompanyID
}

// IsAttempt reports whether the entry records an access decision
func (e *AuditEntry) IsAttempt() bool {
	switch e.EventType {
	case AuditAccessGranted, AuditAccessDenied, AuditAccessConditional, AuditAccessPendingApproval, AuditAccessError:
		return true
	}
	return false
}
