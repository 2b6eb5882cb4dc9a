package accesscontrol

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// DefaultSummaryDays is the window used by GetAccessSummary when none is given
const DefaultSummaryDays = 30

// CheckAccessInput is an access attempt as received from a caller
type CheckAccessInput struct {
	RequestingUserID    uuid.UUID                `validate:"required"`
	RequestingCompanyID uuid.UUID                `validate:"required"`
	TargetCompanyID     *uuid.UUID               `validate:"omitempty"`
	DataCategory        access.DataCategory      `validate:"required"`
	AccessType          access.AccessType        `validate:"required"`
	EntityType          string                   `validate:"required,max=100"`
	EntityID            *uuid.UUID               `validate:"omitempty"`
	SensitivityLevel    *access.SensitivityLevel `validate:"omitempty"`
	IPAddress           string                   `validate:"omitempty,ip"`
	UserAgent           string                   `validate:"max=512"`
	SessionID           string                   `validate:"max=128"`
	Purpose             string                   `validate:"max=256"`
	RequestedFields     []string                 `validate:"omitempty,dive,required"`
}

func (in CheckAccessInput) params() access.RequestParams {
	return access.RequestParams{
		RequestingUserID:    in.RequestingUserID,
		RequestingCompanyID: in.RequestingCompanyID,
		TargetCompanyID:     in.TargetCompanyID,
		DataCategory:        in.DataCategory,
		AccessType:          in.AccessType,
		EntityType:          in.EntityType,
		EntityID:            in.EntityID,
		SensitivityLevel:    in.SensitivityLevel,
		IPAddress:           in.IPAddress,
		UserAgent:           in.UserAgent,
		SessionID:           in.SessionID,
		Purpose:             in.Purpose,
		RequestedFields:     in.RequestedFields,
	}
}

// CheckResult is the typed outcome of an access check. Result is always set;
// a failed check is reported as denied.
type CheckResult struct {
	Outcome      errors.Outcome
	Result       access.AccessResult
	Decision     *access.AccessDecision
	Permission   *access.DataAccessPermission
	DenialReason string
}

// Granted reports whether data may be returned
func (r *CheckResult) Granted() bool {
	return r.Decision != nil && r.Decision.IsGranted()
}

// FilterInput is a payload to be redacted for a requester. AccessType
// defaults to read.
type FilterInput struct {
	Payload             any                 `validate:"required"`
	RequestingUserID    uuid.UUID           `validate:"required"`
	RequestingCompanyID uuid.UUID           `validate:"required"`
	EntityType          string              `validate:"required,max=100"`
	DataCategory        access.DataCategory `validate:"required"`
	Purpose             string              `validate:"max=256"`
	RequestedFields     []string            `validate:"omitempty,dive,required"`
	IPAddress           string              `validate:"omitempty,ip"`
	SessionID           string              `validate:"max=128"`

	TargetCompanyID  *uuid.UUID
	EntityID         *uuid.UUID
	AccessType       access.AccessType
	SensitivityLevel *access.SensitivityLevel
}

// FilterResult carries the redacted payload. Data is nil when access was not
// granted.
type FilterResult struct {
	Check            *CheckResult
	Data             any
	FilteringApplied bool
	FilteredFields   []string
	Contexts         []*access.DataFilterContext
}

// GrantPermissionInput asks for an explicit grant covering a request scope
type GrantPermissionInput struct {
	Request        CheckAccessInput
	GrantedBy      uuid.UUID `validate:"required"`
	DurationDays   int       `validate:"gte=0"`
	Conditions     []string  `validate:"omitempty,dive,required"`
	MaxSensitivity *access.SensitivityLevel
}

// DenialRecord is one recent denial in an access summary
type DenialRecord struct {
	OccurredAt      time.Time           `json:"occurred_at"`
	ActorUserID     uuid.UUID           `json:"actor_user_id"`
	ActorCompanyID  uuid.UUID           `json:"actor_company_id"`
	TargetCompanyID *uuid.UUID          `json:"target_company_id,omitempty"`
	DataCategory    access.DataCategory `json:"data_category"`
	Reason          string              `json:"reason"`
}

// AccessSummary is a rolling view of a company's access attempts
type AccessSummary struct {
	CompanyID         uuid.UUID                   `json:"company_id"`
	PeriodDays        int                         `json:"period_days"`
	Since             time.Time                   `json:"since"`
	TotalAttempts     int                         `json:"total_attempts"`
	ByResult          map[access.AccessResult]int `json:"by_result"`
	UniqueUsers       int                         `json:"unique_users"`
	CrossCompanyCount int                         `json:"cross_company_count"`
	DataAccessEvents  int                         `json:"data_access_events"`
	RecentDenials     []DenialRecord              `json:"recent_denials"`
	GeneratedAt       time.Time                   `json:"generated_at"`
}
