package access

import (
	"time"

	"github.com/google/uuid"
)

// BusinessRelationship is a recorded trading or partnership link
type BusinessRelationship struct {
	ID            uuid.UUID
	CompanyAID    uuid.UUID
	CompanyBID    uuid.UUID
	Type          RelationshipType
	EstablishedAt time.Time
	Verified      bool
	IsActive      bool
}

// Links reports whether the relationship joins a and b in either direction
func (r BusinessRelationship) Links(a, b uuid.UUID) bool {
	return (r.CompanyAID == a && r.CompanyBID == b) || (r.CompanyAID == b && r.CompanyBID == a)
}

// TransactionStats summarizes completed transactions from a seller to a buyer
type TransactionStats struct {
	Count             int
	LastTransactionAt *time.Time
}

// Merge combines stats for both trade directions
func (s TransactionStats) Merge(other TransactionStats) TransactionStats {
	merged := TransactionStats{Count: s.Count + other.Count, LastTransactionAt: s.LastTransactionAt}
	if other.LastTransactionAt != nil && (merged.LastTransactionAt == nil || other.LastTransactionAt.After(*merged.LastTransactionAt)) {
		merged.LastTransactionAt = other.LastTransactionAt
	}
	return merged
}

// Evidence sources for a relationship result
const (
	EvidenceSameCompany        = "same_company"
	EvidenceDirect             = "direct_relationship"
	EvidenceTransactionHistory = "transaction_history"
	EvidenceMultiHop           = "multi_hop"
	EvidenceNone               = "none"
)

// RelationshipEvidence records what a relationship result was derived from
type RelationshipEvidence struct {
	Source            string     `json:"source"`
	RelationshipID    *uuid.UUID `json:"relationship_id,omitempty"`
	AgeDays           int        `json:"age_days,omitempty"`
	Verified          bool       `json:"verified,omitempty"`
	TransactionCount  int        `json:"transaction_count,omitempty"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
}

// RelationshipResult is the output of a relationship check
type RelationshipResult struct {
	Exists   bool                 `json:"exists"`
	Type     RelationshipType     `json:"type,omitempty"`
	Strength float64              `json:"strength"`
	Evidence RelationshipEvidence `json:"evidence"`
}

// NoRelationship is the zero-strength result
func NoRelationship() RelationshipResult {
	return RelationshipResult{Evidence: RelationshipEvidence{Source: EvidenceNone}}
}

// RelationshipCapabilities is a coarse capability view derived from strength
type RelationshipCapabilities struct {
	Relationship             RelationshipResult `json:"relationship"`
	CanAccessBasicInfo       bool               `json:"can_access_basic_info"`
	CanAccessFinancialData   bool               `json:"can_access_financial_data"`
	CanAccessOperationalData bool               `json:"can_access_operational_data"`
	CanAccessStrategicData   bool               `json:"can_access_strategic_data"`
	MaxSensitivity           SensitivityLevel   `json:"max_sensitivity"`
}
