package access

import (
	"fmt"
	"strings"
)

// DataCategory is the business classification of the data being accessed
type DataCategory string

const (
	CategoryCompanyProfile  DataCategory = "company_profile"
	CategoryOrderData       DataCategory = "order_data"
	CategoryTransactionData DataCategory = "transaction_data"
	CategoryFinancialData   DataCategory = "financial_data"
	CategoryOperationalData DataCategory = "operational_data"
	CategoryStrategicData   DataCategory = "strategic_data"
	CategoryPersonalData    DataCategory = "personal_data"
	CategoryProductData     DataCategory = "product_data"
	CategoryAnalyticsData   DataCategory = "analytics_data"
)

var validCategories = map[DataCategory]bool{
	CategoryCompanyProfile:  true,
	CategoryOrderData:       true,
	CategoryTransactionData: true,
	CategoryFinancialData:   true,
	CategoryOperationalData: true,
	CategoryStrategicData:   true,
	CategoryPersonalData:    true,
	CategoryProductData:     true,
	CategoryAnalyticsData:   true,
}

// String returns the string representation of the category
func (c DataCategory) String() string {
	return string(c)
}

// IsValid reports whether c is a known category
func (c DataCategory) IsValid() bool {
	return validCategories[c]
}

// AccessType is the read/write/delete intent of a request
type AccessType string

const (
	AccessRead   AccessType = "read"
	AccessWrite  AccessType = "write"
	AccessDelete AccessType = "delete"
)

// String returns the string representation of the access type
func (a AccessType) String() string {
	return string(a)
}

// IsValid reports whether a is a known access type
func (a AccessType) IsValid() bool {
	switch a {
	case AccessRead, AccessWrite, AccessDelete:
		return true
	}
	return false
}

// IsMutating reports whether the access changes data
func (a AccessType) IsMutating() bool {
	return a == AccessWrite || a == AccessDelete
}

// SensitivityLevel orders how freely a field may be shared:
// public < internal < confidential < restricted.
type SensitivityLevel string

const (
	SensitivityPublic       SensitivityLevel = "public"
	SensitivityInternal     SensitivityLevel = "internal"
	SensitivityConfidential SensitivityLevel = "confidential"
	SensitivityRestricted   SensitivityLevel = "restricted"
)

// AllSensitivityLevels lists the tiers from least to most sensitive
var AllSensitivityLevels = []SensitivityLevel{
	SensitivityPublic,
	SensitivityInternal,
	SensitivityConfidential,
	SensitivityRestricted,
}

// ParseSensitivityLevel parses a tier name. "operational" is accepted as a
// legacy alias of internal.
func ParseSensitivityLevel(s string) (SensitivityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return SensitivityPublic, nil
	case "internal", "operational":
		return SensitivityInternal, nil
	case "confidential":
		return SensitivityConfidential, nil
	case "restricted":
		return SensitivityRestricted, nil
	}
	return "", fmt.Errorf("unknown sensitivity level: %q", s)
}

// String returns the string representation of the level
func (l SensitivityLevel) String() string {
	return string(l)
}

// Rank returns the ordinal of the level; unknown levels rank as -1
func (l SensitivityLevel) Rank() int {
	switch l {
	case SensitivityPublic:
		return 0
	case SensitivityInternal:
		return 1
	case SensitivityConfidential:
		return 2
	case SensitivityRestricted:
		return 3
	}
	return -1
}

// IsValid reports whether l is a known level
func (l SensitivityLevel) IsValid() bool {
	return l.Rank() >= 0
}

// AtMost reports whether l is no more sensitive than max
func (l SensitivityLevel) AtMost(max SensitivityLevel) bool {
	return l.Rank() <= max.Rank()
}

// IsSensitive reports whether l is confidential or restricted
func (l SensitivityLevel) IsSensitive() bool {
	return l == SensitivityConfidential || l == SensitivityRestricted
}

// AccessResult is the caller-facing result of an access check
type AccessResult string

const (
	ResultGranted               AccessResult = "granted"
	ResultDenied                AccessResult = "denied"
	ResultGrantedWithConditions AccessResult = "granted_with_conditions"
	ResultPendingApproval       AccessResult = "pending_approval"
	ResultPartial               AccessResult = "partial"
)

// String returns the string representation of the result
func (r AccessResult) String() string {
	return string(r)
}

// DecisionType is the evaluator's verdict
type DecisionType string

const (
	DecisionAllow           DecisionType = "allow"
	DecisionDeny            DecisionType = "deny"
	DecisionConditional     DecisionType = "conditional"
	DecisionRequireApproval DecisionType = "require_approval"
)

// String returns the string representation of the decision type
func (d DecisionType) String() string {
	return string(d)
}

// Result maps the decision type to the caller-facing access result
func (d DecisionType) Result() AccessResult {
	switch d {
	case DecisionAllow:
		return ResultGranted
	case DecisionConditional:
		return ResultGrantedWithConditions
	case DecisionRequireApproval:
		return ResultPendingApproval
	}
	return ResultDenied
}

// FilteringStrategy is the redaction method applied to a granted payload
type FilteringStrategy string

const (
	FilteringNone            FilteringStrategy = "none"
	FilteringFieldLevel      FilteringStrategy = "field_level"
	FilteringEntityLevel     FilteringStrategy = "entity_level"
	FilteringAggregationOnly FilteringStrategy = "aggregation_only"
)

// String returns the string representation of the strategy
func (f FilteringStrategy) String() string {
	return string(f)
}

// Role is a requester's role inside their own company
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RelationshipType names how two companies are linked
type RelationshipType string

const (
	RelationshipStrategicPartner    RelationshipType = "strategic_partner"
	RelationshipPreferredSupplier   RelationshipType = "preferred_supplier"
	RelationshipRegularSupplier     RelationshipType = "regular_supplier"
	RelationshipOccasionalSupplier  RelationshipType = "occasional_supplier"
	RelationshipSameCompany         RelationshipType = "same_company"
	RelationshipTransactionHistory  RelationshipType = "transaction_history"
	RelationshipIndirectSupplyChain RelationshipType = "indirect_supply_chain"
)

// String returns the string representation of the relationship type
func (r RelationshipType) String() string {
	return string(r)
}
