package access

// DefaultTrustThreshold is the strength above which a relationship counts as
// trusted when no policy value is supplied.
const DefaultTrustThreshold = 0.7

// PermissionContext is computed per evaluation and discarded afterwards
type PermissionContext struct {
	RelationshipExists   bool
	RelationshipType     RelationshipType
	RelationshipStrength float64
	RequesterRole        Role
	CompanyTier          string
	RiskScore            float64
	SuspiciousActivity   bool
	TrustThreshold       float64
}

// IsTrustedRelationship reports a strong, clean relationship
func (c PermissionContext) IsTrustedRelationship() bool {
	threshold := c.TrustThreshold
	if threshold == 0 {
		threshold = DefaultTrustThreshold
	}
	return c.RelationshipExists && c.RelationshipStrength > threshold && !c.SuspiciousActivity
}

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
