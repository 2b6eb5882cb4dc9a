package access_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

func TestDecisionConstructors(t *testing.T) {
	tests := []struct {
		name          string
		decision      *access.AccessDecision
		wantType      access.DecisionType
		wantResult    access.AccessResult
		wantGranted   bool
		wantFiltering bool
	}{
		{
			name:        "allow",
			decision:    access.Allow(access.FactorSameCompany),
			wantType:    access.DecisionAllow,
			wantResult:  access.ResultGranted,
			wantGranted: true,
		},
		{
			name:       "deny",
			decision:   access.Deny(access.ReasonNoRelationship, access.FactorNoRelationship),
			wantType:   access.DecisionDeny,
			wantResult: access.ResultDenied,
		},
		{
			name:          "conditional field level",
			decision:      access.Conditional(access.FilteringFieldLevel, []string{access.ConditionSensitiveFieldsFiltered}),
			wantType:      access.DecisionConditional,
			wantResult:    access.ResultGrantedWithConditions,
			wantGranted:   true,
			wantFiltering: true,
		},
		{
			name:        "conditional without strategy degrades to allow",
			decision:    access.Conditional(access.FilteringNone, nil),
			wantType:    access.DecisionAllow,
			wantResult:  access.ResultGranted,
			wantGranted: true,
		},
		{
			name:       "require approval",
			decision:   access.RequireApproval(access.ReasonApprovalRequired, access.FactorHighRisk),
			wantType:   access.DecisionRequireApproval,
			wantResult: access.ResultPendingApproval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.decision.Type)
			assert.Equal(t, tt.wantResult, tt.decision.Result)
			assert.Equal(t, tt.decision.Type.Result(), tt.decision.Result)
			assert.Equal(t, tt.wantGranted, tt.decision.IsGranted())
			assert.Equal(t, tt.wantFiltering, tt.decision.RequiresFiltering())
		})
	}
}

func TestDecision_WithPermission(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	p := &access.DataAccessPermission{
		ID:         uuid.New(),
		ExpiresAt:  &exp,
		Conditions: []string{"no resale"},
	}

	d := access.Allow(access.FactorExistingPermission).WithPermission(p)
	assert.Equal(t, p.ID, *d.PermissionID)
	assert.Equal(t, exp, *d.ExpiresAt)
	assert.Equal(t, []string{"no resale"}, d.Conditions)

	assert.Nil(t, access.Allow().WithPermission(nil).PermissionID)
}

func TestPermissionContext_IsTrustedRelationship(t *testing.T) {
	tests := []struct {
		name string
		ctx  access.PermissionContext
		want bool
	}{
		{"strong clean", access.PermissionContext{RelationshipExists: true, RelationshipStrength: 0.9}, true},
		{"at threshold", access.PermissionContext{RelationshipExists: true, RelationshipStrength: 0.7}, false},
		{"suspicious", access.PermissionContext{RelationshipExists: true, RelationshipStrength: 0.9, SuspiciousActivity: true}, false},
		{"no relationship", access.PermissionContext{RelationshipStrength: 0.9}, false},
		{"custom threshold", access.PermissionContext{RelationshipExists: true, RelationshipStrength: 0.6, TrustThreshold: 0.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.IsTrustedRelationship())
		})
	}
}

func TestAuditEventForDecision(t *testing.T) {
	assert.Equal(t, access.AuditAccessGranted, access.AuditEventForDecision(access.DecisionAllow))
	assert.Equal(t, access.AuditAccessConditional, access.AuditEventForDecision(access.DecisionConditional))
	assert.Equal(t, access.AuditAccessPendingApproval, access.AuditEventForDecision(access.DecisionRequireApproval))
	assert.Equal(t, access.AuditAccessDenied, access.AuditEventForDecision(access.DecisionDeny))
}
