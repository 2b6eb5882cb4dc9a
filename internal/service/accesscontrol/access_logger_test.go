package accesscontrol

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

func captureEntries(repo *MockAuditRepository) *[]*access.AuditEntry {
	var entries []*access.AuditEntry
	repo.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		entries = append(entries, args.Get(1).(*access.AuditEntry))
	}).Return(nil)
	return &entries
}

func TestAccessLogger_LogAttempt(t *testing.T) {
	repo := new(MockAuditRepository)
	entries := captureEntries(repo)
	logger := NewAccessLogger(zaptest.NewLogger(t), repo, nil, &access.MockClock{CurrentTime: testNow})

	target := uuid.New()
	req := buildRequest(t, func(p *access.RequestParams) {
		crossCompanyTo(target, access.SensitivityInternal)(p)
		p.IPAddress = "10.0.0.8"
		p.SessionID = "sess-42"
	})
	d := access.Deny(access.ReasonNoRelationship, access.FactorCrossCompany, access.FactorNoRelationship)

	logger.LogAttempt(context.Background(), req, d)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, access.AuditAccessDenied, e.EventType)
	assert.Equal(t, access.ResultDenied, e.Result)
	assert.Equal(t, access.ReasonNoRelationship, e.Reason)
	assert.Equal(t, req.RequestingUserID, e.ActorUserID)
	assert.Equal(t, target, *e.TargetCompanyID)
	assert.Equal(t, "10.0.0.8", e.IPAddress)
	assert.Equal(t, "sess-42", e.SessionID)
	assert.Equal(t, testNow, e.OccurredAt)
	assert.ElementsMatch(t, []string{access.FactorCrossCompany, access.FactorNoRelationship}, e.Factors)
	assert.True(t, e.IsCrossCompany())
	assert.True(t, e.IsAttempt())
}

func TestAccessLogger_LogDataAccess(t *testing.T) {
	repo := new(MockAuditRepository)
	entries := captureEntries(repo)
	logger := NewAccessLogger(zaptest.NewLogger(t), repo, nil, &access.MockClock{CurrentTime: testNow})

	req := buildRequest(t, nil)
	d := access.Conditional(access.FilteringFieldLevel, nil, access.FactorSameCompany)

	logger.LogDataAccess(context.Background(), req, d, 3, []string{"unit_price"}, true)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, access.AuditDataAccessed, e.EventType)
	assert.Equal(t, access.ResultGrantedWithConditions, e.Result)
	assert.Equal(t, 3, e.PayloadSize)
	assert.True(t, e.FilteringApplied)
	assert.Equal(t, []string{"unit_price"}, e.FilteredFields)
	assert.False(t, e.IsAttempt())
}

func TestAccessLogger_LogPermissionEvent(t *testing.T) {
	repo := new(MockAuditRepository)
	entries := captureEntries(repo)
	logger := NewAccessLogger(zaptest.NewLogger(t), repo, nil, &access.MockClock{CurrentTime: testNow})
	p := activeGrant(t, nil)

	logger.LogPermissionEvent(context.Background(), access.AuditPermissionExpired, p, nil, access.ReasonExpired)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, access.AuditPermissionExpired, e.EventType)
	assert.Equal(t, uuid.Nil, e.ActorUserID)
	assert.Equal(t, p.GrantorCompanyID, e.ActorCompanyID)
	assert.Equal(t, p.GranteeCompanyID, *e.TargetCompanyID)
	assert.Equal(t, p.ID, *e.PermissionID)
	assert.Equal(t, access.ReasonExpired, e.Reason)
}

func TestAccessLogger_FailuresNeverPropagate(t *testing.T) {
	repo := new(MockAuditRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("audit table locked"))
	metrics := new(MockMetricsRecorder)
	metrics.On("RecordAuditFailure", mock.Anything, access.AuditAccessGranted).Return()
	logger := NewAccessLogger(zaptest.NewLogger(t), repo, metrics, &access.MockClock{CurrentTime: testNow})

	req := buildRequest(t, nil)
	for i := 0; i < 20; i++ {
		assert.NotPanics(t, func() {
			logger.LogAttempt(context.Background(), req, access.Allow(access.FactorSameCompany))
		})
	}

	assert.Equal(t, int64(20), logger.Failures())
	metrics.AssertNumberOfCalls(t, "RecordAuditFailure", 20)
}
