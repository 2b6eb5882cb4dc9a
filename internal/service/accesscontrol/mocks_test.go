package accesscontrol

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// MockPermissionRepository mock for tests
type MockPermissionRepository struct {
	mock.Mock
}

func (m *MockPermissionRepository) Create(ctx context.Context, p *access.DataAccessPermission) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPermissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*access.DataAccessPermission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.DataAccessPermission), args.Error(1)
}

func (m *MockPermissionRepository) FindActive(ctx context.Context, granteeCompanyID, grantorCompanyID uuid.UUID, category access.DataCategory, accessType access.AccessType, now time.Time) ([]*access.DataAccessPermission, error) {
	args := m.Called(ctx, granteeCompanyID, grantorCompanyID, category, accessType, now)
	return permissions(args)
}

func (m *MockPermissionRepository) Update(ctx context.Context, p *access.DataAccessPermission) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPermissionRepository) ListActiveByGranteeUser(ctx context.Context, userID uuid.UUID) ([]*access.DataAccessPermission, error) {
	args := m.Called(ctx, userID)
	return permissions(args)
}

func (m *MockPermissionRepository) ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]*access.DataAccessPermission, error) {
	args := m.Called(ctx, companyID)
	return permissions(args)
}

func (m *MockPermissionRepository) ListExpired(ctx context.Context, now time.Time) ([]*access.DataAccessPermission, error) {
	args := m.Called(ctx, now)
	return permissions(args)
}

func permissions(args mock.Arguments) ([]*access.DataAccessPermission, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*access.DataAccessPermission), args.Error(1)
}

// MockRelationshipRepository mock for tests
type MockRelationshipRepository struct {
	mock.Mock
}

func (m *MockRelationshipRepository) FindActiveRelationship(ctx context.Context, a, b uuid.UUID) (*access.BusinessRelationship, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.BusinessRelationship), args.Error(1)
}

// MockTransactionRepository mock for tests
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) TransactionStats(ctx context.Context, sellerID, buyerID uuid.UUID) (access.TransactionStats, error) {
	args := m.Called(ctx, sellerID, buyerID)
	return args.Get(0).(access.TransactionStats), args.Error(1)
}

func (m *MockTransactionRepository) HasCommonCounterparty(ctx context.Context, a, b uuid.UUID) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

// MockDirectoryRepository mock for tests
type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) GetUserRole(ctx context.Context, userID, companyID uuid.UUID) (access.Role, error) {
	args := m.Called(ctx, userID, companyID)
	return args.Get(0).(access.Role), args.Error(1)
}

func (m *MockDirectoryRepository) GetCompanyTier(ctx context.Context, companyID uuid.UUID) (string, error) {
	args := m.Called(ctx, companyID)
	return args.String(0), args.Error(1)
}

// MockAuditRepository mock for tests
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *access.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) CountRecentDenials(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditRepository) ListForCompany(ctx context.Context, companyID uuid.UUID, since time.Time) ([]*access.AuditEntry, error) {
	args := m.Called(ctx, companyID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*access.AuditEntry), args.Error(1)
}

// MockRelationshipCache mock for tests
type MockRelationshipCache struct {
	mock.Mock
}

func (m *MockRelationshipCache) Get(ctx context.Context, a, b uuid.UUID) (*access.RelationshipResult, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.RelationshipResult), args.Error(1)
}

func (m *MockRelationshipCache) Set(ctx context.Context, a, b uuid.UUID, result access.RelationshipResult) error {
	args := m.Called(ctx, a, b, result)
	return args.Error(0)
}

// MockMetricsRecorder mock for tests
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordDecision(ctx context.Context, decision access.DecisionType, crossCompany bool, latency time.Duration) {
	m.Called(ctx, decision, crossCompany, latency)
}

func (m *MockMetricsRecorder) RecordCheckError(ctx context.Context, outcome string) {
	m.Called(ctx, outcome)
}

func (m *MockMetricsRecorder) RecordFiltering(ctx context.Context, strategy access.FilteringStrategy, filteredFields int) {
	m.Called(ctx, strategy, filteredFields)
}

func (m *MockMetricsRecorder) RecordPermissionChange(ctx context.Context, event access.AuditEventType, count int) {
	m.Called(ctx, event, count)
}

func (m *MockMetricsRecorder) RecordAuditFailure(ctx context.Context, event access.AuditEventType) {
	m.Called(ctx, event)
}

func (m *MockMetricsRecorder) RecordRelationshipCheck(ctx context.Context, source string, cached bool) {
	m.Called(ctx, source, cached)
}
