package accesscontrol

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/classification"
	domainerrors "github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

type serviceFixture struct {
	store   *memoryStore
	clock   *access.MockClock
	service *Service

	buyer    uuid.UUID
	supplier uuid.UUID
	user     uuid.UUID
	admin    uuid.UUID
}

func newServiceFixture(t *testing.T, opts ...Option) *serviceFixture {
	f := &serviceFixture{
		store:    newMemoryStore(),
		clock:    &access.MockClock{CurrentTime: testNow},
		buyer:    uuid.New(),
		supplier: uuid.New(),
		user:     uuid.New(),
		admin:    uuid.New(),
	}
	f.store.roles[f.user] = access.RoleMember
	f.store.roles[f.admin] = access.RoleAdmin

	opts = append([]Option{WithClock(f.clock)}, opts...)
	f.service = NewService(zaptest.NewLogger(t), f.store.stores(), classification.NewFieldClassifier(nil), access.DefaultPolicy(), opts...)
	return f
}

func (f *serviceFixture) partnership(relType access.RelationshipType) {
	f.store.relationships = append(f.store.relationships, access.BusinessRelationship{
		ID:            uuid.New(),
		CompanyAID:    f.buyer,
		CompanyBID:    f.supplier,
		Type:          relType,
		EstablishedAt: testNow,
		IsActive:      true,
	})
}

func (f *serviceFixture) crossCompanyInput(level access.SensitivityLevel) CheckAccessInput {
	supplier := f.supplier
	return CheckAccessInput{
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		DataCategory:        access.CategoryOrderData,
		AccessType:          access.AccessRead,
		EntityType:          "purchase_order",
		SensitivityLevel:    &level,
	}
}

func TestService_ScenarioA_SameCompanyPublicPayload(t *testing.T) {
	f := newServiceFixture(t)
	payload := map[string]any{"id": "po-1", "name": "Spring seed order", "status": "open"}

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             payload,
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)

	assert.Equal(t, access.ResultGranted, res.Check.Result)
	assert.Equal(t, domainerrors.OutcomeSuccess, res.Check.Outcome)
	assert.Equal(t, payload, res.Data)
	assert.False(t, res.FilteringApplied)
	assert.Empty(t, res.FilteredFields)

	accessed := f.store.events(access.AuditDataAccessed)
	require.Len(t, accessed, 1)
	assert.Equal(t, 1, accessed[0].PayloadSize)
	assert.False(t, accessed[0].FilteringApplied)
	assert.Len(t, f.store.events(access.AuditAccessGranted), 1)
}

func TestService_ScenarioE_EmailMaskedFromContent(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             map[string]any{"id": "po-1", "owner": "john@example.com"},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)

	assert.Equal(t, access.ResultGrantedWithConditions, res.Check.Result)
	assert.Equal(t, access.FilteringFieldLevel, res.Check.Decision.FilteringStrategy)
	assert.Equal(t, map[string]any{"id": "po-1", "owner": "jo***@example.com"}, res.Data)
	assert.True(t, res.FilteringApplied)
	require.Len(t, res.Contexts, 1)
	assert.Equal(t, access.SensitivityConfidential, res.Contexts[0].FieldSensitivity["owner"])
}

func TestService_FilterPrivilegedSameCompanyUnfiltered(t *testing.T) {
	f := newServiceFixture(t)
	payload := map[string]any{"id": "po-1", "owner": "john@example.com", "unit_price": 12.5}

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             payload,
		RequestingUserID:    f.admin,
		RequestingCompanyID: f.buyer,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)
	assert.Equal(t, access.ResultGranted, res.Check.Result)
	assert.Equal(t, payload, res.Data)
}

func TestService_FilterCrossCompanyDropsSensitiveFields(t *testing.T) {
	f := newServiceFixture(t)
	f.partnership(access.RelationshipStrategicPartner)
	supplier := f.supplier
	payload := []map[string]any{
		{"id": "po-1", "status": "open", "unit_price": 12.5, "quantity": 10},
		{"id": "po-2", "status": "shipped", "unit_price": 9.75, "quantity": 4},
	}

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             payload,
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)

	assert.Equal(t, access.DecisionConditional, res.Check.Decision.Type)
	assert.Equal(t, []map[string]any{
		{"id": "po-1", "status": "open", "quantity": 10},
		{"id": "po-2", "status": "shipped", "quantity": 4},
	}, res.Data)
	assert.Equal(t, []string{"unit_price"}, res.FilteredFields)
	assert.Equal(t, 2, f.store.events(access.AuditDataAccessed)[0].PayloadSize)
	assert.Equal(t, "open", payload[0]["status"])
	assert.Contains(t, payload[0], "unit_price")
}

func TestService_FilterWeakPartnerRedactsInsteadOfDenying(t *testing.T) {
	f := newServiceFixture(t)
	f.partnership(access.RelationshipOccasionalSupplier)
	supplier := f.supplier

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             map[string]any{"id": "po-1", "status": "open", "unit_price": 12.5, "quantity": 10},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)

	require.True(t, res.Check.Granted(), "denied: %s", res.Check.DenialReason)
	assert.Equal(t, access.DecisionConditional, res.Check.Decision.Type)
	assert.Equal(t, access.FilteringFieldLevel, res.Check.Decision.FilteringStrategy)
	assert.Contains(t, res.Check.Decision.Factors, access.FactorSensitivePayload)
	assert.NotContains(t, res.Check.Decision.Factors, access.FactorSensitiveData)
	assert.Equal(t, map[string]any{"id": "po-1", "status": "open", "quantity": 10}, res.Data)
	assert.Equal(t, []string{"unit_price"}, res.FilteredFields)
}

func TestService_FilterDeclaredSensitivityStillGates(t *testing.T) {
	f := newServiceFixture(t)
	f.partnership(access.RelationshipOccasionalSupplier)
	supplier := f.supplier
	level := access.SensitivityConfidential

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             map[string]any{"id": "po-1", "unit_price": 12.5},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
		SensitivityLevel:    &level,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Data)
	assert.Equal(t, access.ReasonInsufficientStrength, res.Check.DenialReason)
}

func TestService_GrantCoversFilterOfSensitivePayload(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	supplier := f.supplier
	scope := CheckAccessInput{
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		DataCategory:        access.CategoryOrderData,
		AccessType:          access.AccessRead,
		EntityType:          "purchase_order",
	}

	p, err := f.service.GrantPermission(ctx, GrantPermissionInput{Request: scope, GrantedBy: f.admin, DurationDays: 30})
	require.NoError(t, err)
	assert.Equal(t, access.SensitivityInternal, p.MaxSensitivity)

	payload := map[string]any{"id": "po-1", "status": "open", "unit_price": 12.5}
	res, err := f.service.FilterSensitiveData(ctx, FilterInput{
		Payload:             payload,
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)

	assert.Equal(t, access.DecisionAllow, res.Check.Decision.Type)
	require.NotNil(t, res.Check.Permission)
	assert.Equal(t, p.ID, res.Check.Permission.ID)
	assert.Equal(t, p.ID, *res.Check.Decision.PermissionID)
	assert.Equal(t, payload, res.Data)
}

func TestService_FilterDeniedReturnsNoData(t *testing.T) {
	f := newServiceFixture(t)
	supplier := f.supplier

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             map[string]any{"id": "po-1"},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		TargetCompanyID:     &supplier,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Data)
	assert.Equal(t, access.ResultDenied, res.Check.Result)
	assert.Equal(t, domainerrors.OutcomeDenied, res.Check.Outcome)
	assert.Equal(t, access.ReasonNoRelationship, res.Check.DenialReason)
	assert.Empty(t, f.store.events(access.AuditDataAccessed))
}

func TestService_FilterRejectsUnsupportedPayload(t *testing.T) {
	f := newServiceFixture(t)
	level := access.SensitivityConfidential

	res, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             []string{"not", "records"},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		EntityType:          "purchase_order",
		DataCategory:        access.CategoryOrderData,
		SensitivityLevel:    &level,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))
	assert.Nil(t, res.Data)
	assert.Equal(t, access.FilteringFieldLevel, res.Check.Decision.FilteringStrategy)
}

func TestService_GrantCheckRevoke(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	in := f.crossCompanyInput(access.SensitivityConfidential)

	before, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, access.ResultDenied, before.Result)

	p, err := f.service.GrantPermission(ctx, GrantPermissionInput{Request: in, GrantedBy: f.admin, DurationDays: 30})
	require.NoError(t, err)

	granted, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, access.ResultGranted, granted.Result)
	assert.Equal(t, access.DecisionAllow, granted.Decision.Type)
	require.NotNil(t, granted.Permission)
	assert.Equal(t, p.ID, granted.Permission.ID)
	assert.Equal(t, p.ID, *granted.Decision.PermissionID)

	ok, err := f.service.RevokePermission(ctx, p.ID, f.admin, "no longer needed")
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, after.Permission)
	assert.Equal(t, access.ResultDenied, after.Result)

	again, err := f.service.RevokePermission(ctx, p.ID, f.admin, "")
	require.NoError(t, err)
	assert.False(t, again)

	assert.Len(t, f.store.events(access.AuditPermissionGranted), 1)
	assert.Len(t, f.store.events(access.AuditPermissionRevoked), 1)
	assert.Len(t, f.store.events(access.AuditAccessDenied), 2)
}

func TestService_ExtendAndCleanup(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	in := f.crossCompanyInput(access.SensitivityInternal)

	short, err := f.service.GrantPermission(ctx, GrantPermissionInput{Request: in, GrantedBy: f.admin, DurationDays: 1})
	require.NoError(t, err)
	long, err := f.service.GrantPermission(ctx, GrantPermissionInput{Request: in, GrantedBy: f.admin, DurationDays: 1})
	require.NoError(t, err)

	ok, err := f.service.ExtendPermission(ctx, long.ID, 10, f.admin)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(48 * time.Hour)
	n, err := f.service.CleanupExpiredPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired := f.store.events(access.AuditPermissionExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, short.ID, *expired[0].PermissionID)
	assert.Len(t, f.store.events(access.AuditPermissionExtended), 1)

	res, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, res.Permission)
	assert.Equal(t, long.ID, res.Permission.ID)

	missing, err := f.service.ExtendPermission(ctx, uuid.New(), 5, f.admin)
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestService_BulkRevocation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	in := f.crossCompanyInput(access.SensitivityInternal)
	for i := 0; i < 3; i++ {
		_, err := f.service.GrantPermission(ctx, GrantPermissionInput{Request: in, GrantedBy: f.admin})
		require.NoError(t, err)
	}

	summary, err := f.service.GetPermissionSummary(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalActive)

	n, err := f.service.RevokeUserPermissions(ctx, f.user, f.admin, "left the company")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.service.RevokeAllForCompany(ctx, f.buyer, f.admin, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.store.events(access.AuditPermissionRevoked), 3)
}

type brokenDirectory struct {
	*memoryStore
	panics bool
}

func (d brokenDirectory) GetUserRole(context.Context, uuid.UUID, uuid.UUID) (access.Role, error) {
	if d.panics {
		panic("nil map in role lookup")
	}
	return "", assert.AnError
}

func TestService_FailsClosed(t *testing.T) {
	for _, panics := range []bool{false, true} {
		name := "store error"
		if panics {
			name = "panic"
		}
		t.Run(name, func(t *testing.T) {
			store := newMemoryStore()
			stores := store.stores()
			stores.Directory = brokenDirectory{memoryStore: store, panics: panics}
			metrics := new(MockMetricsRecorder)
			metrics.On("RecordCheckError", mock.Anything, domainerrors.OutcomeInternalError.String()).Return()
			svc := NewService(zaptest.NewLogger(t), stores, classification.NewFieldClassifier(nil), access.DefaultPolicy(),
				WithClock(&access.MockClock{CurrentTime: testNow}), WithMetrics(metrics))

			res, err := svc.CheckAccessPermission(context.Background(), CheckAccessInput{
				RequestingUserID:    uuid.New(),
				RequestingCompanyID: uuid.New(),
				DataCategory:        access.CategoryCompanyProfile,
				AccessType:          access.AccessRead,
				EntityType:          "company",
			})
			require.NoError(t, err)
			assert.Equal(t, domainerrors.OutcomeInternalError, res.Outcome)
			assert.Equal(t, access.ResultDenied, res.Result)
			assert.Equal(t, access.ReasonAccessCheckFailed, res.DenialReason)
			assert.False(t, res.Granted())

			errs := store.events(access.AuditAccessError)
			require.Len(t, errs, 1)
			assert.Equal(t, access.ResultDenied, errs[0].Result)
			metrics.AssertExpectations(t)
		})
	}
}

func TestService_RejectsInvalidInput(t *testing.T) {
	f := newServiceFixture(t)
	valid := f.crossCompanyInput(access.SensitivityInternal)

	tests := []struct {
		name   string
		mutate func(*CheckAccessInput)
		code   string
	}{
		{"missing user", func(in *CheckAccessInput) { in.RequestingUserID = uuid.Nil }, "INVALID_INPUT"},
		{"missing entity type", func(in *CheckAccessInput) { in.EntityType = "" }, "INVALID_INPUT"},
		{"malformed address", func(in *CheckAccessInput) { in.IPAddress = "not-an-ip" }, "INVALID_INPUT"},
		{"unknown category", func(in *CheckAccessInput) { in.DataCategory = "weather" }, "INVALID_CATEGORY"},
		{"unknown access type", func(in *CheckAccessInput) { in.AccessType = "share" }, "INVALID_ACCESS_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			res, err := f.service.CheckAccessPermission(context.Background(), in)
			require.Error(t, err)
			var appErr *domainerrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, domainerrors.OutcomeInvalid, res.Outcome)
			assert.Equal(t, access.ResultDenied, res.Result)
		})
	}

	_, err := f.service.RevokePermission(context.Background(), uuid.Nil, f.admin, "")
	assert.True(t, domainerrors.IsValidation(err))
	_, err = f.service.RevokeUserPermissions(context.Background(), uuid.Nil, f.admin, "")
	assert.True(t, domainerrors.IsValidation(err))
	_, err = f.service.RevokeUserPermissions(context.Background(), f.user, uuid.Nil, "")
	assert.True(t, domainerrors.IsValidation(err))
	_, err = f.service.RevokeAllForCompany(context.Background(), uuid.Nil, f.admin, "")
	assert.True(t, domainerrors.IsValidation(err))
	_, err = f.service.RevokeAllForCompany(context.Background(), f.buyer, uuid.Nil, "")
	assert.True(t, domainerrors.IsValidation(err))

	_, err = f.service.GrantPermission(context.Background(), GrantPermissionInput{Request: valid, GrantedBy: f.admin, DurationDays: -3})
	assert.True(t, domainerrors.IsValidation(err))
	assert.Empty(t, f.store.audit)
}

func TestService_GetAccessSummary(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.partnership(access.RelationshipRegularSupplier)
	other := uuid.New()

	// two cross-company grants and one denial to a stranger
	for _, level := range []access.SensitivityLevel{access.SensitivityPublic, access.SensitivityInternal} {
		_, err := f.service.CheckAccessPermission(ctx, f.crossCompanyInput(level))
		require.NoError(t, err)
	}
	denied := f.crossCompanyInput(access.SensitivityInternal)
	denied.TargetCompanyID = &other
	denied.RequestingUserID = f.admin
	_, err := f.service.CheckAccessPermission(ctx, denied)
	require.NoError(t, err)

	// same-company attempt
	_, err = f.service.CheckAccessPermission(ctx, CheckAccessInput{
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		DataCategory:        access.CategoryCompanyProfile,
		AccessType:          access.AccessRead,
		EntityType:          "company",
	})
	require.NoError(t, err)

	// outside the window
	f.store.audit = append(f.store.audit, &access.AuditEntry{
		ID:             uuid.New(),
		EventType:      access.AuditAccessDenied,
		ActorUserID:    uuid.New(),
		ActorCompanyID: f.buyer,
		Result:         access.ResultDenied,
		OccurredAt:     testNow.AddDate(0, 0, -45),
	})

	s, err := f.service.GetAccessSummary(ctx, f.buyer, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSummaryDays, s.PeriodDays)
	assert.Equal(t, 4, s.TotalAttempts)
	assert.Equal(t, 3, s.ByResult[access.ResultGranted])
	assert.Equal(t, 1, s.ByResult[access.ResultDenied])
	assert.Equal(t, 2, s.UniqueUsers)
	assert.Equal(t, 3, s.CrossCompanyCount)
	require.Len(t, s.RecentDenials, 1)
	assert.Equal(t, f.admin, s.RecentDenials[0].ActorUserID)
	assert.Equal(t, access.ReasonNoRelationship, s.RecentDenials[0].Reason)

	wide, err := f.service.GetAccessSummary(ctx, f.buyer, 90)
	require.NoError(t, err)
	assert.Equal(t, 5, wide.TotalAttempts)
	assert.Len(t, wide.RecentDenials, 2)

	empty, err := f.service.GetAccessSummary(ctx, other, 7)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalAttempts)
	assert.NotNil(t, empty.RecentDenials)
}

func TestService_GetRelationshipPermissions(t *testing.T) {
	f := newServiceFixture(t)
	f.partnership(access.RelationshipPreferredSupplier)

	caps, err := f.service.GetRelationshipPermissions(context.Background(), f.supplier, f.buyer)
	require.NoError(t, err)
	assert.True(t, caps.Relationship.Exists)
	assert.True(t, caps.CanAccessFinancialData)
	assert.True(t, caps.CanAccessStrategicData)
	assert.Equal(t, access.SensitivityConfidential, caps.MaxSensitivity)
}

func TestService_RecordsMetrics(t *testing.T) {
	metrics := new(MockMetricsRecorder)
	metrics.On("RecordDecision", mock.Anything, access.DecisionAllow, false, mock.Anything).Return()
	metrics.On("RecordFiltering", mock.Anything, access.FilteringNone, 0).Return()
	f := newServiceFixture(t, WithMetrics(metrics))

	_, err := f.service.FilterSensitiveData(context.Background(), FilterInput{
		Payload:             map[string]any{"id": "c-1", "name": "Green Acres"},
		RequestingUserID:    f.user,
		RequestingCompanyID: f.buyer,
		EntityType:          "company",
		DataCategory:        access.CategoryCompanyProfile,
	})
	require.NoError(t, err)
	metrics.AssertExpectations(t)
}

func TestService_AccessErrorsDoNotCountAsDenials(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.partnership(access.RelationshipPreferredSupplier)
	in := f.crossCompanyInput(access.SensitivityPublic)
	req, err := access.NewAccessRequest(in.params())
	require.NoError(t, err)

	auditLog := NewAccessLogger(zaptest.NewLogger(t), f.store, nil, f.clock)
	for i := 0; i < 12; i++ {
		auditLog.LogError(ctx, req, assert.AnError)
	}

	res, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	assert.NotContains(t, res.Decision.Factors, access.FactorSuspiciousActivity)
	assert.True(t, res.Granted())

	for i := 0; i < 10; i++ {
		e := access.NewAuditEntryFromRequest(access.AuditAccessDenied, req, testNow)
		e.Result = access.ResultDenied
		require.NoError(t, f.store.Append(ctx, e))
	}
	held, err := f.service.CheckAccessPermission(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, access.ResultPendingApproval, held.Result)
	assert.Equal(t, ReasonSuspiciousActivity, held.DenialReason)
}
