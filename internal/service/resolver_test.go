package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports/mocks"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var resolverNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type resolverTestDeps struct {
	resolver *IdentityResolverImpl
	accounts *mocks.MockAccountRepository
	tags     *mocks.MockTagRepository
}

func setupResolver(t *testing.T, invoiceUnknownPlates bool) *resolverTestDeps {
	ctrl := gomock.NewController(t)
	d := &resolverTestDeps{
		accounts: mocks.NewMockAccountRepository(ctrl),
		tags:     mocks.NewMockTagRepository(ctrl),
	}
	d.resolver = NewIdentityResolver(d.accounts, d.tags, invoiceUnknownPlates, zerolog.Nop())
	d.resolver.now = func() time.Time { return resolverNow }
	return d
}

func strPtr(s string) *string { return &s }

func newEvent(plate, tagID string) domain.TollEvent {
	ev := domain.TollEvent{
		EventID:     "evt-001",
		TollPointID: "ZONE_A",
		Timestamp:   resolverNow.Add(-time.Minute).Format(time.RFC3339),
	}
	if plate != "" {
		ev.Plate = strPtr(plate)
	}
	if tagID != "" {
		ev.TagID = strPtr(tagID)
	}
	return ev
}

func registeredAccount(plate string, balance string) *domain.Account {
	return &domain.Account{
		Plate:          plate,
		Classification: domain.ClassificationRegistered,
		Balance:        decimal.RequireFromString(balance),
		Email:          strPtr("driver@example.com"),
	}
}

func activeTag(tagID, plate string) *domain.Tag {
	return &domain.Tag{TagID: tagID, Plate: strPtr(plate), Status: domain.TagStatusActive}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

// ==================== Validation ====================

func TestResolver_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ev *domain.TollEvent)
		code   string
	}{
		{"missing identity", func(ev *domain.TollEvent) { ev.Plate = nil; ev.TagID = nil }, apperror.CodeMissingIdentity},
		{"blank identity", func(ev *domain.TollEvent) { ev.Plate = strPtr("  "); ev.TagID = strPtr("") }, apperror.CodeMissingIdentity},
		{"unknown toll point", func(ev *domain.TollEvent) { ev.TollPointID = "ZONE_X" }, apperror.CodeUnknownTollPoint},
		{"unparseable timestamp", func(ev *domain.TollEvent) { ev.Timestamp = "yesterday" }, apperror.CodeInvalidTimestamp},
		{"timestamp without offset", func(ev *domain.TollEvent) { ev.Timestamp = "2026-03-10T11:00:00" }, apperror.CodeInvalidTimestamp},
		{"future timestamp", func(ev *domain.TollEvent) { ev.Timestamp = resolverNow.Add(time.Second).Format(time.RFC3339) }, apperror.CodeFutureEvent},
		{"stale timestamp", func(ev *domain.TollEvent) { ev.Timestamp = resolverNow.Add(-25 * time.Hour).Format(time.RFC3339) }, apperror.CodeStaleEvent},
		{"malformed plate", func(ev *domain.TollEvent) { ev.Plate = strPtr("P123ABC") }, apperror.CodeMalformedPlate},
		{"plate suffix too long", func(ev *domain.TollEvent) { ev.Plate = strPtr("P-1234567") }, apperror.CodeMalformedPlate},
		{"malformed tag", func(ev *domain.TollEvent) { ev.Plate = nil; ev.TagID = strPtr("TAG-0001") }, apperror.CodeMalformedTagID},
		{"lower-case tag", func(ev *domain.TollEvent) { ev.Plate = nil; ev.TagID = strPtr("tag-001") }, apperror.CodeMalformedTagID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupResolver(t, true)
			ev := newEvent("P-123ABC", "")
			tt.mutate(&ev)

			_, err := d.resolver.Resolve(context.Background(), ev)
			assertCode(t, err, tt.code)
			assert.False(t, apperror.IsTransient(err))
		})
	}
}

func TestResolver_Validation_OrderIsFixed(t *testing.T) {
	d := setupResolver(t, true)
	// Every field is wrong: the toll point check comes first after identity.
	ev := domain.TollEvent{EventID: "evt", Plate: strPtr("bad"), TollPointID: "nope", Timestamp: "bad"}

	_, err := d.resolver.Resolve(context.Background(), ev)
	assertCode(t, err, apperror.CodeUnknownTollPoint)
}

func TestResolver_Validation_BoundaryAge(t *testing.T) {
	d := setupResolver(t, true)
	ev := newEvent("P-123ABC", "")
	ev.Timestamp = resolverNow.Add(-24 * time.Hour).Format(time.RFC3339)

	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-123ABC").Return(registeredAccount("P-123ABC", "10.00"), nil)

	_, err := d.resolver.Resolve(context.Background(), ev)
	assert.NoError(t, err, "exactly 24h old is still accepted")
}

// ==================== Plate only ====================

func TestResolver_PlateOnly_Registered(t *testing.T) {
	d := setupResolver(t, true)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-123ABC").Return(registeredAccount("P-123ABC", "100.00"), nil)

	res, err := d.resolver.Resolve(context.Background(), newEvent(" p-123abc ", ""))
	require.NoError(t, err)

	assert.Equal(t, "P-123ABC", res.Resolved.Plate)
	assert.Equal(t, domain.ClassificationRegistered, res.Resolved.Classification)
	assert.False(t, res.Resolved.HasActiveTag)
	assert.Equal(t, domain.IdentityPlateOnly, res.Identity.Kind())
	assert.Equal(t, domain.TollPointZoneA, res.TollPoint)
	assert.Equal(t, resolverNow.Add(-time.Minute), res.Timestamp)
}

func TestResolver_PlateOnly_UnknownAccount_ImplicitUnregistered(t *testing.T) {
	d := setupResolver(t, true)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "X-999ZZZ").Return(nil, nil)

	res, err := d.resolver.Resolve(context.Background(), newEvent("X-999ZZZ", ""))
	require.NoError(t, err)

	assert.True(t, res.Resolved.Implicit)
	assert.Equal(t, domain.ClassificationUnregistered, res.Resolved.Classification)
	assert.True(t, res.Resolved.Account.Balance.IsZero())
	assert.Nil(t, res.Resolved.Account.Email)
}

func TestResolver_PlateOnly_UnknownAccount_Rejected(t *testing.T) {
	d := setupResolver(t, false)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "X-999ZZZ").Return(nil, nil)

	_, err := d.resolver.Resolve(context.Background(), newEvent("X-999ZZZ", ""))
	assertCode(t, err, apperror.CodeUnknownAccount)
}

func TestResolver_PlateOnly_StoreError(t *testing.T) {
	d := setupResolver(t, true)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-123ABC").Return(nil, errors.New("connection reset"))

	_, err := d.resolver.Resolve(context.Background(), newEvent("P-123ABC", ""))
	assertCode(t, err, apperror.CodePersistence)
	assert.True(t, apperror.IsTransient(err))
}

// ==================== Tag only ====================

func TestResolver_TagOnly_Active(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-002").Return(activeTag("TAG-002", "P-456DEF"), nil)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-456DEF").Return(registeredAccount("P-456DEF", "50.00"), nil)

	res, err := d.resolver.Resolve(context.Background(), newEvent("", "TAG-002"))
	require.NoError(t, err)

	assert.Equal(t, "P-456DEF", res.Resolved.Plate)
	assert.True(t, res.Resolved.HasActiveTag)
	assert.Equal(t, domain.ScenarioTagExpress, res.Resolved.Scenario())
	require.NotNil(t, res.Resolved.TagID)
	assert.Equal(t, "TAG-002", *res.Resolved.TagID)
}

func TestResolver_TagOnly_Unresolved(t *testing.T) {
	tests := []struct {
		name    string
		tag     *domain.Tag
		account bool
	}{
		{"tag not found", nil, false},
		{"tag inactive", &domain.Tag{TagID: "TAG-003", Plate: strPtr("P-789GHI"), Status: domain.TagStatusInactive}, false},
		{"tag unlinked", &domain.Tag{TagID: "TAG-003", Status: domain.TagStatusActive}, false},
		{"linked plate has no account", activeTag("TAG-003", "P-789GHI"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupResolver(t, true)
			d.tags.EXPECT().GetByID(gomock.Any(), "TAG-003").Return(tt.tag, nil)
			if tt.account {
				d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-789GHI").Return(nil, nil)
			}

			_, err := d.resolver.Resolve(context.Background(), newEvent("", "TAG-003"))
			assertCode(t, err, apperror.CodeTagUnresolved)
		})
	}
}

// ==================== Plate and tag ====================

func TestResolver_PlateTag_Match(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-001").Return(activeTag("TAG-001", "P-123ABC"), nil)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-123ABC").Return(registeredAccount("P-123ABC", "100.00"), nil)

	res, err := d.resolver.Resolve(context.Background(), newEvent("P-123ABC", "TAG-001"))
	require.NoError(t, err)

	assert.Equal(t, domain.IdentityPlateTag, res.Resolved.Source)
	assert.True(t, res.Resolved.HasActiveTag)
}

func TestResolver_PlateTag_Mismatch(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-001").Return(activeTag("TAG-001", "P-123ABC"), nil)

	_, err := d.resolver.Resolve(context.Background(), newEvent("Y-000AAA", "TAG-001"))
	assertCode(t, err, apperror.CodeTagPlateMismatch)
}

func TestResolver_PlateTag_InactiveTag(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-001").Return(&domain.Tag{TagID: "TAG-001", Plate: strPtr("P-123ABC"), Status: domain.TagStatusInactive}, nil)

	_, err := d.resolver.Resolve(context.Background(), newEvent("P-123ABC", "TAG-001"))
	assertCode(t, err, apperror.CodeTagUnresolved)
}

func TestResolver_PlateTag_NoAccountNeverImplicit(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-001").Return(activeTag("TAG-001", "P-123ABC"), nil)
	d.accounts.EXPECT().GetByPlate(gomock.Any(), "P-123ABC").Return(nil, nil)

	_, err := d.resolver.Resolve(context.Background(), newEvent("P-123ABC", "TAG-001"))
	assertCode(t, err, apperror.CodeUnknownAccount)
}

func TestResolver_TagStoreError(t *testing.T) {
	d := setupResolver(t, true)
	d.tags.EXPECT().GetByID(gomock.Any(), "TAG-001").Return(nil, errors.New("timeout"))

	_, err := d.resolver.Resolve(context.Background(), newEvent("", "TAG-001"))
	assert.True(t, apperror.IsTransient(err))
}
