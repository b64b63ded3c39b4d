package redis

import (
	"context"
	"testing"
	"time"

	"tollway/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedTransaction(eventID string) *domain.Transaction {
	auth := "AUTH-00FF00FF"
	return &domain.Transaction{
		ID:             uuid.New(),
		EventID:        eventID,
		Plate:          "P-123ABC",
		TollPointID:    domain.TollPointZoneB,
		EventTimestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		ProcessedAt:    time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC),
		Amount:         decimal.RequireFromString("30.00"),
		Scenario:       domain.ScenarioRegisteredDirect,
		Outcome:        domain.PaymentOutcome{Success: true, AuthorizationCode: &auth},
	}
}

func TestTransactionCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewTransactionCache(client)
	ctx := context.Background()

	// miss
	got, err := cache.Get(ctx, "evt-100")
	assert.NoError(t, err)
	assert.Nil(t, got)

	txn := cachedTransaction("evt-100")
	require.NoError(t, cache.Set(ctx, txn, 24*time.Hour))

	got, err = cache.Get(ctx, "evt-100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, txn.ID, got.ID)
	assert.True(t, txn.Amount.Equal(got.Amount))
	assert.Equal(t, txn.Scenario, got.Scenario)
	assert.Equal(t, *txn.Outcome.AuthorizationCode, *got.Outcome.AuthorizationCode)
	assert.True(t, s.Exists("txn:evt-100"))
}

func TestTransactionCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewTransactionCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, cachedTransaction("evt-200"), time.Second))

	s.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, "evt-200")
	assert.NoError(t, err)
	assert.Nil(t, got, "expired key should return nil")
}

func TestTransactionCache_CorruptEntry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewTransactionCache(client)

	require.NoError(t, s.Set("txn:evt-300", "not-json"))

	_, err := cache.Get(context.Background(), "evt-300")
	assert.ErrorContains(t, err, "decode cached transaction")
}
