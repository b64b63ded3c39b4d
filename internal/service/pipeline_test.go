package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tollway/internal/adapter/storage/memory"
	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier collects intents in memory.
type recordingNotifier struct {
	mu      sync.Mutex
	intents []domain.NotificationIntent
}

func (n *recordingNotifier) Notify(_ context.Context, intent domain.NotificationIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.intents)
}

// flakyRecords fails the first CreateIfAbsent calls, as a store outage between
// the debit and the record would.
type flakyRecords struct {
	*memory.Store
	failures int
}

func (f *flakyRecords) CreateIfAbsent(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, bool, error) {
	if f.failures > 0 {
		f.failures--
		return nil, false, errors.New("connection reset by peer")
	}
	return f.Store.CreateIfAbsent(ctx, txn)
}

type pipeline struct {
	processor *TollProcessorImpl
	resolver  *IdentityResolverImpl
	store     *memory.Store
	notifier  *recordingNotifier
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	store := memory.NewStore()
	return newPipelineWithRecords(t, store, store)
}

func newPipelineWithRecords(t *testing.T, store *memory.Store, records ports.TransactionRepository) *pipeline {
	t.Helper()
	log := zerolog.Nop()
	notifier := &recordingNotifier{}

	resolver := NewIdentityResolver(store, store, true, log)
	ledger := NewLedgerService(store, 3, time.Millisecond, 15, log)
	p := NewTollProcessor(
		resolver,
		NewFeeCalculator(),
		ledger,
		NewTransactionRecorder(records, log),
		NewNotificationDispatcher(notifier, log),
		store,
		records,
		memory.NewTransactionCache(),
		log,
	)
	return &pipeline{processor: p, resolver: resolver, store: store, notifier: notifier}
}

func (p *pipeline) account(plate string, class domain.Classification, balance string) {
	p.store.PutAccount(domain.Account{
		Plate:          plate,
		Classification: class,
		Balance:        decimal.RequireFromString(balance),
		Email:          strPtr("driver@example.com"),
	})
}

func crossing(eventID, plate, tagID string, tollPoint domain.TollPoint) domain.TollEvent {
	ev := domain.TollEvent{
		EventID:     eventID,
		TollPointID: string(tollPoint),
		Timestamp:   time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	}
	if plate != "" {
		ev.Plate = strPtr(plate)
	}
	if tagID != "" {
		ev.TagID = strPtr(tagID)
	}
	return ev
}

func TestPipeline_UnregisteredInvoice(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationUnregistered, "0")

	txn, err := p.processor.Process(context.Background(), crossing("evt-1", "P-123ABC", "", domain.TollPointZoneA))
	require.NoError(t, err)

	assert.Equal(t, "52.50", txn.Amount.StringFixed(2))
	assert.Equal(t, domain.ScenarioUnregisteredInvoice, txn.Scenario)
	assert.True(t, txn.Outcome.Success)
	require.NotNil(t, txn.Invoice)
	assert.True(t, p.store.Balance("P-123ABC").IsZero())
	assert.Equal(t, 0, p.store.DebitCount())
	require.Equal(t, 1, p.notifier.count())
	assert.Equal(t, domain.NotificationInvoiceIssued, p.notifier.intents[0].Kind)
}

func TestPipeline_RegisteredDirect(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "100.00")

	txn, err := p.processor.Process(context.Background(), crossing("evt-2", "P-123ABC", "", domain.TollPointZoneA))
	require.NoError(t, err)

	assert.Equal(t, "25.00", txn.Amount.StringFixed(2))
	assert.Equal(t, domain.ScenarioRegisteredDirect, txn.Scenario)
	assert.True(t, txn.Outcome.Success)
	assert.Equal(t, "75.00", p.store.Balance("P-123ABC").StringFixed(2))
	assert.Equal(t, domain.NotificationPaymentSucceeded, p.notifier.intents[0].Kind)
}

func TestPipeline_InsufficientFunds(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "10.00")

	txn, err := p.processor.Process(context.Background(), crossing("evt-3", "P-123ABC", "", domain.TollPointZoneA))
	require.NoError(t, err, "declines are recorded outcomes, not errors")

	assert.False(t, txn.Outcome.Success)
	assert.Equal(t, domain.ReasonInsufficientFunds, *txn.Outcome.ErrorReason)
	assert.Equal(t, "10.00", p.store.Balance("P-123ABC").StringFixed(2))
	assert.Equal(t, 1, p.store.TransactionCount())
	assert.Equal(t, domain.NotificationPaymentFailed, p.notifier.intents[0].Kind)
}

func TestPipeline_TagExpress(t *testing.T) {
	p := newPipeline(t)
	p.account("P-456DEF", domain.ClassificationRegistered, "100.00")
	p.store.PutTag(domain.Tag{TagID: "TAG-002", Plate: strPtr("P-456DEF"), Status: domain.TagStatusActive})

	txn, err := p.processor.Process(context.Background(), crossing("evt-4", "", "TAG-002", domain.TollPointZoneB))
	require.NoError(t, err)

	assert.Equal(t, "27.00", txn.Amount.StringFixed(2))
	assert.Equal(t, domain.ScenarioTagExpress, txn.Scenario)
	assert.Equal(t, "P-456DEF", txn.Plate)
	assert.Equal(t, "73.00", p.store.Balance("P-456DEF").StringFixed(2))
}

func TestPipeline_InactiveTagRejected(t *testing.T) {
	p := newPipeline(t)
	p.account("P-789GHI", domain.ClassificationRegistered, "100.00")
	p.store.PutTag(domain.Tag{TagID: "TAG-003", Plate: strPtr("P-789GHI"), Status: domain.TagStatusInactive})

	_, err := p.processor.Process(context.Background(), crossing("evt-5", "", "TAG-003", domain.TollPointZoneA))
	assert.True(t, apperror.HasCode(err, apperror.CodeTagUnresolved))
	assert.Equal(t, 0, p.store.TransactionCount())
	assert.Equal(t, 0, p.notifier.count())
}

func TestPipeline_TagPlateMismatch(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "100.00")
	p.account("Y-000AAA", domain.ClassificationRegistered, "100.00")
	p.store.PutTag(domain.Tag{TagID: "TAG-001", Plate: strPtr("P-123ABC"), Status: domain.TagStatusActive})

	_, err := p.processor.Process(context.Background(), crossing("evt-m", "Y-000AAA", "TAG-001", domain.TollPointZoneA))
	assert.True(t, apperror.HasCode(err, apperror.CodeTagPlateMismatch))
	assert.Equal(t, "100.00", p.store.Balance("Y-000AAA").StringFixed(2))
}

func TestPipeline_Redelivery_IsIdempotent(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "100.00")
	ev := crossing("evt-6", "P-123ABC", "", domain.TollPointZoneA)

	first, err := p.processor.Process(context.Background(), ev)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := p.processor.Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, *first.Outcome.AuthorizationCode, *again.Outcome.AuthorizationCode)
	}

	assert.Equal(t, "75.00", p.store.Balance("P-123ABC").StringFixed(2))
	assert.Equal(t, 1, p.store.TransactionCount())
	assert.Equal(t, 1, p.store.DebitCount())
	assert.Equal(t, 1, p.notifier.count())
}

func TestPipeline_ConcurrentRedelivery_SingleDebit(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "100.00")
	ev := crossing("evt-7", "P-123ABC", "", domain.TollPointZoneA)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.processor.Process(context.Background(), ev)
		}()
	}
	wg.Wait()

	assert.Equal(t, "75.00", p.store.Balance("P-123ABC").StringFixed(2))
	assert.Equal(t, 1, p.store.TransactionCount())
	assert.Equal(t, 1, p.store.DebitCount())
	assert.Equal(t, 1, p.notifier.count())
}

func TestPipeline_ConcurrentDebits_NeverNegative(t *testing.T) {
	p := newPipeline(t)
	p.account("P-123ABC", domain.ClassificationRegistered, "100.00")

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := crossing(fmt.Sprintf("evt-c-%d", i), "P-123ABC", "", domain.TollPointZoneA)
			_, err := p.processor.Process(context.Background(), ev)
			if err != nil {
				assert.True(t, apperror.HasCode(err, apperror.CodeConcurrencyConflict), "unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	balance := p.store.Balance("P-123ABC")
	assert.False(t, balance.IsNegative())

	debited := decimal.NewFromInt(25).Mul(decimal.NewFromInt(int64(p.store.DebitCount())))
	assert.True(t, decimal.RequireFromString("100").Sub(debited).Equal(balance), "balance must reflect exactly the journaled debits")
	assert.LessOrEqual(t, p.store.DebitCount(), 4)
}

func TestPipeline_UnknownPlate_ImplicitInvoice(t *testing.T) {
	p := newPipeline(t)

	txn, err := p.processor.Process(context.Background(), crossing("evt-8", "X-999ZZZ", "", domain.TollPointZoneC))
	require.NoError(t, err)

	assert.Equal(t, domain.ScenarioUnregisteredInvoice, txn.Scenario)
	assert.Equal(t, "45.00", txn.Amount.StringFixed(2))
	assert.Nil(t, p.notifier.intents[0].Email)
}

// A debit whose record write failed must be recorded from the journal on
// redelivery, whatever changed in between.
func TestPipeline_RedeliveryAfterFailedRecord_UsesJournal(t *testing.T) {
	tests := []struct {
		name     string
		tagID    string
		between  func(p *pipeline)
		scenario domain.Scenario
		amount   string
	}{
		{
			name: "account reclassified to unregistered",
			between: func(p *pipeline) {
				p.account("P-123ABC", domain.ClassificationUnregistered, "75.00")
			},
			scenario: domain.ScenarioRegisteredDirect,
			amount:   "25.00",
		},
		{
			name:  "tag deactivated",
			tagID: "TAG-001",
			between: func(p *pipeline) {
				p.store.PutTag(domain.Tag{TagID: "TAG-001", Plate: strPtr("P-123ABC"), Status: domain.TagStatusInactive})
			},
			scenario: domain.ScenarioTagExpress,
			amount:   "22.50",
		},
		{
			name: "redelivered past the staleness window",
			between: func(p *pipeline) {
				p.resolver.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
			},
			scenario: domain.ScenarioRegisteredDirect,
			amount:   "25.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			p := newPipelineWithRecords(t, store, &flakyRecords{Store: store, failures: 1})
			p.account("P-123ABC", domain.ClassificationRegistered, "100.00")
			plate := "P-123ABC"
			if tt.tagID != "" {
				p.store.PutTag(domain.Tag{TagID: tt.tagID, Plate: strPtr("P-123ABC"), Status: domain.TagStatusActive})
				plate = ""
			}
			ev := crossing("evt-j", plate, tt.tagID, domain.TollPointZoneA)

			_, err := p.processor.Process(context.Background(), ev)
			require.Error(t, err)
			assert.True(t, apperror.IsTransient(err), "a failed record write is redelivered")
			balanceAfterDebit := p.store.Balance("P-123ABC")
			require.Equal(t, 1, p.store.DebitCount())
			require.Equal(t, 0, p.store.TransactionCount())

			tt.between(p)

			txn, err := p.processor.Process(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, tt.scenario, txn.Scenario)
			assert.Equal(t, tt.amount, txn.Amount.StringFixed(2))
			assert.True(t, txn.Outcome.Success)
			assert.Nil(t, txn.Invoice, "a debited crossing is never invoiced")

			debit, err := p.store.FindDebit(context.Background(), "evt-j")
			require.NoError(t, err)
			assert.Equal(t, debit.AuthorizationCode, *txn.Outcome.AuthorizationCode)

			assert.True(t, balanceAfterDebit.Equal(p.store.Balance("P-123ABC")), "no second charge")
			assert.Equal(t, 1, p.store.DebitCount())
			assert.Equal(t, 1, p.store.TransactionCount())
			assert.Equal(t, 1, p.notifier.count())
		})
	}
}
