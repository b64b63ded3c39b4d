// Package memory provides mutex-guarded in-process implementations of the
// storage ports. They honor the same compare-and-swap and create-if-absent
// contracts as the PostgreSQL adapters and back the pipeline property tests
// and the local simulation command.
package memory

import (
	"context"
	"sort"
	"sync"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Store implements ports.AccountRepository, ports.TagRepository and
// ports.TransactionRepository.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	tags     map[string]domain.Tag
	debits   map[string]domain.Debit
	txns     map[string]domain.Transaction
	order    []string // event ids in insertion order
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		tags:     make(map[string]domain.Tag),
		debits:   make(map[string]domain.Debit),
		txns:     make(map[string]domain.Transaction),
	}
}

// PutAccount inserts or replaces an account. Onboarding only.
func (s *Store) PutAccount(acc domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Plate] = acc
}

// PutTag inserts or replaces a tag.
func (s *Store) PutTag(tag domain.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[tag.TagID] = tag
}

// Balance returns the stored balance for plate, zero if unknown.
func (s *Store) Balance(plate string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[plate].Balance
}

// DebitCount returns the number of journaled debits.
func (s *Store) DebitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.debits)
}

// TransactionCount returns the number of recorded transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txns)
}

func (s *Store) GetByPlate(_ context.Context, plate string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[plate]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *Store) FindDebit(_ context.Context, eventID string) (*domain.Debit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debits[eventID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) ConditionalDebit(_ context.Context, debit *domain.Debit) (domain.DebitStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.debits[debit.EventID]; ok {
		return domain.DebitDuplicate, nil
	}
	acc, ok := s.accounts[debit.Plate]
	if !ok || !acc.Balance.Equal(debit.BalanceBefore) {
		return domain.DebitConflict, nil
	}

	acc.Balance = debit.BalanceAfter
	acc.UpdatedAt = debit.CreatedAt
	s.accounts[debit.Plate] = acc
	s.debits[debit.EventID] = *debit
	return domain.DebitApplied, nil
}

func (s *Store) GetByID(_ context.Context, tagID string) (*domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tag, ok := s.tags[tagID]
	if !ok {
		return nil, nil
	}
	return &tag, nil
}

func (s *Store) CreateIfAbsent(_ context.Context, txn *domain.Transaction) (*domain.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txns[txn.EventID]; ok {
		return &existing, false, nil
	}
	s.txns[txn.EventID] = *txn
	s.order = append(s.order, txn.EventID)
	stored := *txn
	return &stored, true, nil
}

func (s *Store) GetByEventID(_ context.Context, eventID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[eventID]
	if !ok {
		return nil, nil
	}
	return &txn, nil
}

// List filters like the SQL adapter: newest processed first, then paginated.
func (s *Store) List(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	s.mu.RLock()
	var matched []domain.Transaction
	for _, id := range s.order {
		txn := s.txns[id]
		if params.Plate != "" && txn.Plate != params.Plate {
			continue
		}
		if params.Scenario != nil && txn.Scenario != *params.Scenario {
			continue
		}
		if params.From != nil && txn.EventTimestamp.Before(*params.From) {
			continue
		}
		if params.To != nil && txn.EventTimestamp.After(*params.To) {
			continue
		}
		matched = append(matched, txn)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ProcessedAt.After(matched[j].ProcessedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if params.PageSize <= 0 || start < 0 {
		return matched, total, nil
	}
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := min(start+params.PageSize, len(matched))
	return matched[start:end], total, nil
}
