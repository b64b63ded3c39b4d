package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"tollway/internal/core/domain"
)

// AccountRepository defines persistence operations for vehicle accounts.
// Balance is written only through ConditionalDebit.
type AccountRepository interface {
	// GetByPlate returns nil, nil when no account exists for the plate.
	GetByPlate(ctx context.Context, plate string) (*domain.Account, error)
	// FindDebit returns the journaled debit for an event, or nil, nil.
	FindDebit(ctx context.Context, eventID string) (*domain.Debit, error)
	// ConditionalDebit sets the balance to debit.BalanceAfter only if the stored
	// balance still equals debit.BalanceBefore, journaling the debit in the same
	// store transaction.
	ConditionalDebit(ctx context.Context, debit *domain.Debit) (domain.DebitStatus, error)
}

// TagRepository is the read-only tag lookup used by the resolver.
type TagRepository interface {
	// GetByID returns nil, nil when the tag does not exist.
	GetByID(ctx context.Context, tagID string) (*domain.Tag, error)
}

// TransactionRepository is the append-only transaction store.
type TransactionRepository interface {
	// CreateIfAbsent inserts txn unless a record for txn.EventID exists. It returns
	// the stored record and whether this call created it.
	CreateIfAbsent(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, bool, error)
	// GetByEventID returns nil, nil when no record exists.
	GetByEventID(ctx context.Context, eventID string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	Plate    string
	Scenario *domain.Scenario
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
