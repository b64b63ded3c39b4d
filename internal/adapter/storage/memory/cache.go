package memory

import (
	"context"
	"sync"
	"time"

	"tollway/internal/core/domain"
)

type cacheEntry struct {
	txn       domain.Transaction
	expiresAt time.Time
}

// TransactionCache implements ports.TransactionCache with lazy expiry.
type TransactionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewTransactionCache creates an empty cache.
func NewTransactionCache() *TransactionCache {
	return &TransactionCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *TransactionCache) Get(_ context.Context, eventID string) (*domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[eventID]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, eventID)
		return nil, nil
	}
	txn := e.txn
	return &txn, nil
}

func (c *TransactionCache) Set(_ context.Context, txn *domain.Transaction, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[txn.EventID] = cacheEntry{txn: *txn, expiresAt: c.now().Add(ttl)}
	return nil
}
