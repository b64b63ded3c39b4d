package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tollway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// TransactionCache implements ports.TransactionCache using Redis. Entries
// are JSON-encoded transactions keyed by event id.
type TransactionCache struct {
	client *goredis.Client
	prefix string
}

// NewTransactionCache creates a new Redis-backed transaction cache.
func NewTransactionCache(client *goredis.Client) *TransactionCache {
	return &TransactionCache{
		client: client,
		prefix: "txn:",
	}
}

// Get retrieves the cached transaction for an event.
// Returns nil, nil if the key does not exist.
func (c *TransactionCache) Get(ctx context.Context, eventID string) (*domain.Transaction, error) {
	val, err := c.client.Get(ctx, c.prefix+eventID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transaction get: %w", err)
	}

	var txn domain.Transaction
	if err := json.Unmarshal(val, &txn); err != nil {
		return nil, fmt.Errorf("decode cached transaction: %w", err)
	}
	return &txn, nil
}

// Set stores a transaction with TTL.
func (c *TransactionCache) Set(ctx context.Context, txn *domain.Transaction, ttl time.Duration) error {
	val, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+txn.EventID, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis transaction set: %w", err)
	}
	return nil
}
