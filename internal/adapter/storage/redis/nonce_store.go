package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const noncePrefix = "nonce:"

// NonceStore remembers the nonces each station has used within the replay
// window. Keys expire on their own; nothing is ever deleted explicitly.
type NonceStore struct {
	client *goredis.Client
}

func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client}
}

func nonceKey(stationID, nonce string) string {
	return noncePrefix + stationID + ":" + nonce
}

// CheckAndSet claims nonce for stationID. It reports false when the station
// already used it within ttl.
func (s *NonceStore) CheckAndSet(ctx context.Context, stationID string, nonce string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, nonceKey(stationID, nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return claimed, nil
}
