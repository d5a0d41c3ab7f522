package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates webhook deliveries. Stripe delivers events
// at-least-once, so the caller checks Seen on entry and calls Mark only
// after handling succeeds; a failed delivery leaves the event id unset
// and the redelivery gets processed.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(tenant, eventID string) string {
	return fmt.Sprintf("idem:%s:%s", tenant, eventID)
}

// Seen reports whether the event id was already handled. It never
// writes; deciding to mark belongs to the caller.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Mark records the event id as handled. SetNX keeps the first writer's
// TTL when concurrent deliveries race to mark.
func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.SetNX(ctx, key, "1", s.ttl).Err()
}
