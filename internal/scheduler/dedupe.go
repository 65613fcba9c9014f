package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadpath/internal/model"
)

// RedisDedupe implements DedupeStore with an atomic SET NX per
// (user, phase, local calendar date). The TTL only needs to outlive the
// calendar date the key encodes.
type RedisDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedupe creates a Redis-backed dedupe store.
func NewRedisDedupe(client *redis.Client, ttl time.Duration) *RedisDedupe {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisDedupe{client: client, ttl: ttl}
}

// FirstSend records the send slot and reports whether this caller won it.
func (d *RedisDedupe) FirstSend(ctx context.Context, userID int64, phase model.ReminderPhase, localDate string) (bool, error) {
	key := fmt.Sprintf("reminder:%d:%s:%s", userID, phase, localDate)
	ok, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe setnx: %w", err)
	}
	return ok, nil
}
