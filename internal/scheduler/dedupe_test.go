package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpath/internal/model"
)

func TestRedisDedupeFirstSend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dedupe := NewRedisDedupe(client, time.Hour)
	ctx := context.Background()

	first, err := dedupe.FirstSend(ctx, 1, model.PhaseInitial, "2024-01-08")
	require.NoError(t, err)
	assert.True(t, first)

	// Same slot again loses.
	first, err = dedupe.FirstSend(ctx, 1, model.PhaseInitial, "2024-01-08")
	require.NoError(t, err)
	assert.False(t, first)

	// Different phase, user and date are separate slots.
	first, err = dedupe.FirstSend(ctx, 1, model.PhaseFollowUp, "2024-01-08")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = dedupe.FirstSend(ctx, 2, model.PhaseInitial, "2024-01-08")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = dedupe.FirstSend(ctx, 1, model.PhaseInitial, "2024-01-09")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRedisDedupeKeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dedupe := NewRedisDedupe(client, time.Hour)
	ctx := context.Background()

	_, err := dedupe.FirstSend(ctx, 1, model.PhaseInitial, "2024-01-08")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	first, err := dedupe.FirstSend(ctx, 1, model.PhaseInitial, "2024-01-08")
	require.NoError(t, err)
	assert.True(t, first, "slot reopens after TTL")
}
