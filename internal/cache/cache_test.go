package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_SetThenGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Set(ctx, UserRiskKey("u1"), "0.42", UserRiskTTL)

	val, ok := s.Get(ctx, UserRiskKey("u1"))
	assert.True(t, ok)
	assert.Equal(t, "0.42", val)
}

func TestStore_GetMissingKey(t *testing.T) {
	s := New()
	_, ok := s.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestStore_ExpiredEntryIsMiss(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Set(ctx, "k", "v", 1*time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_Invalidate(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Set(ctx, "k", "v", time.Hour)
	s.Invalidate(ctx, "k")

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_StatsTracksHitRate(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Set(ctx, "k", "v", time.Hour)

	s.Get(ctx, "k")
	s.Get(ctx, "missing")

	stats := s.Stats()
	assert.Equal(t, 1, stats.Keys)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestStore_SubDeadlineTimeoutIsMiss(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	s.Set(context.Background(), "k", "v", time.Hour)
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}
