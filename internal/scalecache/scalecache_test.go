package scalecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemStoreLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()
	_, ok, err := s.Load(ctx)
	assert.NoError(err)
	assert.False(ok)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.NoError(s.Store(ctx, Snapshot{Scale: 1.25, ObservedPerDay: 30, ComputedAt: now}))
	snap, ok, err := s.Load(ctx)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(1.25, snap.Scale)

	assert.NoError(s.Store(ctx, Snapshot{Scale: 0.9, ComputedAt: now.Add(time.Minute)}))
	snap, _, _ = s.Load(ctx)
	assert.Equal(0.9, snap.Scale)
	assert.Equal(float64(0), snap.ObservedPerDay)

	assert.NoError(s.Invalidate(ctx))
	_, ok, _ = s.Load(ctx)
	assert.False(ok)
}

func TestSnapshotFresh(t *testing.T) {
	assert := assert.New(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.False(Snapshot{}.Fresh(now, time.Hour))
	s := Snapshot{ComputedAt: now.Add(-30 * time.Minute)}
	assert.True(s.Fresh(now, time.Hour))
	assert.False(s.Fresh(now, 30*time.Minute))
	assert.False(s.Fresh(now, 0))
}
