package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/persistence/memory"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

func seedStatsData(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveChakra(ctx, &grid.Chakra{ID: "c1", UserID: "u1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.SaveWheel(ctx, &grid.Wheel{ID: "w1", UserID: "u1", ChakraID: strPtr("c1"), CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.SaveWheel(ctx, &grid.Wheel{ID: "w2", UserID: "u1", CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d1", UserID: "u1", WheelID: strPtr("w1"), CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d2", UserID: "u1", ChakraID: strPtr("c1"), CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d3", UserID: "u1", CreatedAt: now, UpdatedAt: now}))

	// Another user's data must not leak into u1's stats.
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d-other", UserID: "u2", CreatedAt: now, UpdatedAt: now}))
}

func TestStatsService_Get(t *testing.T) {
	store := memory.NewStore()
	seedStatsData(t, store)
	svc := NewStatsService(store, zap.NewNop(), nil)

	stats, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Totals.Dots)
	assert.Equal(t, 2, stats.Totals.Wheels)
	assert.Equal(t, 1, stats.Totals.Chakras)

	// A direct chakra link counts as mapped.
	assert.Equal(t, 2, stats.Mappings.MappedDots)
	assert.Equal(t, 1, stats.Mappings.UnmappedDots)
	assert.Equal(t, 1, stats.Mappings.MappedWheels)
	assert.Equal(t, 1, stats.Mappings.UnmappedWheels)

	assert.Equal(t, 67, stats.Percentages.DotsMapped)
	assert.Equal(t, 50, stats.Percentages.WheelsMapped)
}

func TestStatsService_EmptyUser(t *testing.T) {
	svc := NewStatsService(memory.NewStore(), zap.NewNop(), nil)

	stats, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Totals.Dots)
	assert.Equal(t, 0, stats.Percentages.DotsMapped, "no elements means 0 percent, not a division error")
}

func TestStatsService_MissingUserContext(t *testing.T) {
	svc := NewStatsService(memory.NewStore(), zap.NewNop(), nil)

	_, err := svc.Get(context.Background(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotAuthorized(err))
}

func TestStatsService_CacheAndInvalidate(t *testing.T) {
	store := memory.NewStore()
	seedStatsData(t, store)
	svc := NewStatsService(store, zap.NewNop(), func() time.Duration { return time.Minute })
	ctx := context.Background()

	stats, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Totals.Dots)

	// A write behind the cache is not visible until the entry expires or is
	// invalidated.
	now := time.Now()
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d4", UserID: "u1", CreatedAt: now, UpdatedAt: now}))

	stats, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Totals.Dots)

	svc.Invalidate("u1")
	stats, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Totals.Dots)
}

func TestStatsService_InvalidateAll(t *testing.T) {
	store := memory.NewStore()
	seedStatsData(t, store)
	svc := NewStatsService(store, zap.NewNop(), func() time.Duration { return time.Minute })
	ctx := context.Background()

	stats, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Totals.Dots)

	now := time.Now()
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d4", UserID: "u1", CreatedAt: now, UpdatedAt: now}))

	svc.InvalidateAll()
	stats, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Totals.Dots)
}

func TestStatsService_RuntimeTTL(t *testing.T) {
	store := memory.NewStore()
	seedStatsData(t, store)
	ttl := time.Minute
	svc := NewStatsService(store, zap.NewNop(), func() time.Duration { return ttl })
	ctx := context.Background()

	stats, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Totals.Dots)

	// Dropping the TTL to zero at runtime turns caching off for subsequent
	// computations.
	ttl = 0
	svc.Invalidate("u1")

	now := time.Now()
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d4", UserID: "u1", CreatedAt: now, UpdatedAt: now}))
	stats, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Totals.Dots)

	require.NoError(t, store.SaveDot(ctx, &grid.Dot{ID: "d5", UserID: "u1", CreatedAt: now, UpdatedAt: now}))
	stats, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Totals.Dots, "a zero TTL must not serve a stale snapshot")
}
