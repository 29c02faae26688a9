package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/persistence/memory"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

func newPositionFixture(t *testing.T) (*PositionService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewPositionService(store, &capturePublisher{}, zap.NewNop(), PositionConfig{})
	return svc, store
}

func seedWheel(t *testing.T, store *memory.Store, id string, chakraID *string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.SaveWheel(context.Background(), &grid.Wheel{
		ID: id, UserID: "u1", Heading: id, ChakraID: chakraID, CreatedAt: now, UpdatedAt: now,
	}))
}

func seedDot(t *testing.T, store *memory.Store, id string, wheelID *string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.SaveDot(context.Background(), &grid.Dot{
		ID: id, UserID: "u1", OneWordSummary: id, WheelID: wheelID, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestSavePosition_ExactReadBackWithoutValidation(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedDot(t, store, "dot-1", nil)

	payload, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementDot,
		ElementID:   "dot-1",
		Position:    grid.Point{X: 101.4, Y: 99.6},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 101.0, payload.Position.X, "coordinates are rounded to integers")
	assert.Equal(t, 100.0, payload.Position.Y)

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	require.NotNil(t, stored.PositionX)
	assert.Equal(t, 101.0, *stored.PositionX)
	assert.Equal(t, 100.0, *stored.PositionY)
}

func TestSavePosition_WheelCollision(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 100, Y: 100},
	}, true)
	require.NoError(t, err)

	// Centers ~70.7 apart, combined radius 240 plus padding 20: overlap.
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 150, Y: 150},
	}, true)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCollision(err))

	// Nothing was written for the rejected placement.
	stored, err := store.GetWheel(ctx, "u1", "wheel-b")
	require.NoError(t, err)
	assert.Nil(t, stored.PositionX)

	// Far enough away it fits.
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 400, Y: 400},
	}, true)
	require.NoError(t, err)
}

func TestSavePosition_ValidationOffAllowsOverlap(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 100, Y: 100},
	}, true)
	require.NoError(t, err)

	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 150, Y: 150},
	}, false)
	require.NoError(t, err)
}

func TestSavePosition_DotsInDifferentWheelsDoNotCollide(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)
	seedDot(t, store, "dot-a", strPtr("wheel-a"))
	seedDot(t, store, "dot-b", strPtr("wheel-b"))

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementDot, ElementID: "dot-a", Position: grid.Point{X: 50, Y: 50},
	}, true)
	require.NoError(t, err)

	// Same coordinates, different parent wheel: no conflict.
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementDot, ElementID: "dot-b", Position: grid.Point{X: 50, Y: 50},
	}, true)
	require.NoError(t, err)
}

func TestSavePosition_SiblingDotsCollide(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedDot(t, store, "dot-a", strPtr("wheel-a"))
	seedDot(t, store, "dot-b", strPtr("wheel-a"))

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementDot, ElementID: "dot-a", Position: grid.Point{X: 50, Y: 50},
	}, true)
	require.NoError(t, err)

	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementDot, ElementID: "dot-b", Position: grid.Point{X: 60, Y: 60},
	}, true)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCollision(err))
}

func TestSavePosition_MovingElementIgnoresItsOwnOldPosition(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 100, Y: 100},
	}, true)
	require.NoError(t, err)

	// Nudging the same wheel must not collide with itself.
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 110, Y: 110},
	}, true)
	require.NoError(t, err)

	stored, err := store.GetWheel(ctx, "u1", "wheel-a")
	require.NoError(t, err)
	assert.Equal(t, 110.0, *stored.PositionX)
}

func TestSavePosition_InvalidInput(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedDot(t, store, "dot-1", nil)

	tests := []struct {
		name  string
		input PositionInput
	}{
		{"unknown type", PositionInput{ElementType: "blob", ElementID: "dot-1", Position: grid.Point{X: 1, Y: 1}}},
		{"empty id", PositionInput{ElementType: grid.ElementDot, Position: grid.Point{X: 1, Y: 1}}},
		{"nan coordinate", PositionInput{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: math.NaN(), Y: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SavePosition(ctx, "u1", tt.input, false)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestSavePositions_AtomicBatch(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)
	seedWheel(t, store, "wheel-c", nil)

	payload, err := svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 500, Y: 0}},
		{ElementType: grid.ElementWheel, ElementID: "wheel-c", Position: grid.Point{X: 1000, Y: 0}},
	}, true)
	require.NoError(t, err)
	assert.Len(t, payload.Positions, 3)
}

func TestSavePositions_OneCollisionCommitsNothing(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)
	seedWheel(t, store, "wheel-c", nil)

	_, err := svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 1000, Y: 0}},
		// Collides with wheel-a inside the same batch.
		{ElementType: grid.ElementWheel, ElementID: "wheel-c", Position: grid.Point{X: 50, Y: 50}},
	}, true)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCollision(err))

	for _, id := range []string{"wheel-a", "wheel-b", "wheel-c"} {
		stored, err := store.GetWheel(ctx, "u1", id)
		require.NoError(t, err)
		assert.Nil(t, stored.PositionX, "no element in a rejected batch may be placed: %s", id)
	}
}

func TestSavePositions_BatchAgainstPersistedExcludesBatchMembers(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)

	_, err := svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 500, Y: 0}},
	}, true)
	require.NoError(t, err)

	// Swap the two wheels. Each new position overlaps the other's persisted
	// one, but batch members override their own persisted footprints.
	_, err = svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 500, Y: 0}},
		{ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 0, Y: 0}},
	}, true)
	require.NoError(t, err)
}

func TestSavePositions_RejectsDuplicatesAndOversizedBatches(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedDot(t, store, "dot-1", nil)

	_, err := svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: 100, Y: 100}},
	}, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	oversized := make([]PositionInput, DefaultMaxBatchSize+1)
	for i := range oversized {
		oversized[i] = PositionInput{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: float64(i), Y: 0}}
	}
	_, err = svc.SavePositions(ctx, "u1", oversized, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.SavePositions(ctx, "u1", nil, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSavePositions_MissingElementCommitsNothing(t *testing.T) {
	svc, store := newPositionFixture(t)
	ctx := context.Background()
	seedDot(t, store, "dot-1", nil)

	_, err := svc.SavePositions(ctx, "u1", []PositionInput{
		{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementDot, ElementID: "dot-missing", Position: grid.Point{X: 100, Y: 100}},
	}, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	assert.Nil(t, stored.PositionX)
}

func TestPositionConfig_RuntimeBatchCap(t *testing.T) {
	store := memory.NewStore()
	batchCap := 2
	svc := NewPositionService(store, nil, zap.NewNop(), PositionConfig{
		MaxBatch: func() int { return batchCap },
	})
	ctx := context.Background()
	seedDot(t, store, "dot-1", nil)
	seedDot(t, store, "dot-2", nil)

	batch := []PositionInput{
		{ElementType: grid.ElementDot, ElementID: "dot-1", Position: grid.Point{X: 0, Y: 0}},
		{ElementType: grid.ElementDot, ElementID: "dot-2", Position: grid.Point{X: 500, Y: 500}},
	}
	_, err := svc.SavePositions(ctx, "u1", batch, false)
	require.NoError(t, err)

	// Lowering the cap at runtime rejects the same batch.
	batchCap = 1
	_, err = svc.SavePositions(ctx, "u1", batch, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestPositionConfig_RuntimePadding(t *testing.T) {
	store := memory.NewStore()
	padding := 20.0
	svc := NewPositionService(store, nil, zap.NewNop(), PositionConfig{
		Padding: func() float64 { return padding },
	})
	ctx := context.Background()
	seedWheel(t, store, "wheel-a", nil)
	seedWheel(t, store, "wheel-b", nil)

	_, err := svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-a", Position: grid.Point{X: 0, Y: 0},
	}, true)
	require.NoError(t, err)

	// Centers 250 apart, combined radius 240: fits with 5 padding, not 20.
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 250, Y: 0},
	}, true)
	require.Error(t, err)

	padding = 5
	_, err = svc.SavePosition(ctx, "u1", PositionInput{
		ElementType: grid.ElementWheel, ElementID: "wheel-b", Position: grid.Point{X: 250, Y: 0},
	}, true)
	require.NoError(t, err)
}
