package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/events"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/persistence/memory"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	userID    string
	eventType string
	payload   interface{}
}

func (p *capturePublisher) Publish(ctx context.Context, userID, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{userID: userID, eventType: eventType, payload: payload})
	return nil
}

func (p *capturePublisher) all() []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]capturedEvent{}, p.events...)
}

func strPtr(s string) *string { return &s }

func seedHierarchy(t *testing.T, store *memory.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveChakra(ctx, &grid.Chakra{
		ID: "chakra-1", UserID: userID, Heading: "Health", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveWheel(ctx, &grid.Wheel{
		ID: "wheel-1", UserID: userID, Heading: "Run a marathon", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveDot(ctx, &grid.Dot{
		ID: "dot-1", UserID: userID, OneWordSummary: "pace", CreatedAt: now, UpdatedAt: now,
	}))
}

func newMappingFixture(t *testing.T) (*MappingService, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturePublisher{}
	svc := NewMappingService(store, publisher, zap.NewNop())
	seedHierarchy(t, store, "u1")
	return svc, store, publisher
}

func TestMapDotToWheel_LinkAndUnlink(t *testing.T) {
	svc, store, publisher := newMappingFixture(t)
	ctx := context.Background()

	result, err := svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)
	assert.Equal(t, events.ActionLinked, result.Action)
	require.NotNil(t, result.Dot.WheelID)
	assert.Equal(t, "wheel-1", *result.Dot.WheelID)

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	require.NotNil(t, stored.WheelID)
	assert.Equal(t, "wheel-1", *stored.WheelID)

	// Unlink by passing nil.
	result, err = svc.MapDotToWheel(ctx, "u1", "dot-1", nil)
	require.NoError(t, err)
	assert.Equal(t, events.ActionUnlinked, result.Action)

	stored, err = store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	assert.Nil(t, stored.WheelID)

	published := publisher.all()
	require.Len(t, published, 2)
	assert.Equal(t, events.EventDotMapped, published[0].eventType)
	assert.Equal(t, "u1", published[0].userID)
}

func TestMapDotToWheel_ClearsDirectChakraLink(t *testing.T) {
	svc, store, _ := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToChakra(ctx, "u1", "dot-1", strPtr("chakra-1"))
	require.NoError(t, err)

	_, err = svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	require.NotNil(t, stored.WheelID)
	assert.Nil(t, stored.ChakraID, "wheel link must clear the direct chakra link")
}

func TestMapDotToChakra_ClearsWheelLink(t *testing.T) {
	svc, store, _ := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)

	_, err = svc.MapDotToChakra(ctx, "u1", "dot-1", strPtr("chakra-1"))
	require.NoError(t, err)

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ChakraID)
	assert.Nil(t, stored.WheelID, "chakra link must clear the wheel link")
}

func TestMapDotToWheel_AlreadyLinkedIsNoOp(t *testing.T) {
	svc, _, publisher := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)

	result, err := svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)
	assert.Equal(t, events.ActionLinked, result.Action)
	assert.Contains(t, result.Message, "already")

	// Only the first call publishes.
	assert.Len(t, publisher.all(), 1)
}

func TestMapDotToWheel_MissingTargetLeavesDotUnchanged(t *testing.T) {
	svc, store, publisher := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-missing"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	stored, err := store.GetDot(ctx, "u1", "dot-1")
	require.NoError(t, err)
	assert.Nil(t, stored.WheelID)
	assert.Empty(t, publisher.all())
}

func TestMapDotToWheel_OtherUsersDotIsNotFound(t *testing.T) {
	svc, _, _ := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToWheel(ctx, "u2", "dot-1", strPtr("wheel-1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMapDotToWheel_MissingUserContext(t *testing.T) {
	svc, _, _ := newMappingFixture(t)

	_, err := svc.MapDotToWheel(context.Background(), "", "dot-1", strPtr("wheel-1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotAuthorized(err))
}

func TestMapWheelToChakra_LinkAndUnlink(t *testing.T) {
	svc, store, publisher := newMappingFixture(t)
	ctx := context.Background()

	result, err := svc.MapWheelToChakra(ctx, "u1", "wheel-1", strPtr("chakra-1"))
	require.NoError(t, err)
	assert.Equal(t, events.ActionLinked, result.Action)

	stored, err := store.GetWheel(ctx, "u1", "wheel-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ChakraID)
	assert.Equal(t, "chakra-1", *stored.ChakraID)

	result, err = svc.MapWheelToChakra(ctx, "u1", "wheel-1", nil)
	require.NoError(t, err)
	assert.Equal(t, events.ActionUnlinked, result.Action)

	stored, err = store.GetWheel(ctx, "u1", "wheel-1")
	require.NoError(t, err)
	assert.Nil(t, stored.ChakraID)

	published := publisher.all()
	require.Len(t, published, 2)
	assert.Equal(t, events.EventWheelMapped, published[0].eventType)
}

func TestMapWheelToChakra_MissingChakra(t *testing.T) {
	svc, store, _ := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapWheelToChakra(ctx, "u1", "wheel-1", strPtr("chakra-missing"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	stored, err := store.GetWheel(ctx, "u1", "wheel-1")
	require.NoError(t, err)
	assert.Nil(t, stored.ChakraID)
}

func TestMapDotToChakra_PublishesDedicatedEvent(t *testing.T) {
	svc, _, publisher := newMappingFixture(t)
	ctx := context.Background()

	_, err := svc.MapDotToChakra(ctx, "u1", "dot-1", strPtr("chakra-1"))
	require.NoError(t, err)

	published := publisher.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventDotMappedChakra, published[0].eventType)
	payload, ok := published[0].payload.(events.DotMappedChakraPayload)
	require.True(t, ok)
	assert.Equal(t, events.ActionLinked, payload.Action)
	require.NotNil(t, payload.ChakraID)
	assert.Equal(t, "chakra-1", *payload.ChakraID)
}

func TestMapping_CaptureThenOrganize(t *testing.T) {
	// A dot captured without a parent is organized later into a wheel, and
	// the wheel into a chakra.
	svc, store, _ := newMappingFixture(t)
	ctx := context.Background()

	unlinked, err := store.ListDots(ctx, "u1", ports.DotFilter{Unlinked: true})
	require.NoError(t, err)
	require.Len(t, unlinked, 1)

	_, err = svc.MapDotToWheel(ctx, "u1", "dot-1", strPtr("wheel-1"))
	require.NoError(t, err)
	_, err = svc.MapWheelToChakra(ctx, "u1", "wheel-1", strPtr("chakra-1"))
	require.NoError(t, err)

	unlinked, err = store.ListDots(ctx, "u1", ports.DotFilter{Unlinked: true})
	require.NoError(t, err)
	assert.Empty(t, unlinked)

	wheel, err := store.GetWheel(ctx, "u1", "wheel-1")
	require.NoError(t, err)
	require.NotNil(t, wheel.ChakraID)
	assert.Equal(t, "chakra-1", *wheel.ChakraID)
}
