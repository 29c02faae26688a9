package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/events"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/observability"
)

// DefaultMaxBatchSize caps batch placements at the largest set the
// transactional store backends can commit atomically.
const DefaultMaxBatchSize = 25

// PositionConfig tunes the position engine. Both knobs are read per call so a
// config watcher can adjust them at runtime.
type PositionConfig struct {
	Padding  func() float64
	MaxBatch func() int
}

// PositionInput is one requested placement.
type PositionInput struct {
	ElementType grid.ElementType
	ElementID   string
	Position    grid.Point
}

// PositionService assigns and validates 2-D placement. Collision validation
// treats dots as fixed-radius points and wheels/chakras as circles with their
// stored radius; overlap is only checked between elements of the same scope
// (siblings under the same parent).
type PositionService struct {
	store     ports.HierarchyStore
	publisher ports.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	padding   func() float64
	maxBatch  func() int
}

// NewPositionService creates a new position engine.
func NewPositionService(store ports.HierarchyStore, publisher ports.EventPublisher, logger *zap.Logger, cfg PositionConfig) *PositionService {
	padding := cfg.Padding
	if padding == nil {
		padding = func() float64 { return grid.DefaultPadding }
	}
	maxBatch := cfg.MaxBatch
	if maxBatch == nil {
		maxBatch = func() int { return DefaultMaxBatchSize }
	}
	return &PositionService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("position-service"),
		padding:   padding,
		maxBatch:  maxBatch,
	}
}

// SavePosition places a single element. With validateCollision set, the
// candidate footprint is checked against every other positioned sibling and
// the call fails with a COLLISION error instead of adjusting the position.
func (s *PositionService) SavePosition(ctx context.Context, userID string, in PositionInput, validateCollision bool) (*events.PositionUpdatedPayload, error) {
	ctx, span := s.tracer.Start(ctx, "PositionService.SavePosition",
		trace.WithAttributes(
			attribute.String("element.type", string(in.ElementType)),
			attribute.String("element.id", in.ElementID),
		))
	defer span.End()

	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}

	cand, err := s.loadCandidate(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	if validateCollision {
		exclude := map[string]bool{candidateKey(in.ElementType, in.ElementID): true}
		if err := s.checkAgainstPersisted(ctx, userID, cand, exclude); err != nil {
			return nil, err
		}
	}

	update := ports.PositionUpdate{
		ElementType: in.ElementType,
		ElementID:   in.ElementID,
		Position:    in.Position.Round(),
	}
	if err := s.store.SavePositions(ctx, userID, []ports.PositionUpdate{update}); err != nil {
		return nil, err
	}
	observability.PositionsSaved.WithLabelValues(string(in.ElementType)).Inc()

	payload := &events.PositionUpdatedPayload{
		ElementType: in.ElementType,
		ElementID:   in.ElementID,
		Position:    update.Position,
		Timestamp:   time.Now(),
	}
	s.publish(ctx, userID, events.EventPositionUpdated, payload)
	return payload, nil
}

// SavePositions places a set of elements atomically. Every candidate is
// validated against the other candidates and against already-persisted
// positions before anything is committed; one rejection commits zero
// positions.
func (s *PositionService) SavePositions(ctx context.Context, userID string, inputs []PositionInput, validateCollisions bool) (*events.PositionsBatchUpdatedPayload, error) {
	ctx, span := s.tracer.Start(ctx, "PositionService.SavePositions",
		trace.WithAttributes(attribute.Int("batch.size", len(inputs))))
	defer span.End()

	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}
	if len(inputs) == 0 {
		return nil, pkgerrors.NewValidation("positions are required")
	}
	if maxBatch := s.maxBatch(); len(inputs) > maxBatch {
		return nil, pkgerrors.NewValidation(fmt.Sprintf("batch exceeds the limit of %d positions", maxBatch))
	}

	candidates := make([]candidate, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		key := candidateKey(in.ElementType, in.ElementID)
		if seen[key] {
			return nil, pkgerrors.NewValidation(fmt.Sprintf("duplicate element in batch: %s %s", in.ElementType, in.ElementID))
		}
		seen[key] = true

		cand, err := s.loadCandidate(ctx, userID, in)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}

	if validateCollisions {
		padding := s.padding()
		for i := range candidates {
			for j := i + 1; j < len(candidates); j++ {
				a, b := candidates[i], candidates[j]
				if a.scope != b.scope {
					continue
				}
				if grid.Overlaps(a.footprint, b.footprint, padding) {
					observability.CollisionsDetected.Inc()
					return nil, pkgerrors.NewCollision(fmt.Sprintf(
						"%s %s overlaps %s %s in the same batch",
						a.input.ElementType, a.input.ElementID, b.input.ElementType, b.input.ElementID))
				}
			}
		}
		for _, cand := range candidates {
			if err := s.checkAgainstPersisted(ctx, userID, cand, seen); err != nil {
				return nil, err
			}
		}
	}

	updates := make([]ports.PositionUpdate, 0, len(candidates))
	for _, cand := range candidates {
		updates = append(updates, ports.PositionUpdate{
			ElementType: cand.input.ElementType,
			ElementID:   cand.input.ElementID,
			Position:    cand.input.Position.Round(),
		})
	}
	if err := s.store.SavePositions(ctx, userID, updates); err != nil {
		return nil, err
	}

	now := time.Now()
	payload := &events.PositionsBatchUpdatedPayload{Timestamp: now}
	for _, u := range updates {
		observability.PositionsSaved.WithLabelValues(string(u.ElementType)).Inc()
		payload.Positions = append(payload.Positions, events.PositionUpdatedPayload{
			ElementType: u.ElementType,
			ElementID:   u.ElementID,
			Position:    u.Position,
			Timestamp:   now,
		})
	}
	s.publish(ctx, userID, events.EventPositionsBatchUpdated, payload)
	return payload, nil
}

// candidate is a requested placement resolved against the stored element: its
// footprint at the requested coordinates and the sibling scope it competes
// in.
type candidate struct {
	input     PositionInput
	footprint grid.Footprint
	scope     scopeKey
}

// scopeKey groups elements whose footprints may not overlap: same type under
// the same parent.
type scopeKey struct {
	elementType grid.ElementType
	parent      string
}

func candidateKey(t grid.ElementType, id string) string {
	return string(t) + "#" + id
}

func (s *PositionService) loadCandidate(ctx context.Context, userID string, in PositionInput) (candidate, error) {
	if !in.ElementType.Valid() {
		return candidate{}, pkgerrors.NewValidation(fmt.Sprintf("unknown element type: %s", in.ElementType))
	}
	if in.ElementID == "" {
		return candidate{}, pkgerrors.NewValidation("element id is required")
	}
	if !in.Position.Valid() {
		return candidate{}, pkgerrors.NewValidation("position coordinates must be finite numbers")
	}

	pos := in.Position.Round()
	switch in.ElementType {
	case grid.ElementDot:
		dot, err := s.store.GetDot(ctx, userID, in.ElementID)
		if err != nil {
			return candidate{}, err
		}
		return candidate{
			input:     in,
			footprint: grid.Footprint{X: pos.X, Y: pos.Y, Radius: grid.DotRadius},
			scope:     scopeKey{elementType: grid.ElementDot, parent: dotParent(dot)},
		}, nil
	case grid.ElementWheel:
		wheel, err := s.store.GetWheel(ctx, userID, in.ElementID)
		if err != nil {
			return candidate{}, err
		}
		return candidate{
			input:     in,
			footprint: grid.Footprint{X: pos.X, Y: pos.Y, Radius: wheel.EffectiveRadius()},
			scope:     scopeKey{elementType: grid.ElementWheel, parent: refParent("chakra", wheel.ChakraID)},
		}, nil
	default:
		chakra, err := s.store.GetChakra(ctx, userID, in.ElementID)
		if err != nil {
			return candidate{}, err
		}
		return candidate{
			input:     in,
			footprint: grid.Footprint{X: pos.X, Y: pos.Y, Radius: chakra.EffectiveRadius()},
			scope:     scopeKey{elementType: grid.ElementChakra},
		}, nil
	}
}

// checkAgainstPersisted validates a candidate footprint against every
// positioned element sharing its scope, skipping elements whose keys appear
// in exclude (the batch members override their own persisted positions).
func (s *PositionService) checkAgainstPersisted(ctx context.Context, userID string, cand candidate, exclude map[string]bool) error {
	padding := s.padding()

	fail := func(otherID string) error {
		observability.CollisionsDetected.Inc()
		return pkgerrors.NewCollision(fmt.Sprintf(
			"%s %s overlaps positioned %s %s",
			cand.input.ElementType, cand.input.ElementID, cand.scope.elementType, otherID))
	}

	switch cand.scope.elementType {
	case grid.ElementDot:
		dots, err := s.store.ListDots(ctx, userID, ports.DotFilter{})
		if err != nil {
			return err
		}
		for _, d := range dots {
			if exclude[candidateKey(grid.ElementDot, d.ID)] || dotParent(d) != cand.scope.parent {
				continue
			}
			if fp, placed := d.Footprint(); placed && grid.Overlaps(cand.footprint, fp, padding) {
				return fail(d.ID)
			}
		}
	case grid.ElementWheel:
		wheels, err := s.store.ListWheels(ctx, userID, ports.WheelFilter{})
		if err != nil {
			return err
		}
		for _, w := range wheels {
			if exclude[candidateKey(grid.ElementWheel, w.ID)] || refParent("chakra", w.ChakraID) != cand.scope.parent {
				continue
			}
			if fp, placed := w.Footprint(); placed && grid.Overlaps(cand.footprint, fp, padding) {
				return fail(w.ID)
			}
		}
	case grid.ElementChakra:
		chakras, err := s.store.ListChakras(ctx, userID, ports.ChakraFilter{})
		if err != nil {
			return err
		}
		for _, c := range chakras {
			if exclude[candidateKey(grid.ElementChakra, c.ID)] {
				continue
			}
			if fp, placed := c.Footprint(); placed && grid.Overlaps(cand.footprint, fp, padding) {
				return fail(c.ID)
			}
		}
	}
	return nil
}

func dotParent(d *grid.Dot) string {
	if d.WheelID != nil {
		return "wheel:" + *d.WheelID
	}
	return refParent("chakra", d.ChakraID)
}

func refParent(kind string, id *string) string {
	if id == nil {
		return ""
	}
	return kind + ":" + *id
}

func (s *PositionService) publish(ctx context.Context, userID, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, userID, eventType, payload); err != nil {
		s.logger.Warn("Failed to publish position event",
			zap.String("userID", userID),
			zap.String("eventType", eventType),
			zap.Error(err),
		)
	}
}
