// Package services implements the mapping, positioning, and stats operations
// on top of the hierarchy store.
package services

import (
	"context"
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

// MappingResult reports the outcome of a mapping call.
type MappingResult struct {
	Action  string      `json:"action"`
	Message string      `json:"message"`
	Dot     *grid.Dot   `json:"dot,omitempty"`
	Wheel   *grid.Wheel `json:"wheel,omitempty"`
}

// MappingService is the only writer of parent-reference fields. It verifies
// existence and ownership of both sides of a link before mutating, and emits
// exactly one change-bus event per successful mutation.
type MappingService struct {
	store     ports.HierarchyStore
	publisher ports.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewMappingService creates a new mapping service.
func NewMappingService(store ports.HierarchyStore, publisher ports.EventPublisher, logger *zap.Logger) *MappingService {
	return &MappingService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("mapping-service"),
	}
}

// MapDotToWheel links the dot to the wheel, or clears the link when wheelID
// is nil. Linking to a wheel clears any direct chakra link, the two are
// mutually exclusive.
func (s *MappingService) MapDotToWheel(ctx context.Context, userID, dotID string, wheelID *string) (*MappingResult, error) {
	ctx, span := s.tracer.Start(ctx, "MappingService.MapDotToWheel",
		trace.WithAttributes(attribute.String("dot.id", dotID)))
	defer span.End()

	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}

	dot, err := s.store.GetDot(ctx, userID, dotID)
	if err != nil {
		return nil, err
	}

	if wheelID != nil {
		if _, err := s.store.GetWheel(ctx, userID, *wheelID); err != nil {
			return nil, err
		}
		if dot.WheelID != nil && *dot.WheelID == *wheelID {
			return &MappingResult{
				Action:  events.ActionLinked,
				Message: "Dot is already mapped to this wheel",
				Dot:     dot,
			}, nil
		}
		dot.WheelID = wheelID
		dot.ChakraID = nil
	} else {
		dot.WheelID = nil
	}
	dot.UpdatedAt = time.Now()

	if err := s.store.SaveDot(ctx, dot); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to save dot mapping")
	}

	action, message := events.ActionUnlinked, "Dot unmapped successfully"
	if wheelID != nil {
		action, message = events.ActionLinked, "Dot mapped to wheel successfully"
	}
	observability.MappingOperations.WithLabelValues("dot-to-wheel", action).Inc()

	s.publish(ctx, userID, events.EventDotMapped, events.DotMappedPayload{
		Action:    action,
		Dot:       dot,
		WheelID:   wheelID,
		Timestamp: time.Now(),
	})

	return &MappingResult{Action: action, Message: message, Dot: dot}, nil
}

// MapWheelToChakra links the wheel to the chakra, or clears the link when
// chakraID is nil.
func (s *MappingService) MapWheelToChakra(ctx context.Context, userID, wheelID string, chakraID *string) (*MappingResult, error) {
	ctx, span := s.tracer.Start(ctx, "MappingService.MapWheelToChakra",
		trace.WithAttributes(attribute.String("wheel.id", wheelID)))
	defer span.End()

	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}

	wheel, err := s.store.GetWheel(ctx, userID, wheelID)
	if err != nil {
		return nil, err
	}

	if chakraID != nil {
		if _, err := s.store.GetChakra(ctx, userID, *chakraID); err != nil {
			return nil, err
		}
		if wheel.ChakraID != nil && *wheel.ChakraID == *chakraID {
			return &MappingResult{
				Action:  events.ActionLinked,
				Message: "Wheel is already mapped to this chakra",
				Wheel:   wheel,
			}, nil
		}
	}
	wheel.ChakraID = chakraID
	wheel.UpdatedAt = time.Now()

	if err := s.store.SaveWheel(ctx, wheel); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to save wheel mapping")
	}

	action, message := events.ActionUnlinked, "Wheel unmapped successfully"
	if chakraID != nil {
		action, message = events.ActionLinked, "Wheel mapped to chakra successfully"
	}
	observability.MappingOperations.WithLabelValues("wheel-to-chakra", action).Inc()

	s.publish(ctx, userID, events.EventWheelMapped, events.WheelMappedPayload{
		Action:    action,
		Wheel:     wheel,
		ChakraID:  chakraID,
		Timestamp: time.Now(),
	})

	return &MappingResult{Action: action, Message: message, Wheel: wheel}, nil
}

// MapDotToChakra links the dot directly to the chakra, bypassing wheels, or
// clears the link when chakraID is nil. Linking to a chakra clears any wheel
// link.
func (s *MappingService) MapDotToChakra(ctx context.Context, userID, dotID string, chakraID *string) (*MappingResult, error) {
	ctx, span := s.tracer.Start(ctx, "MappingService.MapDotToChakra",
		trace.WithAttributes(attribute.String("dot.id", dotID)))
	defer span.End()

	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}

	dot, err := s.store.GetDot(ctx, userID, dotID)
	if err != nil {
		return nil, err
	}

	if chakraID != nil {
		if _, err := s.store.GetChakra(ctx, userID, *chakraID); err != nil {
			return nil, err
		}
		if dot.ChakraID != nil && *dot.ChakraID == *chakraID {
			return &MappingResult{
				Action:  events.ActionLinked,
				Message: "Dot is already mapped to this chakra",
				Dot:     dot,
			}, nil
		}
		dot.ChakraID = chakraID
		dot.WheelID = nil
	} else {
		dot.ChakraID = nil
	}
	dot.UpdatedAt = time.Now()

	if err := s.store.SaveDot(ctx, dot); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to save dot mapping")
	}

	action, message := events.ActionUnlinked, "Dot unmapped from chakra successfully"
	if chakraID != nil {
		action, message = events.ActionLinked, "Dot mapped directly to chakra successfully"
	}
	observability.MappingOperations.WithLabelValues("dot-to-chakra", action).Inc()

	s.publish(ctx, userID, events.EventDotMappedChakra, events.DotMappedChakraPayload{
		Action:    action,
		Dot:       dot,
		ChakraID:  chakraID,
		Timestamp: time.Now(),
	})

	return &MappingResult{Action: action, Message: message, Dot: dot}, nil
}

// publish hands the event to the change bus. Delivery failures only affect
// the connection they occur on and never the mutation path.
func (s *MappingService) publish(ctx context.Context, userID, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, userID, eventType, payload); err != nil {
		s.logger.Warn("Failed to publish mapping event",
			zap.String("userID", userID),
			zap.String("eventType", eventType),
			zap.Error(err),
		)
	}
}
