// Package ports declares the interfaces the application services depend on,
// implemented by the persistence and messaging infrastructure.
package ports

import (
	"context"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
)

// DotFilter scopes a dot listing. When Unlinked is set it takes precedence
// over WheelID/ChakraID: an unlinked dot carries neither a wheel nor a direct
// chakra link. The HTTP layer folds the legacy wheelId="none" spelling into
// Unlinked before the filter reaches the store.
type DotFilter struct {
	WheelID  *string
	ChakraID *string
	Unlinked bool
	Limit    int
	Offset   int
}

// WheelFilter scopes a wheel listing. Unlinked selects wheels without a
// chakra parent. IncludeDots hydrates each wheel's child dots.
type WheelFilter struct {
	ChakraID    *string
	Unlinked    bool
	IncludeDots bool
	Limit       int
	Offset      int
}

// ChakraFilter scopes a chakra listing. IncludeWheels hydrates child wheels;
// IncludeDots additionally hydrates dots, both wheel-bound and directly
// chakra-bound.
type ChakraFilter struct {
	IncludeWheels bool
	IncludeDots   bool
	Limit         int
	Offset        int
}

// PositionUpdate is one placement inside an atomic batch write.
type PositionUpdate struct {
	ElementType grid.ElementType
	ElementID   string
	Position    grid.Point
}

// HierarchyStore provides typed access to the user-owned three-tier
// hierarchy. Get operations return a NOT_FOUND error when the id does not
// resolve within the given user's records; list operations return empty
// slices, never errors, on no matches. Lists are ordered newest-first.
type HierarchyStore interface {
	GetDot(ctx context.Context, userID, dotID string) (*grid.Dot, error)
	GetWheel(ctx context.Context, userID, wheelID string) (*grid.Wheel, error)
	GetChakra(ctx context.Context, userID, chakraID string) (*grid.Chakra, error)

	SaveDot(ctx context.Context, dot *grid.Dot) error
	SaveWheel(ctx context.Context, wheel *grid.Wheel) error
	SaveChakra(ctx context.Context, chakra *grid.Chakra) error

	ListDots(ctx context.Context, userID string, filter DotFilter) ([]*grid.Dot, error)
	ListWheels(ctx context.Context, userID string, filter WheelFilter) ([]*grid.Wheel, error)
	ListChakras(ctx context.Context, userID string, filter ChakraFilter) ([]*grid.Chakra, error)

	// SavePositions applies every update or none. Each referenced element
	// must exist and belong to the user; a single failure rolls back the
	// whole set.
	SavePositions(ctx context.Context, userID string, updates []PositionUpdate) error
}

// EventPublisher pushes a mutation event to every live connection of a user.
// Implementations must never block the mutation path on slow consumers.
type EventPublisher interface {
	Publish(ctx context.Context, userID, eventType string, payload interface{}) error
}
