// Package events defines the mutation events broadcast to a user's live
// connections over the change bus.
package events

import (
	"time"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
)

// Source identifies this service on external event buses.
const Source = "dotspark.grid"

// Event names as delivered on the push stream.
const (
	EventConnected             = "connected"
	EventHeartbeat             = "heartbeat"
	EventDotMapped             = "dot-mapped"
	EventWheelMapped           = "wheel-mapped"
	EventDotMappedChakra       = "dot-mapped-chakra"
	EventPositionUpdated       = "position-updated"
	EventPositionsBatchUpdated = "positions-batch-updated"
)

// Mapping actions carried in mapping event payloads.
const (
	ActionLinked   = "linked"
	ActionUnlinked = "unlinked"
)

// ConnectedPayload is sent once when a connection is established.
type ConnectedPayload struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// HeartbeatPayload is sent periodically so clients can detect dead
// connections.
type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// DotMappedPayload describes a dot-to-wheel link change.
type DotMappedPayload struct {
	Action    string    `json:"action"`
	Dot       *grid.Dot `json:"dot"`
	WheelID   *string   `json:"wheelId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WheelMappedPayload describes a wheel-to-chakra link change.
type WheelMappedPayload struct {
	Action    string      `json:"action"`
	Wheel     *grid.Wheel `json:"wheel"`
	ChakraID  *string     `json:"chakraId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// DotMappedChakraPayload describes a direct dot-to-chakra link change.
type DotMappedChakraPayload struct {
	Action    string    `json:"action"`
	Dot       *grid.Dot `json:"dot"`
	ChakraID  *string   `json:"chakraId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionUpdatedPayload describes a single element placement.
type PositionUpdatedPayload struct {
	ElementType grid.ElementType `json:"elementType"`
	ElementID   string           `json:"elementId"`
	Position    grid.Point       `json:"position"`
	Timestamp   time.Time        `json:"timestamp"`
}

// PositionsBatchUpdatedPayload describes an atomically committed set of
// placements.
type PositionsBatchUpdatedPayload struct {
	Positions []PositionUpdatedPayload `json:"positions"`
	Timestamp time.Time                `json:"timestamp"`
}
