package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/services"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// PositionHandler serves the placement endpoints.
type PositionHandler struct {
	service *services.PositionService
	logger  *zap.Logger
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(service *services.PositionService, logger *zap.Logger) *PositionHandler {
	return &PositionHandler{service: service, logger: logger}
}

// PointRequest carries candidate coordinates.
type PointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionRequest is one requested placement.
type PositionRequest struct {
	ElementType string        `json:"elementType" validate:"required,oneof=dot wheel chakra"`
	ElementID   string        `json:"elementId" validate:"required"`
	Position    *PointRequest `json:"position" validate:"required"`
}

func (p PositionRequest) toInput() services.PositionInput {
	return services.PositionInput{
		ElementType: grid.ElementType(p.ElementType),
		ElementID:   p.ElementID,
		Position:    grid.Point{X: p.Position.X, Y: p.Position.Y},
	}
}

// SavePositionRequest places a single element. Collision validation defaults
// to on.
type SavePositionRequest struct {
	PositionRequest
	ValidateCollision *bool `json:"validateCollision,omitempty"`
}

// BatchSavePositionsRequest places a set of elements atomically.
type BatchSavePositionsRequest struct {
	Positions          []PositionRequest `json:"positions" validate:"required,min=1,dive"`
	ValidateCollisions *bool             `json:"validateCollisions,omitempty"`
}

// SavePosition handles POST /position/save.
func (h *PositionHandler) SavePosition(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req SavePositionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	validateCollision := req.ValidateCollision == nil || *req.ValidateCollision
	payload, err := h.service.SavePosition(r.Context(), userID, req.toInput(), validateCollision)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessMessage(w, "position saved", payload)
}

// SavePositions handles POST /position/batch-save.
func (h *PositionHandler) SavePositions(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req BatchSavePositionsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	inputs := make([]services.PositionInput, 0, len(req.Positions))
	for _, p := range req.Positions {
		inputs = append(inputs, p.toInput())
	}

	validateCollisions := req.ValidateCollisions == nil || *req.ValidateCollisions
	payload, err := h.service.SavePositions(r.Context(), userID, inputs, validateCollisions)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessMessage(w, "positions saved", payload)
}
