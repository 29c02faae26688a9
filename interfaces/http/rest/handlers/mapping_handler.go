package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/services"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// MappingHandler serves the parent-link mutation endpoints.
type MappingHandler struct {
	service *services.MappingService
	logger  *zap.Logger
}

// NewMappingHandler creates a new mapping handler.
func NewMappingHandler(service *services.MappingService, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{service: service, logger: logger}
}

// MapDotToWheelRequest links a dot to a wheel; omitting wheelId unlinks.
type MapDotToWheelRequest struct {
	DotID   string  `json:"dotId" validate:"required"`
	WheelID *string `json:"wheelId,omitempty"`
}

// MapWheelToChakraRequest links a wheel to a chakra; omitting chakraId
// unlinks.
type MapWheelToChakraRequest struct {
	WheelID  string  `json:"wheelId" validate:"required"`
	ChakraID *string `json:"chakraId,omitempty"`
}

// MapDotToChakraRequest links a dot directly to a chakra; omitting chakraId
// unlinks.
type MapDotToChakraRequest struct {
	DotID    string  `json:"dotId" validate:"required"`
	ChakraID *string `json:"chakraId,omitempty"`
}

// MapDotToWheel handles POST /map/dot-to-wheel.
func (h *MappingHandler) MapDotToWheel(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req MapDotToWheelRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.service.MapDotToWheel(r.Context(), userID, req.DotID, req.WheelID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessMessage(w, result.Message, result.Dot)
}

// MapWheelToChakra handles POST /map/wheel-to-chakra.
func (h *MappingHandler) MapWheelToChakra(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req MapWheelToChakraRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.service.MapWheelToChakra(r.Context(), userID, req.WheelID, req.ChakraID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessMessage(w, result.Message, result.Wheel)
}

// MapDotToChakra handles POST /map/dot-to-chakra.
func (h *MappingHandler) MapDotToChakra(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req MapDotToChakraRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.service.MapDotToChakra(r.Context(), userID, req.DotID, req.ChakraID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessMessage(w, result.Message, result.Dot)
}
