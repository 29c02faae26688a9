package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// GridHandler serves the read side of the hierarchy: filtered dot, wheel,
// and chakra listings.
type GridHandler struct {
	store  ports.HierarchyStore
	logger *zap.Logger
}

// NewGridHandler creates a new grid read handler.
func NewGridHandler(store ports.HierarchyStore, logger *zap.Logger) *GridHandler {
	return &GridHandler{store: store, logger: logger}
}

// ListDots handles GET /dots.
func (h *GridHandler) ListDots(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	filter := ports.DotFilter{
		Limit:  queryInt(r, "limit", defaultListLimit),
		Offset: queryInt(r, "offset", 0),
	}
	// wheelId=none and unlinked=true are two spellings of the same
	// predicate.
	switch wheelID := r.URL.Query().Get("wheelId"); wheelID {
	case "":
	case "none", "null":
		filter.Unlinked = true
	default:
		filter.WheelID = &wheelID
	}
	if queryBool(r, "unlinked") {
		filter.Unlinked = true
	}
	if chakraID := r.URL.Query().Get("chakraId"); chakraID != "" {
		filter.ChakraID = &chakraID
	}

	dots, err := h.store.ListDots(r.Context(), userID, filter)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessList(w, dots, len(dots))
}

// ListWheels handles GET /wheels.
func (h *GridHandler) ListWheels(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	filter := ports.WheelFilter{
		IncludeDots: queryBool(r, "includeDots"),
		Limit:       queryInt(r, "limit", defaultListLimit),
		Offset:      queryInt(r, "offset", 0),
	}
	switch chakraID := r.URL.Query().Get("chakraId"); chakraID {
	case "":
	case "none", "null":
		filter.Unlinked = true
	default:
		filter.ChakraID = &chakraID
	}
	if queryBool(r, "unlinked") {
		filter.Unlinked = true
	}

	wheels, err := h.store.ListWheels(r.Context(), userID, filter)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessList(w, wheels, len(wheels))
}

// ListChakras handles GET /chakras.
func (h *GridHandler) ListChakras(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	filter := ports.ChakraFilter{
		IncludeWheels: queryBool(r, "includeWheels"),
		IncludeDots:   queryBool(r, "includeDots"),
		Limit:         queryInt(r, "limit", defaultListLimit),
		Offset:        queryInt(r, "offset", 0),
	}

	chakras, err := h.store.ListChakras(r.Context(), userID, filter)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.SuccessList(w, chakras, len(chakras))
}
