package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/services"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// StatsHandler serves the mapping-coverage snapshot.
type StatsHandler struct {
	service *services.StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(service *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{service: service, logger: logger}
}

// GetStats handles GET /stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	stats, err := h.service.Get(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}
