package sse

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/events"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// DefaultMaxConnectionsPerUser caps how many push streams one user may hold
// open at once.
const DefaultMaxConnectionsPerUser = 10

// Server handles the long-lived push-stream endpoint. The connection cap is
// read per request so a config reload applies to new streams immediately.
type Server struct {
	hub                   *Hub
	logger                *zap.Logger
	maxConnectionsPerUser func() int
}

// NewServer creates the push-stream handler. A nil cap falls back to the
// default.
func NewServer(hub *Hub, logger *zap.Logger, maxConnectionsPerUser func() int) *Server {
	if maxConnectionsPerUser == nil {
		maxConnectionsPerUser = func() int { return DefaultMaxConnectionsPerUser }
	}
	return &Server{
		hub:                   hub,
		logger:                logger,
		maxConnectionsPerUser: maxConnectionsPerUser,
	}
}

// HandleEvents upgrades the request to a Server-Sent Events stream, registers
// the connection with the hub, and relays frames until the client goes away.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if s.hub.ConnectionCount(userID) >= s.maxConnectionsPerUser() {
		s.logger.Warn("Connection limit exceeded for user",
			zap.String("userID", userID),
			zap.Int("currentConnections", s.hub.ConnectionCount(userID)),
		)
		api.Error(w, http.StatusTooManyRequests, "connection limit exceeded")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	frame, err := formatFrame(events.EventConnected, events.ConnectedPayload{
		Message: "Connected to grid updates",
		UserID:  userID,
	})
	if err == nil {
		w.Write(frame)
		flusher.Flush()
	}

	client := NewClient(userID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-client.Messages():
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
