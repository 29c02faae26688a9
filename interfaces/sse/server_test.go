package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// streamRequest builds an authenticated events request whose context is
// already cancelled, so the handler writes the connected frame and returns
// instead of blocking on the stream.
func streamRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	ctx := identity.WithUserID(req.Context(), userID)
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	return req.WithContext(ctx)
}

func TestServer_RequiresAuthentication(t *testing.T) {
	hub := startHub(t, time.Hour)
	server := NewServer(hub, zap.NewNop(), nil)

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ConnectedHandshake(t *testing.T) {
	hub := startHub(t, time.Hour)
	server := NewServer(hub, zap.NewNop(), nil)

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, streamRequest("u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: connected\n")
	assert.Contains(t, rec.Body.String(), `"userId":"u1"`)

	// The handler unregisters its connection on the way out.
	waitForConnections(t, hub, "u1", 0)
}

func TestServer_ConnectionCapIsReadPerRequest(t *testing.T) {
	hub := startHub(t, time.Hour)

	limit := 1
	server := NewServer(hub, zap.NewNop(), func() int { return limit })

	existing := NewClient("u1")
	hub.Register(existing)
	waitForConnections(t, hub, "u1", 1)

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, streamRequest("u1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Raising the limit takes effect on the next request, no restart needed.
	limit = 2
	rec = httptest.NewRecorder()
	server.HandleEvents(rec, streamRequest("u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: connected\n")

	hub.Unregister(existing)
}
