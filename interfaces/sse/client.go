package sse

import "github.com/google/uuid"

const sendBufferSize = 256

// Client is one live push connection scoped to an authenticated user.
type Client struct {
	id     string
	userID string
	send   chan []byte
}

// NewClient creates a connection handle for the given user.
func NewClient(userID string) *Client {
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ID returns the unique connection id.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the owning user.
func (c *Client) UserID() string {
	return c.userID
}

// Messages exposes the outbound frame stream. The channel is closed when the
// hub deregisters the connection.
func (c *Client) Messages() <-chan []byte {
	return c.send
}
