package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gymgate/access-router/internal/protocol"
)

// DefaultSendBuffer is the outbound queue length of a client.
const DefaultSendBuffer = 32

// ClientType distinguishes operator dashboards from card readers.
type ClientType string

const (
	Dashboard ClientType = "dashboard"
	Device    ClientType = "device"
)

// Client is one authenticated connection. Its scope is fixed at handshake.
type Client struct {
	ID          string
	Type        ClientType
	OperatorID  int64 // 0 when super-scoped
	Super       bool
	Location    protocol.Location
	ConnectedAt time.Time

	send      chan []byte
	closer    func()
	closeOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSendBuffer sets the outbound queue length.
func WithSendBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.send = make(chan []byte, n)
		}
	}
}

// WithCloser sets the function Close calls to tear the connection down.
func WithCloser(fn func()) ClientOption {
	return func(c *Client) { c.closer = fn }
}

// NewClient creates a client with a fresh connection ID.
func NewClient(typ ClientType, operatorID int64, super bool, location protocol.Location, opts ...ClientOption) *Client {
	c := &Client{
		ID:          uuid.New().String(),
		Type:        typ,
		OperatorID:  operatorID,
		Super:       super,
		Location:    location,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan []byte, DefaultSendBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outbound is drained by the connection's write pump.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Enqueue queues a frame without blocking. It reports false when the queue
// is full and the frame was dropped.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Reply queues v, encoded as JSON, for this client only.
func (c *Client) Reply(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	if !c.Enqueue(frame) {
		return ErrQueueFull
	}
	return nil
}

// Close tears the connection down once. It is a no-op without a closer.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closer()
		}
	})
}

// Info is a point-in-time view of a client.
type Info struct {
	ID          string    `json:"id"`
	ClientType  string    `json:"client_type"`
	AdminID     *int64    `json:"admin_id"`
	Super       bool      `json:"is_super_admin"`
	Location    string    `json:"location,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (c *Client) info() Info {
	return Info{
		ID:          c.ID,
		ClientType:  string(c.Type),
		AdminID:     protocol.OperatorRef(c.OperatorID),
		Super:       c.Super,
		Location:    string(c.Location),
		ConnectedAt: c.ConnectedAt,
	}
}
