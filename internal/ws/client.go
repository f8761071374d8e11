package ws

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultSendBufferSize is the number of frames a client may have queued
// beyond the replayed history before it is considered too slow.
const DefaultSendBufferSize = 256

var (
	// ErrClientClosed is returned when sending to a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrSendBufferFull is returned when a client cannot keep up. The client
	// is closed as a side effect.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client represents a WebSocket viewer connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new client with room for bufferSize queued frames.
func NewClient(conn *websocket.Conn, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBufferSize
	}
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, bufferSize),
	}
}

// ID returns the unique client identifier.
func (c *Client) ID() string {
	return c.id
}

// Send queues a frame to be written to the client.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.closeLocked()
		return ErrSendBufferFull
	}
}

// Close closes the client's send queue. The write pump then closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}
