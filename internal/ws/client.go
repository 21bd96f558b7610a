// Package ws wraps a gorilla websocket connection with the buffered send
// channel and single-writer pump the rest of the server relies on.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mistchat/relay-backend/internal/models"
)

const (
	// writeWait bounds how long one frame write may take before the pump
	// gives up on the peer.
	writeWait = 10 * time.Second

	// closeGrace bounds how long Close waits for the pump to flush queued
	// frames. Kept well under writeWait so a stalled peer cannot pin the
	// handler goroutine for a full frame deadline after detach.
	closeGrace = time.Second
)

// Client is a single live connection. The relay handler owns its lifetime;
// the registry only holds it as a send target while attached.
type Client struct {
	ID uuid.UUID

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
	pumpDone  chan struct{}
}

func NewClient(conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ID:       uuid.New(),
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
}

// WritePump drains the send buffer onto the socket. gorilla allows one
// concurrent writer per connection, so all outbound frames go through here.
// Runs until Close is called or a write fails.
func (c *Client) WritePump() {
	defer close(c.pumpDone)
	for {
		select {
		case payload := <-c.send:
			if !c.write(payload) {
				return
			}
		case <-c.done:
			// Flush whatever was queued before the close.
			for {
				select {
				case payload := <-c.send:
					if !c.write(payload) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Client) write(payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload) == nil
}

// Send queues payload for delivery. It never blocks: false means the client
// is closed or its buffer is full, and the payload is dropped.
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// SendEvent queues a success or error event for this client only.
func (c *Client) SendEvent(eventType, message string) bool {
	payload, err := json.Marshal(models.Event{Type: eventType, Message: message})
	if err != nil {
		return false
	}
	return c.Send(payload)
}

// ReadMessage blocks for the next inbound frame. Closing the connection,
// locally or by the peer, unblocks it with an error.
func (c *Client) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// Close stops the write pump after letting it flush queued frames, then
// closes the socket. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		select {
		case <-c.pumpDone:
		case <-time.After(closeGrace):
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
