// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/argus-monitor/argus/internal/logging"
)

const (
	// writeWait bounds a single message write to the peer.
	writeWait = 10 * time.Second

	// defaultPingInterval and defaultPongTimeout define the liveness
	// contract: a ping every interval, and the peer must answer within
	// the timeout or the connection is considered dead.
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 5 * time.Second

	// maxMessageSize caps inbound frames. Clients only send control
	// messages, so this is generous.
	maxMessageSize = 64 * 1024
)

var clientIDCounter atomic.Uint64

// ErrClientClosed is returned by Deliver after the client has been
// removed from the hub.
var ErrClientClosed = errors.New("websocket client closed")

// Client is a middleman between a websocket connection and the hub.
type Client struct {
	id           uint64
	hub          *Hub
	conn         *websocket.Conn
	send         chan Message
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewClient wraps an upgraded connection. Zero ping settings fall back
// to the defaults (30s interval, 5s pong timeout).
func NewClient(hub *Hub, conn *websocket.Conn, pingInterval, pongTimeout time.Duration) *Client {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if pongTimeout <= 0 {
		pongTimeout = defaultPongTimeout
	}
	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		conn:         conn,
		send:         make(chan Message, 64),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

// close marks the client dead. The send channel is never closed: the
// publisher may hold a snapshot of clients and Deliver concurrently, so
// teardown is signalled through done instead.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ID identifies the client for notification records.
func (c *Client) ID() string {
	return fmt.Sprintf("ws-%d", c.id)
}

// Channel names the delivery channel for notification records.
func (c *Client) Channel() string {
	return "websocket"
}

// Deliver queues a message for the write pump. It fails with
// ErrClientClosed once the client has disconnected, or when the buffer
// stays full until the context expires; the publisher treats either as
// a delivery failure.
func (c *Client) Deliver(ctx context.Context, msg Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
	}
	select {
	case <-c.done:
		return ErrClientClosed
	case c.send <- msg:
		return nil
	case <-ctx.Done():
		return errors.New("subscriber send buffer full")
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump drains inbound frames. The peer is only expected to send
// pings and pongs; anything else is logged and ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	deadline := c.pingInterval + c.pongTimeout
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Err(err).Uint64("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		// App-level ping from browsers that cannot send control frames.
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump writes queued messages and keeps the connection alive with
// periodic pings. A pong must arrive within pongTimeout of each ping or
// the read deadline expires and the read pump tears the client down.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Err(err).Uint64("client_id", c.id).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
