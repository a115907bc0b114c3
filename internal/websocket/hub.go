// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package websocket maintains live dashboard connections. The hub tracks
// subscribers; the notification publisher delivers analyzed events to
// them, and a periodic broadcast pushes pipeline metrics.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
)

// Message types pushed to subscribers.
const (
	MessageTypeNewEvent = "new_event"
	MessageTypeMetrics  = "metrics"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope for every websocket payload.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Serve runs the hub until the context is cancelled, then closes every
// client. Implements suture.Service.
//
// Lifecycle events are drained before broadcasts so client state is
// consistent when a message fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SubscriberCount.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SubscriberCount.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := sortedClients(h.clients)
	for _, client := range clients {
		client.close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.SubscriberCount.Set(0)

	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
	_ = ctx
}

// broadcastToClients fans a message out in stable client order. A client
// whose buffer is full is dropped; its write pump notices the done
// signal and closes the connection.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range sortedClients(h.clients) {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		client.close()
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.SubscriberCount.Set(float64(len(h.clients)))
	}
}

// BroadcastMetrics pushes a pipeline gauge snapshot to all clients.
func (h *Hub) BroadcastMetrics(data interface{}) {
	select {
	case h.broadcast <- Message{Type: MessageTypeMetrics, Data: data}:
	default:
		logging.Warn().Msg("broadcast channel full, dropping metrics message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns a stable-ordered snapshot of connected clients for the
// notification publisher to fan out to.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedClients(h.clients)
}

func sortedClients(set map[*Client]bool) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}
