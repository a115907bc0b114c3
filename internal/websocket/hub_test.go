// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package websocket

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub, cancel
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, _ := startHub(t)

	c1 := NewClient(hub, nil, 0, 0)
	c2 := NewClient(hub, nil, 0, 0)
	hub.Register <- c1
	hub.Register <- c2
	waitForCount(t, hub, 2)

	hub.Unregister <- c1
	waitForCount(t, hub, 1)

	select {
	case <-c1.done:
	case <-time.After(2 * time.Second):
		t.Error("unregistered client should be marked closed")
	}
}

func TestHubBroadcastMetrics(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil, 0, 0)
	hub.Register <- client
	waitForCount(t, hub, 1)

	hub.BroadcastMetrics(map[string]int{"queue_depth": 3})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeMetrics {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeMetrics)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	slow := NewClient(hub, nil, 0, 0)
	hub.Register <- slow
	waitForCount(t, hub, 1)

	// Fill the client buffer, then broadcast one more: the hub must
	// drop the client rather than block.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- Message{Type: MessageTypeMetrics}
	}
	hub.BroadcastMetrics(nil)
	waitForCount(t, hub, 0)
}

func TestClientDeliverTimesOut(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil, 0, 0)
	for i := 0; i < cap(client.send); i++ {
		client.send <- Message{Type: MessageTypeNewEvent}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.Deliver(ctx, Message{Type: MessageTypeNewEvent}); err == nil {
		t.Error("expected delivery failure on full buffer")
	}
}

func TestClientIDsAreUnique(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil, 0, 0)
	b := NewClient(hub, nil, 0, 0)
	if a.ID() == b.ID() {
		t.Errorf("client IDs collide: %s", a.ID())
	}
	if a.Channel() != "websocket" {
		t.Errorf("channel = %q", a.Channel())
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	client := NewClient(hub, nil, 0, 0)
	hub.Register <- client
	waitForCount(t, hub, 1)

	cancel()
	select {
	case <-client.done:
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed on shutdown")
	}
}

func TestDeliverAfterUnregisterFailsCleanly(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil, 0, 0)
	hub.Register <- client
	waitForCount(t, hub, 1)

	// The publisher fans out from a snapshot, so a client can disconnect
	// between the snapshot and the delivery. That must surface as an
	// error, never a panic.
	snapshot := hub.Clients()
	hub.Unregister <- client
	waitForCount(t, hub, 0)

	for _, sub := range snapshot {
		if err := sub.Deliver(context.Background(), Message{Type: MessageTypeNewEvent}); err == nil {
			t.Error("expected delivery to a closed client to fail")
		}
	}
}
