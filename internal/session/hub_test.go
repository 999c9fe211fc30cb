package session

import (
	"net"
	"testing"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/subscription"
)

func newTestHub() *Hub {
	cfg := config.SessionConfig{ShardCount: 4, SendChannelSize: 4}
	rl := config.RateLimitConfig{
		SubscribeRatePerSecond: 100, SubscribeBurst: 100,
		PublishRatePerSecond: 100, PublishBurst: 100,
	}
	return NewHub(cfg, rl, nil)
}

func TestHubRegisterUnregister(t *testing.T) {
	h := newTestHub()
	server, client := net.Pipe()
	defer client.Close()

	conn := h.Register(server)
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", h.ClientCount())
	}

	h.Unregister(conn)
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unregister, got %d", h.ClientCount())
	}
}

func TestHubDeliverToConnectedClient(t *testing.T) {
	h := newTestHub()
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := h.Register(server)
	defer h.Unregister(conn)

	if !h.Deliver(conn.ID, []byte("payload")) {
		t.Fatal("expected delivery to a registered client to succeed")
	}

	select {
	case got := <-conn.SendQueue:
		if string(got) != "payload" {
			t.Fatalf("unexpected payload: %s", got)
		}
	default:
		t.Fatal("expected payload to be queued")
	}
}

func TestHubDeliverToUnknownClientFails(t *testing.T) {
	h := newTestHub()
	if h.Deliver(subscription.ClientID(9999), []byte("x")) {
		t.Fatal("expected delivery to unknown client to fail")
	}
}

func TestHubDeliverAllSkipsUnmatchedClients(t *testing.T) {
	h := newTestHub()
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := h.Register(server)
	defer h.Unregister(conn)

	subs := []subscription.Subscriber{
		{ClientID: conn.ID, QoS: subscription.Level0},
		{ClientID: subscription.ClientID(424242), QoS: subscription.Level0},
	}
	h.DeliverAll(subs, []byte("fanout"))

	select {
	case got := <-conn.SendQueue:
		if string(got) != "fanout" {
			t.Fatalf("unexpected payload: %s", got)
		}
	default:
		t.Fatal("expected payload to be queued for the matched client")
	}
}

func TestHubDeliverDropsWhenQueueFull(t *testing.T) {
	cfg := config.SessionConfig{ShardCount: 1, SendChannelSize: 1}
	rl := config.RateLimitConfig{SubscribeRatePerSecond: 1, SubscribeBurst: 1, PublishRatePerSecond: 1, PublishBurst: 1}
	h := NewHub(cfg, rl, nil)

	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := h.Register(server)
	defer h.Unregister(conn)

	if !h.Deliver(conn.ID, []byte("first")) {
		t.Fatal("expected first delivery to succeed")
	}
	if h.Deliver(conn.ID, []byte("second")) {
		t.Fatal("expected second delivery to drop once the queue is full")
	}
}
