// Package session tracks live WebSocket connections and delivers payloads
// to the specific subscribers a publish matched, rather than broadcasting
// to every connection.
package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/metrics"
	"github.com/odin-mesh/routecore/internal/ratelimit"
	"github.com/odin-mesh/routecore/internal/subscription"
)

// Connection is one live WebSocket session, registered under the
// ClientID the trie uses to key its subscriptions.
type Connection struct {
	ID        subscription.ClientID
	Conn      net.Conn
	SendQueue chan []byte
	Limiter   *ratelimit.Connection
}

type shard struct {
	clients sync.Map // map[subscription.ClientID]*Connection
	count   int32
}

// Hub is a sharded registry of live connections, keyed by ClientID.
type Hub struct {
	cfg            config.SessionConfig
	rateLimitCfg   config.RateLimitConfig
	shards         []shard
	nextConnection uint64
	metrics        *metrics.Registry
}

// NewHub builds a Hub from cfg.
func NewHub(cfg config.SessionConfig, rateLimitCfg config.RateLimitConfig, metricsRegistry *metrics.Registry) *Hub {
	shardCount := cfg.ShardCount
	if shardCount <= 0 {
		shardCount = 64
	}
	return &Hub{
		cfg:          cfg,
		rateLimitCfg: rateLimitCfg,
		shards:       make([]shard, shardCount),
		metrics:      metricsRegistry,
	}
}

// Register mints a new ClientID for conn and tracks it.
func (h *Hub) Register(conn net.Conn) *Connection {
	id := subscription.ClientID(atomic.AddUint64(&h.nextConnection, 1))
	s := h.pickShard(id)

	c := &Connection{
		ID:        id,
		Conn:      conn,
		SendQueue: make(chan []byte, h.cfg.SendChannelSize),
		Limiter:   ratelimit.NewConnection(h.rateLimitCfg),
	}

	s.clients.Store(id, c)
	atomic.AddInt32(&s.count, 1)
	if h.metrics != nil {
		h.metrics.Connections.ActiveConnections.Inc()
	}
	return c
}

// Unregister stops tracking c and closes its send queue.
func (h *Hub) Unregister(c *Connection) {
	if c == nil {
		return
	}
	s := h.pickShard(c.ID)
	if _, ok := s.clients.LoadAndDelete(c.ID); ok {
		atomic.AddInt32(&s.count, -1)
		if h.metrics != nil {
			h.metrics.Connections.ActiveConnections.Dec()
		}
		close(c.SendQueue)
	}
}

// Deliver enqueues payload onto clientID's send queue. It reports whether
// the client was connected and accepted the payload; a full queue drops
// the message to preserve latency rather than blocking the publisher.
func (h *Hub) Deliver(clientID subscription.ClientID, payload []byte) bool {
	s := h.pickShard(clientID)
	value, ok := s.clients.Load(clientID)
	if !ok {
		return false
	}
	conn := value.(*Connection)
	select {
	case conn.SendQueue <- payload:
		if h.metrics != nil {
			h.metrics.Subscriptions.DeliveredTotal.Inc()
		}
		return true
	default:
		if h.metrics != nil {
			h.metrics.Subscriptions.DroppedTotal.Inc()
		}
		return false
	}
}

// DeliverAll delivers payload to every subscriber returned by a match,
// skipping clients that are not (or no longer) connected to this hub
// instance.
func (h *Hub) DeliverAll(subscribers []subscription.Subscriber, payload []byte) {
	for _, sub := range subscribers {
		h.Deliver(sub.ClientID, payload)
	}
}

// ClientCount returns the total number of tracked connections.
func (h *Hub) ClientCount() int {
	var total int32
	for idx := range h.shards {
		total += atomic.LoadInt32(&h.shards[idx].count)
	}
	return int(total)
}

func (h *Hub) pickShard(id subscription.ClientID) *shard {
	return &h.shards[int(id)%len(h.shards)]
}

// Shutdown unregisters every tracked connection.
func (h *Hub) Shutdown(ctx context.Context) {
	for idx := range h.shards {
		s := &h.shards[idx]
		s.clients.Range(func(_, value any) bool {
			h.Unregister(value.(*Connection))
			return true
		})
	}
}
