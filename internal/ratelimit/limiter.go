// Package ratelimit throttles per-connection subscribe/publish traffic so
// a single flooding client cannot stall the envelope's writer mutex for
// every other connection.
package ratelimit

import (
	"golang.org/x/time/rate"

	"github.com/odin-mesh/routecore/internal/config"
)

// Connection holds the two token buckets guarding one WebSocket
// connection: one for SUBSCRIBE/UNSUBSCRIBE frames, one for PUBLISH
// frames.
type Connection struct {
	subscribe *rate.Limiter
	publish   *rate.Limiter
}

// NewConnection builds a per-connection limiter pair from cfg.
func NewConnection(cfg config.RateLimitConfig) *Connection {
	return &Connection{
		subscribe: rate.NewLimiter(rate.Limit(cfg.SubscribeRatePerSecond), cfg.SubscribeBurst),
		publish:   rate.NewLimiter(rate.Limit(cfg.PublishRatePerSecond), cfg.PublishBurst),
	}
}

// AllowSubscribe reports whether a SUBSCRIBE/UNSUBSCRIBE frame may proceed.
func (c *Connection) AllowSubscribe() bool { return c.subscribe.Allow() }

// AllowPublish reports whether a PUBLISH frame may proceed.
func (c *Connection) AllowPublish() bool { return c.publish.Allow() }
