package ratelimit

import (
	"testing"

	"github.com/odin-mesh/routecore/internal/config"
)

func TestConnectionAllowsWithinBurst(t *testing.T) {
	cfg := config.RateLimitConfig{
		SubscribeRatePerSecond: 1,
		SubscribeBurst:         3,
		PublishRatePerSecond:   1,
		PublishBurst:           2,
	}
	c := NewConnection(cfg)

	for i := 0; i < 3; i++ {
		if !c.AllowSubscribe() {
			t.Fatalf("expected subscribe %d to be allowed within burst", i)
		}
	}
	if c.AllowSubscribe() {
		t.Fatal("expected subscribe beyond burst to be rejected")
	}
}

func TestConnectionSubscribeAndPublishAreIndependent(t *testing.T) {
	cfg := config.RateLimitConfig{
		SubscribeRatePerSecond: 1,
		SubscribeBurst:         1,
		PublishRatePerSecond:   1,
		PublishBurst:           1,
	}
	c := NewConnection(cfg)

	if !c.AllowSubscribe() {
		t.Fatal("expected first subscribe to be allowed")
	}
	if c.AllowSubscribe() {
		t.Fatal("expected second subscribe to be rejected")
	}
	if !c.AllowPublish() {
		t.Fatal("publish bucket should be unaffected by subscribe exhaustion")
	}
}
