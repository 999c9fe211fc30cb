// Package metrics wraps the Prometheus collectors exported by routecore.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps every Prometheus collector routecore exports.
type Registry struct {
	Connections gaugeVec
	Subscriptions counterVec
	Resource    resourceGauges
}

type gaugeVec struct {
	ActiveConnections   prometheus.Gauge
	ActiveSubscriptions prometheus.Gauge
}

type counterVec struct {
	SubscribeTotal     prometheus.Counter
	UnsubscribeTotal   prometheus.Counter
	PublishTotal       prometheus.Counter
	MatchTotal         prometheus.Counter
	DeliveredTotal     prometheus.Counter
	DroppedTotal       prometheus.Counter
	RateLimitedTotal   prometheus.Counter
	BridgeIngestTotal  prometheus.Counter
	AcceptErrorsTotal  prometheus.Counter
}

type resourceGauges struct {
	CPUPercent prometheus.Gauge
	RSSBytes   prometheus.Gauge
}

// NewRegistry creates the Prometheus collectors used by routecore.
func NewRegistry() *Registry {
	return &Registry{
		Connections: gaugeVec{
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_router_connections_active",
				Help: "Number of active WebSocket connections handled by routecore.",
			}),
			ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_router_subscriptions_active",
				Help: "Upper-bound count of currently active subscriptions in the routing index.",
			}),
		},
		Subscriptions: counterVec{
			SubscribeTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_subscribe_total",
				Help: "Total number of successful add_subscription calls.",
			}),
			UnsubscribeTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_unsubscribe_total",
				Help: "Total number of remove_subscription calls (including no-ops).",
			}),
			PublishTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_publish_total",
				Help: "Total number of publishes routed through get_subscriptions.",
			}),
			MatchTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_match_subscribers_total",
				Help: "Total number of subscribers returned across all get_subscriptions calls.",
			}),
			DeliveredTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_delivered_total",
				Help: "Total number of messages handed to a connection's send queue.",
			}),
			DroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_dropped_total",
				Help: "Total number of deliveries dropped because a send queue was full.",
			}),
			RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_rate_limited_total",
				Help: "Total number of frames rejected by the per-connection rate limiter.",
			}),
			BridgeIngestTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_bridge_ingest_total",
				Help: "Total number of messages ingested from the NATS/Kafka bridges.",
			}),
			AcceptErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_router_accept_errors_total",
				Help: "Total number of WebSocket accept/handshake errors.",
			}),
		},
		Resource: resourceGauges{
			CPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_router_process_cpu_percent",
				Help: "System-wide CPU utilization percentage, as sampled by the resource monitor.",
			}),
			RSSBytes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_router_process_rss_bytes",
				Help: "Bytes of memory obtained from the OS by the Go runtime (runtime.MemStats.Sys), as sampled by the resource monitor.",
			}),
		},
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
