// Package config loads routecore's runtime configuration from environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the routecore service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains network-level settings for the WebSocket listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	WSPath       string        `mapstructure:"ws_path"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SessionConfig controls the connection hub's sharding and queue sizes.
type SessionConfig struct {
	ShardCount      int `mapstructure:"shard_count"`
	MaxConnections  int `mapstructure:"max_connections"`
	SendChannelSize int `mapstructure:"send_channel_size"`
}

// RateLimitConfig controls the per-connection token buckets guarding the
// envelope's write path from subscribe/publish floods.
type RateLimitConfig struct {
	SubscribeRatePerSecond float64 `mapstructure:"subscribe_rate_per_second"`
	SubscribeBurst         int     `mapstructure:"subscribe_burst"`
	PublishRatePerSecond   float64 `mapstructure:"publish_rate_per_second"`
	PublishBurst           int     `mapstructure:"publish_burst"`
}

// ResourceConfig controls the system resource monitor's sampling interval
// and shed thresholds.
type ResourceConfig struct {
	SampleInterval  time.Duration `mapstructure:"sample_interval"`
	MaxCPUPercent   float64       `mapstructure:"max_cpu_percent"`
	MaxRSSBytes     uint64        `mapstructure:"max_rss_bytes"`
}

// NATSConfig controls the optional inter-node publish bridge.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// KafkaConfig controls the optional Kafka/Redpanda ingest bridge.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	GroupID     string   `mapstructure:"group_id"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// MetricsConfig controls the Prometheus diagnostics endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables and an optional
// "odin-router.{yaml,toml,json,...}" config file.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("session.shard_count", 64)
	v.SetDefault("session.max_connections", 100000)
	v.SetDefault("session.send_channel_size", 256)

	v.SetDefault("rate_limit.subscribe_rate_per_second", 50.0)
	v.SetDefault("rate_limit.subscribe_burst", 100)
	v.SetDefault("rate_limit.publish_rate_per_second", 200.0)
	v.SetDefault("rate_limit.publish_burst", 400)

	v.SetDefault("resource.sample_interval", 5*time.Second)
	v.SetDefault("resource.max_cpu_percent", 90.0)
	v.SetDefault("resource.max_rss_bytes", uint64(2<<30))

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "odin.routecore")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "odin-router-events")
	v.SetDefault("kafka.group_id", "odin-router")
	v.SetDefault("kafka.topic_prefix", "bridge")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("odin-router")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ODIN_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig() // config file is optional

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Session.ShardCount <= 0 {
		cfg.Session.ShardCount = 64
	}
	if cfg.Session.SendChannelSize <= 0 {
		cfg.Session.SendChannelSize = 256
	}

	return cfg, nil
}
