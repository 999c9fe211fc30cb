// Package kafka ingests records from a Kafka/Redpanda topic and re-publishes
// them into the routing envelope, using the record key, behind the
// configured topic prefix when one is set, as the publish topic.
package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/envelope"
	"github.com/odin-mesh/routecore/internal/metrics"
	"github.com/odin-mesh/routecore/internal/session"
	"github.com/odin-mesh/routecore/internal/topic"
)

// Bridge wraps a franz-go client consuming cfg.Topic and fanning each
// record out to matching local subscribers.
type Bridge struct {
	cfg     config.KafkaConfig
	client  *kgo.Client
	logger  *zap.Logger
	metrics *metrics.Registry

	env *envelope.Envelope
	hub *session.Hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Bridge consuming cfg.Topic under cfg.GroupID.
func New(cfg config.KafkaConfig, logger *zap.Logger, metricsRegistry *metrics.Registry, env *envelope.Envelope, hub *session.Hub) (*Bridge, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka bridge: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka bridge: topic is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info("kafka partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			logger.Info("kafka partitions revoked", zap.Any("partitions", revoked))
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kafka bridge: new client: %w", err)
	}

	return &Bridge{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: metricsRegistry,
		env:     env,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the consume loop in its own goroutine.
func (b *Bridge) Start() {
	b.logger.Info("starting kafka bridge", zap.String("topic", b.cfg.Topic))
	b.wg.Add(1)
	go b.consumeLoop()
}

// Stop cancels the consume loop, waits for it to drain, and closes the
// client.
func (b *Bridge) Stop() {
	b.cancel()
	b.wg.Wait()
	b.client.Close()
}

func (b *Bridge) consumeLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
			fetches := b.client.PollFetches(b.ctx)
			if b.ctx.Err() != nil {
				return
			}

			for _, err := range fetches.Errors() {
				b.logger.Error("kafka fetch error", zap.String("topic", err.Topic), zap.Int32("partition", err.Partition), zap.Error(err.Err))
			}

			fetches.EachRecord(b.processRecord)
		}
	}
}

func (b *Bridge) processRecord(record *kgo.Record) {
	topicName := string(record.Key)
	if b.cfg.TopicPrefix != "" {
		topicName = b.cfg.TopicPrefix + "/" + topicName
	}

	name, err := topic.ParseName(topicName)
	if err != nil {
		b.logger.Warn("dropping record with invalid topic key", zap.ByteString("key", record.Key), zap.Error(err))
		return
	}

	subscribers := b.env.GetSubscriptions(name)
	if b.metrics != nil {
		b.metrics.Subscriptions.BridgeIngestTotal.Inc()
	}
	b.hub.DeliverAll(subscribers, record.Value)
}
