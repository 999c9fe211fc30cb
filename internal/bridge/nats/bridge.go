// Package nats bridges locally published messages to a NATS subject so
// other routecore instances can observe them, and feeds remote NATS
// traffic back in as deliveries to local subscribers.
package nats

import (
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/envelope"
	"github.com/odin-mesh/routecore/internal/metrics"
	"github.com/odin-mesh/routecore/internal/session"
	"github.com/odin-mesh/routecore/internal/topic"
)

// Bridge republishes local messages to NATS under cfg.SubjectPrefix and
// delivers inbound NATS messages on that prefix to matching local
// subscribers.
type Bridge struct {
	cfg     config.NATSConfig
	logger  *zap.Logger
	metrics *metrics.Registry
	conn    *natsgo.Conn
	sub     *natsgo.Subscription
}

// Connect dials NATS using cfg and registers connect/disconnect/reconnect
// event logging.
func Connect(cfg config.NATSConfig, logger *zap.Logger, metricsRegistry *metrics.Registry) (*Bridge, error) {
	b := &Bridge{cfg: cfg, logger: logger, metrics: metricsRegistry}

	opts := []natsgo.Option{
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ConnectHandler(b.onConnect),
		natsgo.DisconnectErrHandler(b.onDisconnect),
		natsgo.ReconnectHandler(b.onReconnect),
		natsgo.ErrorHandler(b.onError),
	}

	conn, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	b.conn = conn
	return b, nil
}

func (b *Bridge) onConnect(conn *natsgo.Conn) {
	b.logger.Info("nats connected", zap.String("url", conn.ConnectedUrl()))
}

func (b *Bridge) onDisconnect(_ *natsgo.Conn, err error) {
	if err != nil {
		b.logger.Warn("nats disconnected", zap.Error(err))
		return
	}
	b.logger.Info("nats disconnected")
}

func (b *Bridge) onReconnect(conn *natsgo.Conn) {
	b.logger.Info("nats reconnected", zap.String("url", conn.ConnectedUrl()))
}

func (b *Bridge) onError(_ *natsgo.Conn, _ *natsgo.Subscription, err error) {
	b.logger.Error("nats error", zap.Error(err))
}

// PublishLocal republishes a locally received message on the bridge
// subject so peer instances see it.
func (b *Bridge) PublishLocal(topicName string, payload []byte) error {
	subject := b.cfg.SubjectPrefix + "." + subjectSafe(topicName)
	return b.conn.Publish(subject, payload)
}

// Subscribe feeds every NATS message under cfg.SubjectPrefix into hub via
// env's get_subscriptions match, exactly as a local publish would be
// fanned out.
func (b *Bridge) Subscribe(env *envelope.Envelope, hub *session.Hub) error {
	subject := b.cfg.SubjectPrefix + ".>"
	sub, err := b.conn.Subscribe(subject, func(msg *natsgo.Msg) {
		b.handleRemote(env, hub, msg)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	b.sub = sub
	return nil
}

func (b *Bridge) handleRemote(env *envelope.Envelope, hub *session.Hub, msg *natsgo.Msg) {
	topicName := subjectToTopic(b.cfg.SubjectPrefix, msg.Subject)
	name, err := topic.ParseName(topicName)
	if err != nil {
		b.logger.Debug("dropping malformed bridged topic", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	subscribers := env.GetSubscriptions(name)
	if b.metrics != nil {
		b.metrics.Subscriptions.BridgeIngestTotal.Inc()
	}
	hub.DeliverAll(subscribers, msg.Data)
}

// Close drains the bridge subscription and closes the NATS connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}

func subjectSafe(topicName string) string {
	out := make([]rune, 0, len(topicName))
	for _, r := range topicName {
		if r == '/' {
			out = append(out, '.')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func subjectToTopic(prefix, subject string) string {
	trimmed := subject[len(prefix)+1:]
	out := make([]rune, 0, len(trimmed))
	for _, r := range trimmed {
		if r == '.' {
			out = append(out, '/')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
