// Package transport accepts WebSocket connections and translates a small
// JSON protocol (subscribe/unsubscribe/publish, one JSON object per
// WebSocket message) onto the routing envelope.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/envelope"
	"github.com/odin-mesh/routecore/internal/metrics"
	"github.com/odin-mesh/routecore/internal/session"
	"github.com/odin-mesh/routecore/internal/subscription"
	"github.com/odin-mesh/routecore/internal/sysmonitor"
	"github.com/odin-mesh/routecore/internal/topic"
)

// Server handles TCP listening and WebSocket upgrades for the routing
// service using gobwas/ws.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	hub      *session.Hub
	env      *envelope.Envelope
	metrics  *metrics.Registry
	monitor  *sysmonitor.Monitor
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer wires a Server from its collaborators.
func NewServer(cfg config.Config, logger *zap.Logger, hub *session.Hub, env *envelope.Envelope, metricsRegistry *metrics.Registry, monitor *sysmonitor.Monitor) *Server {
	return &Server{cfg: cfg, logger: logger, hub: hub, env: env, metrics: metricsRegistry, monitor: monitor}
}

// Start begins listening and accepting connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("transport already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("transport listening", zap.String("addr", addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener and waits for every connection goroutine to
// finish.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.Subscriptions.AcceptErrorsTotal.Inc()
			}
			s.logger.Error("accept error", zap.Error(err))
			return
		}

		if s.monitor != nil && s.monitor.ShouldShed() {
			s.logger.Warn("shedding connection: resource limits exceeded")
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConnection(parent context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		s.logger.Debug("set deadline", zap.Error(err))
	}

	if _, err := ws.Upgrade(conn); err != nil {
		if s.metrics != nil {
			s.metrics.Subscriptions.AcceptErrorsTotal.Inc()
		}
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	_ = conn.SetDeadline(time.Time{})

	registration := s.hub.Register(conn)
	defer s.hub.Unregister(registration)

	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(connCtx, registration, conn)
	}()

	s.readLoop(connCtx, registration, conn)
	cancel()
	<-done
}

func (s *Server) readLoop(ctx context.Context, conn *session.Connection, rw net.Conn) {
	reader := wsutil.NewReader(rw, ws.StateServerSide)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read frame error", zap.Error(err))
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			_ = wsutil.WriteServerMessage(rw, ws.OpClose, nil)
			return
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(rw, ws.OpPong, nil); err != nil {
				return
			}
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return
			}
			s.handleFrame(conn, payload)
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *session.Connection, rw net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-conn.SendQueue:
			if !ok {
				return
			}
			if err := wsutil.WriteServerMessage(rw, ws.OpBinary, payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(conn *session.Connection, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.sendError(conn, "malformed frame")
		return
	}

	switch f.Op {
	case opSubscribe:
		s.handleSubscribe(conn, f)
	case opUnsubscribe:
		s.handleUnsubscribe(conn, f)
	case opPublish:
		s.handlePublish(conn, f)
	default:
		s.sendError(conn, "unknown op")
	}
}

func (s *Server) handleSubscribe(conn *session.Connection, f frame) {
	if !conn.Limiter.AllowSubscribe() {
		if s.metrics != nil {
			s.metrics.Subscriptions.RateLimitedTotal.Inc()
		}
		s.sendError(conn, "rate limited")
		return
	}
	filter, err := parseFilter(f)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}
	s.env.AddSubscription(filter, conn.ID, subscription.QoS(f.QoS))
	if s.metrics != nil {
		s.metrics.Subscriptions.SubscribeTotal.Inc()
		s.metrics.Connections.ActiveSubscriptions.Set(float64(s.env.SubscriberCount()))
	}
}

func (s *Server) handleUnsubscribe(conn *session.Connection, f frame) {
	if !conn.Limiter.AllowSubscribe() {
		if s.metrics != nil {
			s.metrics.Subscriptions.RateLimitedTotal.Inc()
		}
		s.sendError(conn, "rate limited")
		return
	}
	filter, err := parseFilter(f)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}
	s.env.RemoveSubscription(filter, conn.ID)
	if s.metrics != nil {
		s.metrics.Subscriptions.UnsubscribeTotal.Inc()
		s.metrics.Connections.ActiveSubscriptions.Set(float64(s.env.SubscriberCount()))
	}
}

func (s *Server) handlePublish(conn *session.Connection, f frame) {
	if !conn.Limiter.AllowPublish() {
		if s.metrics != nil {
			s.metrics.Subscriptions.RateLimitedTotal.Inc()
		}
		s.sendError(conn, "rate limited")
		return
	}
	name, err := topic.ParseName(f.Topic)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}

	subscribers := s.env.GetSubscriptions(name)
	if s.metrics != nil {
		s.metrics.Subscriptions.PublishTotal.Inc()
		s.metrics.Subscriptions.MatchTotal.Add(float64(len(subscribers)))
	}
	s.hub.DeliverAll(subscribers, f.Payload)
}

func (s *Server) sendError(conn *session.Connection, reason string) {
	raw, err := json.Marshal(newErrorFrame(reason))
	if err != nil {
		return
	}
	select {
	case conn.SendQueue <- raw:
	default:
	}
}

func parseFilter(f frame) (topic.Filter, error) {
	raw := f.Topic
	if f.Group != "" {
		raw = topic.SharedPrefix + "/" + f.Group + "/" + f.Topic
	}
	return topic.ParseFilter(raw)
}

