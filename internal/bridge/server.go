// Package bridge is a development primary bridge: it speaks the visitor
// protocol over websocket and long-polling so the widget can be exercised
// without the production messaging service.
package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/connector"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/metrics"
)

const (
	maxFrameBytes  = 64 * 1024
	maxPollWait    = 25 * time.Second
	pollSessionTTL = time.Minute
	reapInterval   = 15 * time.Second
)

// Server is the development bridge HTTP + websocket server.
type Server struct {
	cfg       config.ServerConfig
	log       *logging.Logger
	sessions  *SessionRegistry
	hooks     *hooks.Manager
	metrics   *metrics.Metrics
	responder Responder
	eventSeq  atomic.Int64

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
	ready      chan string
}

// ServerOption configures the bridge server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithMetrics exposes m on /metrics and records session counters.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithResponder replaces the default greeting responder. nil disables auto replies.
func WithResponder(r Responder) ServerOption {
	return func(s *Server) { s.responder = r }
}

// New creates a bridge server.
func New(cfg config.ServerConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log.Sub("bridge"),
		responder: &Greeter{AgentName: cfg.AgentName},
		ready:     make(chan string, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = NewSessionRegistry(s.log.Sub("sessions"), s.metrics)
	return s
}

// checkWebSocketOrigin allows non-browser clients and configured origins.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *SessionRegistry { return s.sessions }

// Ready yields the listen address once Start is serving.
func (s *Server) Ready() <-chan string { return s.ready }

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: maxPollWait + 5*time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, visitor messages travel in cleartext")
	}

	s.startedAt = time.Now()
	listenAddr := ln.Addr().String()
	s.log.Info().Str("addr", listenAddr).Str("bind", s.cfg.Bind).Msg("bridge server ready")
	s.hooks.Emit(ctx, hooks.EventBridgeStart, map[string]any{"addr": listenAddr})
	s.ready <- listenAddr

	go s.reapLoop(ctx)
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down bridge server")
		s.hooks.Emit(context.Background(), hooks.EventBridgeStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.sessions.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Reap(time.Now().Add(-pollSessionTTL)); n > 0 {
				s.log.Debug().Int("sessions", n).Msg("reaped idle poll sessions")
			}
		}
	}
}

// handleWebSocket upgrades the request and reads visitor frames until the socket closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sock.SetReadLimit(maxFrameBytes)

	sess := newWSSession(sock)
	s.sessions.Add(sess)
	defer s.endSession(sess.ID())

	for {
		f, err := sess.readFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("sid", sess.ID()).Msg("visitor closed connection")
			} else {
				s.log.Debug().Err(err).Str("sid", sess.ID()).Msg("read error")
			}
			return
		}
		s.receive(r.Context(), sess, f)
	}
}

func (s *Server) endSession(id string) {
	s.sessions.Remove(id)
	if g, ok := s.responder.(*Greeter); ok {
		g.Forget(id)
	}
}

// receive handles one inbound visitor frame.
func (s *Server) receive(ctx context.Context, sess Session, f connector.Frame) {
	s.metrics.Frame("in")
	if f.Type != connector.FrameTypeEvent || f.Event != connector.EventSendMessage {
		s.log.Debug().Str("type", f.Type).Str("event", f.Event).Msg("ignoring frame")
		return
	}
	var msg connector.OutgoingMessage
	if err := f.DecodePayload(&msg); err != nil {
		s.log.Warn().Err(err).Str("sid", sess.ID()).Msg("malformed send_message")
		return
	}
	s.log.Info().Str("sid", sess.ID()).Str("user", msg.User).Str("email", msg.Email).Str("text", msg.Text).Msg("visitor message")

	if s.responder == nil {
		return
	}
	for _, text := range s.responder.Reply(ctx, sess.ID(), msg) {
		if err := s.deliver(sess, text, s.agentName()); err != nil {
			s.log.Warn().Err(err).Str("sid", sess.ID()).Msg("auto reply failed")
		}
	}
}

// deliver sends a receive_message frame to one session.
func (s *Server) deliver(sess Session, text, from string) error {
	f, err := s.agentFrame(text, from)
	if err != nil {
		return err
	}
	if err := sess.Send(f); err != nil {
		return err
	}
	s.metrics.Frame("out")
	return nil
}

func (s *Server) agentFrame(text, from string) (connector.Frame, error) {
	return connector.NewEvent(connector.EventReceiveMessage, connector.IncomingMessage{
		ID:   uuid.NewString(),
		Text: text,
		From: from,
	}, s.eventSeq.Add(1))
}

func (s *Server) agentName() string {
	if s.cfg.AgentName == "" {
		return "Support"
	}
	return s.cfg.AgentName
}
