package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportline/internal/connector"
)

var ErrSessionClosed = errors.New("bridge session closed")

// Session is one visitor connection, over either transport.
type Session interface {
	ID() string
	Transport() string
	ConnectedAt() time.Time
	LastSeen() time.Time
	Send(f connector.Frame) error
	Close() error
}

// wsSession is a websocket-backed session. Writes are serialized.
type wsSession struct {
	id          string
	sock        *websocket.Conn
	connectedAt time.Time

	mu     sync.Mutex
	closed bool
}

func newWSSession(sock *websocket.Conn) *wsSession {
	return &wsSession{id: uuid.NewString(), sock: sock, connectedAt: time.Now()}
}

func (s *wsSession) ID() string             { return s.id }
func (s *wsSession) Transport() string      { return connector.TransportWebSocket }
func (s *wsSession) ConnectedAt() time.Time { return s.connectedAt }

// LastSeen is always now; an open socket is live.
func (s *wsSession) LastSeen() time.Time { return time.Now() }

func (s *wsSession) Send(f connector.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.sock.WriteJSON(f)
}

func (s *wsSession) readFrame() (connector.Frame, error) {
	var f connector.Frame
	err := s.sock.ReadJSON(&f)
	return f, err
}

func (s *wsSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sock.Close()
}

// pollSession buffers outbound frames until the visitor polls for them.
type pollSession struct {
	id          string
	connectedAt time.Time

	mu       sync.Mutex
	queue    []connector.Frame
	notify   chan struct{}
	lastSeen time.Time
	closed   bool
}

func newPollSession() *pollSession {
	now := time.Now()
	return &pollSession{
		id:          uuid.NewString(),
		connectedAt: now,
		lastSeen:    now,
		notify:      make(chan struct{}),
	}
}

func (s *pollSession) ID() string             { return s.id }
func (s *pollSession) Transport() string      { return connector.TransportPolling }
func (s *pollSession) ConnectedAt() time.Time { return s.connectedAt }

func (s *pollSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *pollSession) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *pollSession) Send(f connector.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.queue = append(s.queue, f)
	close(s.notify)
	s.notify = make(chan struct{})
	return nil
}

// drain returns queued frames, waiting up to wait for the first one.
// An empty slice means the wait elapsed.
func (s *pollSession) drain(ctx context.Context, wait time.Duration) ([]connector.Frame, error) {
	s.touch()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}
		if len(s.queue) > 0 {
			out := s.queue
			s.queue = nil
			s.mu.Unlock()
			return out, nil
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			return []connector.Frame{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *pollSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.notify)
	return nil
}
