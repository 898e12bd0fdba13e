// Package connector manages the single realtime connection to the primary bridge.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/metrics"
)

// ErrNotConnected is returned by Send when the connection is not established.
var ErrNotConnected = errors.New("not connected to the support bridge")

const eventBuffer = 64

// EventKind discriminates connector events.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventConnectError
	EventMessageReceived
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnectError:
		return "connect_error"
	case EventMessageReceived:
		return "message_received"
	default:
		return "unknown"
	}
}

// Event is produced by background I/O and must be passed to Handle by the
// goroutine that owns the connector.
type Event struct {
	Kind       EventKind
	Generation uint64
	Transport  string
	Err        error
	Message    IncomingMessage

	conn Conn
}

// Connector owns the connection state, the attempt counter and the
// conversation of the current connection.
type Connector struct {
	log        *logging.Logger
	metrics    *metrics.Metrics
	transports map[string]Transport
	events     chan Event

	mu           sync.Mutex
	state        domain.ConnState
	attempts     int
	generation   uint64
	conn         Conn
	cancel       context.CancelFunc
	conversation *domain.Conversation
	seq          int64
}

// New creates a connector. With no transports it registers websocket and polling.
func New(log *logging.Logger, m *metrics.Metrics, transports ...Transport) *Connector {
	if len(transports) == 0 {
		transports = []Transport{&WebSocketTransport{}, &PollingTransport{}}
	}
	byName := make(map[string]Transport, len(transports))
	for _, t := range transports {
		byName[t.Name()] = t
	}
	return &Connector{
		log:          log,
		metrics:      m,
		transports:   byName,
		events:       make(chan Event, eventBuffer),
		state:        domain.ConnIdle,
		conversation: domain.NewConversation(),
	}
}

// Events delivers connection events in the order they were produced.
func (c *Connector) Events() <-chan Event { return c.events }

// Connect starts a connection attempt in the background. It is a no-op
// returning false while a connection is connecting or connected.
func (c *Connector) Connect(ctx context.Context, endpoint string, opts Options) bool {
	c.mu.Lock()
	if c.state == domain.ConnConnecting || c.state == domain.ConnConnected {
		c.mu.Unlock()
		return false
	}
	c.attempts++
	c.generation++
	gen := c.generation
	attempt := c.attempts
	c.state = domain.ConnConnecting
	if c.cancel != nil {
		c.cancel()
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.metrics.ConnectAttempt()
	c.log.Debug().Str("endpoint", endpoint).Int("attempt", attempt).Uint64("gen", gen).Msg("connecting")

	go c.run(attemptCtx, gen, endpoint, opts)
	return true
}

// run dials and then pumps frames from the connection until it ends.
func (c *Connector) run(ctx context.Context, gen uint64, endpoint string, opts Options) {
	conn, transport, err := negotiate(ctx, c.transports, endpoint, opts)
	if err != nil {
		c.post(ctx, Event{Kind: EventConnectError, Generation: gen, Err: err})
		return
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if !c.post(ctx, Event{Kind: EventConnected, Generation: gen, Transport: transport, conn: conn}) {
		conn.Close()
		return
	}

	for {
		f, err := conn.ReadFrame()
		if errors.Is(err, ErrMalformedFrame) {
			c.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		if err != nil {
			c.post(ctx, Event{Kind: EventDisconnected, Generation: gen, Transport: transport, Err: err})
			return
		}
		if f.Event != EventReceiveMessage {
			c.log.Debug().Str("event", f.Event).Msg("ignoring bridge event")
			continue
		}
		var in IncomingMessage
		if err := f.DecodePayload(&in); err != nil {
			c.log.Warn().Err(err).Msg("malformed receive_message payload")
			continue
		}
		c.post(ctx, Event{Kind: EventMessageReceived, Generation: gen, Transport: transport, Message: in})
	}
}

// post hands an event to the owner unless the attempt was cancelled.
func (c *Connector) post(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Handle applies an event to the connector state. It returns false, and
// changes nothing, for events of a superseded attempt.
func (c *Connector) Handle(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Generation != c.generation {
		if ev.conn != nil {
			ev.conn.Close()
		}
		c.log.Debug().Str("event", ev.Kind.String()).Uint64("gen", ev.Generation).Msg("dropping stale event")
		return false
	}

	switch ev.Kind {
	case EventConnected:
		if c.state != domain.ConnConnecting {
			if ev.conn != nil {
				ev.conn.Close()
			}
			return false
		}
		c.conn = ev.conn
		c.state = domain.ConnConnected
		c.conversation.Reset()
		c.log.Info().Str("transport", ev.Transport).Msg("connected to bridge")

	case EventConnectError:
		c.releaseLocked()
		c.state = domain.ConnFailed
		c.metrics.ConnectError()
		c.log.Warn().Err(ev.Err).Int("attempt", c.attempts).Msg("bridge connect failed")

	case EventDisconnected:
		c.releaseLocked()
		c.state = domain.ConnDisconnected
		c.conversation.Reset()
		c.log.Info().Err(ev.Err).Msg("bridge disconnected")

	case EventMessageReceived:
		if c.state != domain.ConnConnected {
			return false
		}
		c.conversation.Append(domain.OriginRemoteAgent, ev.Message.Text)
		c.metrics.MessageReceived()

	default:
		return false
	}
	return true
}

// Disconnect tears down any connection and invalidates in-flight attempts.
// It is always safe to call.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.releaseLocked()
	if c.state != domain.ConnDisconnected {
		c.log.Debug().Str("from", c.state.String()).Msg("disconnect")
	}
	c.state = domain.ConnDisconnected
	c.conversation.Reset()
}

func (c *Connector) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Send transmits a visitor message and echoes it into the conversation
// without waiting for an acknowledgement.
func (c *Connector) Send(text string, sender domain.Identity) (domain.ChatMessage, error) {
	c.mu.Lock()
	if c.state != domain.ConnConnected || c.conn == nil {
		c.mu.Unlock()
		return domain.ChatMessage{}, ErrNotConnected
	}
	c.seq++
	f, err := NewEvent(EventSendMessage, OutgoingMessage{
		Text:  text,
		User:  sender.DisplayName,
		Email: sender.Email,
	}, c.seq)
	conn, gen := c.conn, c.generation
	c.mu.Unlock()
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("encoding message: %w", err)
	}

	// c.mu is not held across the network write.
	if err := conn.WriteFrame(f); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("sending message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != domain.ConnConnected {
		return domain.ChatMessage{}, ErrNotConnected
	}
	c.metrics.MessageSent()
	return c.conversation.Append(domain.OriginUser, text), nil
}

// AppendSystem adds a system-origin message to the current conversation.
func (c *Connector) AppendSystem(text string) domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Append(domain.OriginSystem, text)
}

// Messages returns a copy of the current conversation.
func (c *Connector) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Messages()
}

func (c *Connector) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ResetAttempts zeroes the attempt counter.
func (c *Connector) ResetAttempts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
}
