// Package failover decides when to abandon the primary bridge and hands the
// visitor over to the secondary live-chat widget.
package failover

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/connector"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/metrics"
)

// ErrStopped is returned by engine methods once Run has returned.
var ErrStopped = errors.New("failover engine stopped")

// State is the engine state for one widget session.
type State int

const (
	StateIdle State = iota
	StateTrying
	StateLive
	StateFailedOver
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTrying:
		return "trying"
	case StateLive:
		return "live"
	case StateFailedOver:
		return "failedOver"
	default:
		return "unknown"
	}
}

// Primary is the connection the engine drives. *connector.Connector implements it.
type Primary interface {
	Connect(ctx context.Context, endpoint string, opts connector.Options) bool
	Disconnect()
	Handle(ev connector.Event) bool
	Events() <-chan connector.Event
	Send(text string, sender domain.Identity) (domain.ChatMessage, error)
	AppendSystem(text string) domain.ChatMessage
	Messages() []domain.ChatMessage
	State() domain.ConnState
	Attempts() int
	ResetAttempts()
}

// Secondary is the fallback channel. *widget.Adapter implements it.
type Secondary interface {
	IsAvailable() bool
	Activate(id domain.Identity, attrs domain.ContextAttributes) domain.Activation
	UpdateAttributes(id domain.Identity, attrs domain.ContextAttributes)
	Hide()
}

// Config tunes the engine.
type Config struct {
	Endpoint       string
	Connect        connector.Options
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	WelcomeMessage string
	FailoverNotice string
}

// FromConfig builds the engine config from the loaded application config.
func FromConfig(cfg config.Config) Config {
	return Config{
		Endpoint: cfg.Bridge.URL,
		Connect: connector.Options{
			Timeout:    cfg.Bridge.ConnectTimeout(),
			Transports: cfg.Bridge.Transports,
			PollWait:   cfg.Bridge.PollWait(),
		},
		MaxAttempts:    cfg.Failover.MaxAttempts,
		InitialDelay:   time.Duration(cfg.Failover.Backoff.InitialMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Failover.Backoff.MaxMs) * time.Millisecond,
		Multiplier:     cfg.Failover.Backoff.Multiplier,
		WelcomeMessage: cfg.Failover.WelcomeMessage,
		FailoverNotice: cfg.Failover.FailoverNotice,
	}
}

// Snapshot is a consistent view of the engine taken on the loop.
type Snapshot struct {
	State      State
	ConnState  domain.ConnState
	Attempts   int
	PanelOpen  bool
	Status     domain.Status
	Identity   domain.Identity
	Context    domain.ContextAttributes
	Activation domain.Activation
	Messages   []domain.ChatMessage
}

// Engine serializes every transition of the widget session on the
// goroutine running Run. Other methods post to that goroutine and wait.
type Engine struct {
	cfg       Config
	primary   Primary
	secondary Secondary
	log       *logging.Logger
	hooks     *hooks.Manager
	metrics   *metrics.Metrics

	actions chan func()
	stopped chan struct{}

	// Owned by the loop.
	runCtx     context.Context
	state      State
	panelOpen  bool
	identity   domain.Identity
	attrs      domain.ContextAttributes
	activation domain.Activation
	backoff    *backoff.ExponentialBackOff
	retry      *time.Timer
	retryToken uint64
}

// New creates an engine. hooks and metrics may be nil.
func New(cfg Config, primary Primary, secondary Secondary, log *logging.Logger, hm *hooks.Manager, m *metrics.Metrics) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = config.DefaultMaxAttempts
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = config.DefaultWelcomeMessage
	}
	if cfg.FailoverNotice == "" {
		cfg.FailoverNotice = config.DefaultFailoverNotice
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &Engine{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		log:       log.Sub("failover"),
		hooks:     hm,
		metrics:   m,
		actions:   make(chan func()),
		stopped:   make(chan struct{}),
		runCtx:    context.Background(),
		identity:  domain.Anonymous(),
		backoff:   b,
	}
}

// Run processes user actions and connector events until ctx is done. It
// must be called exactly once.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.stopped)
	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.actions:
			fn()
		case ev := <-e.primary.Events():
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) shutdown() {
	e.cancelRetry()
	e.primary.Disconnect()
}

// do runs fn on the loop and waits for it.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case e.actions <- func() { fn(); close(done) }:
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	}
}

// post queues fn on the loop without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.actions <- fn:
	case <-e.stopped:
	}
}

// Open opens the panel. It starts a fresh session unless one is already
// trying or live.
func (e *Engine) Open(attrs domain.ContextAttributes) error {
	return e.do(func() {
		e.attrs = attrs
		e.panelOpen = true
		if e.state == StateTrying || e.state == StateLive {
			return
		}
		e.startSession()
	})
}

// Reconnect is a user-initiated retry: it drops the current connection,
// zeroes the attempt counter and starts trying again.
func (e *Engine) Reconnect() error {
	return e.do(func() {
		e.cancelRetry()
		e.primary.Disconnect()
		e.panelOpen = true
		e.startSession()
	})
}

// Close closes the panel from any state.
func (e *Engine) Close() error {
	return e.do(func() {
		wasActive := e.state == StateTrying || e.state == StateLive
		e.cancelRetry()
		e.primary.Disconnect()
		e.primary.ResetAttempts()
		e.backoff.Reset()
		e.state = StateIdle
		e.panelOpen = false
		if wasActive {
			e.hooks.Emit(e.runCtx, hooks.EventChatEnded, map[string]any{"page": e.attrs.Page})
		}
		e.log.Debug().Msg("panel closed")
	})
}

// Send sends a visitor message over the live primary connection.
func (e *Engine) Send(text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, errors.New("empty message")
	}
	var id domain.Identity
	if err := e.do(func() { id = e.identity }); err != nil {
		return domain.ChatMessage{}, err
	}
	// The write happens off the loop; the connector rejects it unless connected.
	return e.primary.Send(text, id)
}

// SetIdentity records the current visitor and re-propagates attributes to
// the secondary channel when it is the active one.
func (e *Engine) SetIdentity(id domain.Identity) error {
	return e.do(func() {
		e.identity = id
		if e.state == StateFailedOver && e.secondary.IsAvailable() {
			e.secondary.UpdateAttributes(id, e.attrs)
		}
	})
}

// HideSecondary hides the secondary widget if it is loaded.
func (e *Engine) HideSecondary() error {
	return e.do(e.secondary.Hide)
}

// Status returns the connection indicator for the visitor.
func (e *Engine) Status() domain.Status {
	var s domain.Status
	if err := e.do(func() { s = e.status() }); err != nil {
		return domain.StatusUnavailable
	}
	return s
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := e.do(func() {
		snap = Snapshot{
			State:      e.state,
			ConnState:  e.primary.State(),
			Attempts:   e.primary.Attempts(),
			PanelOpen:  e.panelOpen,
			Status:     e.status(),
			Identity:   e.identity,
			Context:    e.attrs,
			Activation: e.activation,
			Messages:   e.primary.Messages(),
		}
	})
	return snap, err
}

func (e *Engine) status() domain.Status {
	switch e.state {
	case StateLive:
		return domain.StatusConnected
	case StateFailedOver:
		return domain.StatusUnavailable
	default:
		return domain.StatusConnecting
	}
}

func (e *Engine) startSession() {
	if e.state == StateFailedOver {
		e.secondary.Hide()
	}
	e.cancelRetry()
	e.primary.ResetAttempts()
	e.backoff.Reset()
	e.activation = domain.Activation{}
	e.state = StateTrying
	e.hooks.Emit(e.runCtx, hooks.EventChatStarted, map[string]any{
		"page":        e.attrs.Page,
		"inquiryType": e.attrs.InquiryType,
	})
	e.connect()
}

func (e *Engine) connect() {
	e.primary.Connect(e.runCtx, e.cfg.Endpoint, e.cfg.Connect)
}

func (e *Engine) handleEvent(ev connector.Event) {
	if !e.primary.Handle(ev) {
		return
	}

	switch ev.Kind {
	case connector.EventConnected:
		if e.state != StateTrying {
			return
		}
		e.cancelRetry()
		e.primary.ResetAttempts()
		e.backoff.Reset()
		e.state = StateLive
		e.primary.AppendSystem(Welcome(e.cfg.WelcomeMessage, e.identity.DisplayName))

	case connector.EventConnectError:
		if e.state != StateTrying {
			return
		}
		if e.primary.Attempts() >= e.cfg.MaxAttempts {
			e.failover()
			return
		}
		e.scheduleRetry()

	case connector.EventDisconnected:
		if e.state != StateLive {
			return
		}
		if !e.panelOpen {
			e.state = StateIdle
			return
		}
		e.state = StateTrying
		e.scheduleRetry()
	}
}

// failover switches to the secondary channel. It runs at most once per session.
func (e *Engine) failover() {
	if e.state == StateFailedOver {
		return
	}
	e.cancelRetry()
	attempts := e.primary.Attempts()
	e.primary.Disconnect()
	e.primary.ResetAttempts()
	e.state = StateFailedOver
	e.primary.AppendSystem(e.cfg.FailoverNotice)

	act := e.secondary.Activate(e.identity, e.attrs)
	e.activation = act
	e.panelOpen = false

	e.metrics.Failover()
	e.log.Warn().Int("attempts", attempts).Str("channel", string(act.Channel)).Msg("primary bridge unavailable, failed over")
	e.hooks.Emit(e.runCtx, hooks.EventFallbackTriggered, map[string]any{
		"attempts": attempts,
		"channel":  string(act.Channel),
		"page":     e.attrs.Page,
	})
	if act.Channel == domain.ChannelDeepLink {
		e.metrics.DeepLinkFallback()
		e.hooks.Emit(e.runCtx, hooks.EventDeepLinkOpened, map[string]any{"url": act.URL})
	}
}

func (e *Engine) scheduleRetry() {
	delay := e.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = e.cfg.MaxDelay
	}
	if delay <= 0 {
		e.connect()
		return
	}

	e.cancelRetry()
	token := e.retryToken
	e.log.Debug().Dur("delay", delay).Int("attempt", e.primary.Attempts()).Msg("scheduling reconnect")
	e.retry = time.AfterFunc(delay, func() {
		e.post(func() {
			if token == e.retryToken && e.state == StateTrying {
				e.retry = nil
				e.connect()
			}
		})
	})
}

func (e *Engine) cancelRetry() {
	e.retryToken++
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
}

// Welcome renders the welcome template for a display name.
func Welcome(template, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(template, "{name}", name)
}
