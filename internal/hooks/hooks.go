// Package hooks is the analytics event bus for widget lifecycle events.
package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/supportline/internal/logging"
)

// Event names emitted by the support widget and the development bridge.
const (
	EventChatStarted       = "chat_started"
	EventChatEnded         = "chat_ended"
	EventFallbackTriggered = "fallback_triggered"
	EventDeepLinkOpened    = "deeplink_opened"
	EventWidgetLoaded      = "widget_loaded"
	EventWidgetDismissed   = "widget_dismissed"
	EventIdentityUpdated   = "identity_updated"
	EventBridgeStart       = "bridge_start"
	EventBridgeStop        = "bridge_stop"
)

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. Returned errors are logged only.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name    string
	handler Handler
}

// Manager keeps hook registrations and dispatches events. A nil *Manager
// is valid and drops every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a named handler for the given event.
func (m *Manager) On(event, name string, handler Handler) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

// Emit runs every handler for event synchronously in registration order.
// A failing or panicking handler never stops the ones after it.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		m.run(ctx, h, payload)
	}
}

func (m *Manager) run(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("event", p.Event).Str("handler", h.name).Msg("hook handler panicked")
		}
	}()
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", h.name).Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}
