package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/soyeahso/supportline/internal/logging"
	"github.com/stretchr/testify/assert"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_EmitOrderAndData(t *testing.T) {
	m := testManager()

	var order []string
	var got map[string]any
	m.On(EventFallbackTriggered, "first", func(_ context.Context, p Payload) error {
		order = append(order, "first")
		got = p.Data
		assert.Equal(t, EventFallbackTriggered, p.Event)
		return nil
	})
	m.On(EventFallbackTriggered, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventFallbackTriggered, map[string]any{"page": "/dashboard"})
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "/dashboard", got["page"])
}

func TestManager_FailingHandlersDoNotStopOthers(t *testing.T) {
	m := testManager()

	var reached int
	m.On(EventChatStarted, "errors", func(_ context.Context, _ Payload) error {
		return errors.New("analytics endpoint down")
	})
	m.On(EventChatStarted, "panics", func(_ context.Context, _ Payload) error {
		panic("boom")
	})
	m.On(EventChatStarted, "last", func(_ context.Context, _ Payload) error {
		reached++
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), EventChatStarted, nil) })
	assert.Equal(t, 1, reached)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventChatEnded, "remove-me", func(_ context.Context, _ Payload) error { removed++; return nil })
	m.On(EventChatEnded, "keep-me", func(_ context.Context, _ Payload) error { kept++; return nil })

	m.Off(EventChatEnded, "remove-me")
	m.Emit(context.Background(), EventChatEnded, nil)

	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, m.Count(EventChatEnded))
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() { m.Emit(context.Background(), EventChatStarted, nil) })
	assert.NotPanics(t, func() {
		m.On(EventChatStarted, "log", func(context.Context, Payload) error { return nil })
	})
	assert.NotPanics(t, func() { m.Off(EventChatStarted, "log") })
	assert.Zero(t, m.Count(EventChatStarted))
}
