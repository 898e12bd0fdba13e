package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/soyeahso/supportline/internal/connector"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, text string) connector.Frame {
	t.Helper()
	f, err := connector.NewEvent(connector.EventReceiveMessage, connector.IncomingMessage{ID: "m1", Text: text, From: "Rui"}, 1)
	require.NoError(t, err)
	return f
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewSessionRegistry(logging.Nop(), nil)
	s := newPollSession()

	r.Add(s)
	assert.Equal(t, 1, r.Count())
	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Equal(t, connector.TransportPolling, got.Transport())

	r.Remove(s.ID())
	r.Remove(s.ID())
	r.Remove("unknown")
	assert.Zero(t, r.Count())
	assert.ErrorIs(t, s.Send(testFrame(t, "late")), ErrSessionClosed)
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewSessionRegistry(logging.Nop(), nil)
	a, b, closed := newPollSession(), newPollSession(), newPollSession()
	r.Add(a)
	r.Add(b)
	r.Add(closed)
	closed.Close()

	assert.Equal(t, 2, r.Broadcast(testFrame(t, "Check-in moved to 4pm")))

	frames, err := a.drain(context.Background(), time.Millisecond)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	var msg connector.IncomingMessage
	require.NoError(t, frames[0].DecodePayload(&msg))
	assert.Equal(t, "Check-in moved to 4pm", msg.Text)
}

func TestRegistryReap(t *testing.T) {
	r := NewSessionRegistry(logging.Nop(), nil)
	idle, active := newPollSession(), newPollSession()
	r.Add(idle)
	r.Add(active)

	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(2 * time.Millisecond)
	active.touch()

	assert.Equal(t, 1, r.Reap(cutoff))
	_, ok := r.Get(active.ID())
	assert.True(t, ok)
	_, ok = r.Get(idle.ID())
	assert.False(t, ok)
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewSessionRegistry(logging.Nop(), nil)
	for range 3 {
		r.Add(newPollSession())
	}
	r.CloseAll()
	assert.Zero(t, r.Count())
}

func TestPollSessionDrain(t *testing.T) {
	s := newPollSession()

	frames, err := s.drain(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, frames)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Send(testFrame(t, "hello"))
	}()
	frames, err = s.drain(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Len(t, frames, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.drain(ctx, time.Second)
	assert.Error(t, err)

	s.Close()
	_, err = s.drain(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestGreeter(t *testing.T) {
	g := &Greeter{}
	ctx := context.Background()

	replies := g.Reply(ctx, "s1", connector.OutgoingMessage{Text: "hi", User: "Ana"})
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Hi Ana, this is Support")
	assert.Empty(t, g.Reply(ctx, "s1", connector.OutgoingMessage{Text: "again", User: "Ana"}))

	replies = g.Reply(ctx, "s2", connector.OutgoingMessage{Text: "hi"})
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Hi there")

	g.Forget("s1")
	assert.Len(t, g.Reply(ctx, "s1", connector.OutgoingMessage{Text: "back", User: "Ana"}), 1)
}
