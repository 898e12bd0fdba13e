package connector

import (
	"context"
	"errors"
	"sync"
)

// fakeTransport dials fakeConns, or fails with err when set.
type fakeTransport struct {
	name string

	mu    sync.Mutex
	err   error
	dials int
	conns []*fakeConn
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Dial(ctx context.Context, _ string, _ Options) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if t.err != nil {
		return nil, t.err
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type fakeConn struct {
	incoming chan Frame
	done     chan struct{}

	mu      sync.Mutex
	written []Frame
	closed  bool
	gate    chan struct{}
	waiting int
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan Frame, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f := <-c.incoming:
		return f, nil
	case <-c.done:
		return Frame{}, errors.New("closed")
	}
}

func (c *fakeConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	gate := c.gate
	if gate != nil {
		c.waiting++
	}
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.written = append(c.written, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.written...)
}

// holdWrites blocks WriteFrame until gate is closed.
func (c *fakeConn) holdWrites(gate chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = gate
}

func (c *fakeConn) heldWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}
