package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport dials {base}/ws with gorilla/websocket.
type WebSocketTransport struct {
	Dialer *websocket.Dialer
}

func (t *WebSocketTransport) Name() string { return TransportWebSocket }

func (t *WebSocketTransport) Dial(ctx context.Context, endpoint string, _ Options) (Conn, error) {
	target, err := wsURL(endpoint)
	if err != nil {
		return nil, err
	}
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	sock, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}
	return &wsConn{sock: sock}, nil
}

type wsConn struct {
	sock *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) ReadFrame() (Frame, error) {
	_, msg, err := c.sock.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

func (c *wsConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	return c.sock.WriteJSON(f)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
