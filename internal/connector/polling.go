package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/soyeahso/supportline/internal/version"
)

// ErrSessionClosed is returned by a polling connection once the bridge has
// dropped its session.
var ErrSessionClosed = errors.New("poll session closed")

const (
	defaultPollWait  = 25 * time.Second
	pollWriteTimeout = 10 * time.Second
	pollCloseTimeout = 2 * time.Second
)

// PollingTransport emulates a bidirectional connection with HTTP long-polling.
type PollingTransport struct {
	// HTTPClient overrides the underlying client (tests, proxies).
	HTTPClient *http.Client
}

func (t *PollingTransport) Name() string { return TransportPolling }

type pollSession struct {
	SID string `json:"sid"`
}

func (t *PollingTransport) Dial(ctx context.Context, endpoint string, opts Options) (Conn, error) {
	base, err := httpBase(endpoint)
	if err != nil {
		return nil, err
	}

	var client *resty.Client
	if t.HTTPClient != nil {
		client = resty.NewWithClient(t.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(base).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	var sess pollSession
	resp, err := client.R().SetContext(ctx).ForceContentType("application/json").SetResult(&sess).Post("/poll")
	if err != nil {
		return nil, fmt.Errorf("opening poll session: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("opening poll session: status %d", resp.StatusCode())
	}
	if sess.SID == "" {
		return nil, errors.New("opening poll session: empty sid")
	}

	wait := opts.PollWait
	if wait <= 0 {
		wait = defaultPollWait
	}
	connCtx, cancel := context.WithCancel(context.Background())
	return &pollConn{
		client: client,
		sid:    sess.SID,
		wait:   wait,
		ctx:    connCtx,
		cancel: cancel,
	}, nil
}

type pollConn struct {
	client *resty.Client
	sid    string
	wait   time.Duration
	ctx    context.Context
	cancel context.CancelFunc

	// queue is only touched by the reading goroutine.
	queue []Frame

	mu     sync.Mutex
	closed bool
}

func (c *pollConn) path() string { return "/poll/" + c.sid }

func (c *pollConn) ReadFrame() (Frame, error) {
	for len(c.queue) == 0 {
		if err := c.ctx.Err(); err != nil {
			return Frame{}, ErrSessionClosed
		}
		var frames []Frame
		resp, err := c.client.R().
			SetContext(c.ctx).
			ForceContentType("application/json").
			SetQueryParam("waitMs", strconv.FormatInt(c.wait.Milliseconds(), 10)).
			SetResult(&frames).
			Get(c.path())
		if err != nil {
			if c.ctx.Err() != nil {
				return Frame{}, ErrSessionClosed
			}
			return Frame{}, fmt.Errorf("polling: %w", err)
		}
		if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusGone {
			return Frame{}, ErrSessionClosed
		}
		if resp.IsError() {
			return Frame{}, fmt.Errorf("polling: status %d", resp.StatusCode())
		}
		c.queue = append(c.queue, frames...)
	}
	f := c.queue[0]
	c.queue = c.queue[1:]
	return f, nil
}

func (c *pollConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(c.ctx, pollWriteTimeout)
	defer cancel()
	resp, err := c.client.R().SetContext(ctx).SetBody(f).Post(c.path())
	if err != nil {
		return fmt.Errorf("posting frame: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("posting frame: status %d", resp.StatusCode())
	}
	return nil
}

func (c *pollConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), pollCloseTimeout)
	defer cancel()
	// Best effort; the bridge expires idle sessions on its own.
	_, _ = c.client.R().SetContext(ctx).Delete(c.path())
	return nil
}
