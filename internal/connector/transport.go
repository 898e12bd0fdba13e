package connector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Transport names accepted in Options.Transports.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// ErrNoTransport is returned when none of the requested transports is registered.
var ErrNoTransport = errors.New("no usable transport")

// Options tune a single connection attempt.
type Options struct {
	// Timeout bounds the dial of each transport.
	Timeout time.Duration
	// Transports lists transport names in preference order.
	Transports []string
	// PollWait is the long-poll wait requested by the polling transport.
	PollWait time.Duration
}

// Conn is an established bridge connection. ReadFrame blocks until a frame
// arrives or the connection ends; Close unblocks it.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Transport dials the bridge over one concrete mechanism.
type Transport interface {
	Name() string
	Dial(ctx context.Context, endpoint string, opts Options) (Conn, error)
}

// negotiate tries each requested transport in order and returns the first
// connection that dials. The error joins every failure.
func negotiate(ctx context.Context, transports map[string]Transport, endpoint string, opts Options) (Conn, string, error) {
	names := opts.Transports
	if len(names) == 0 {
		names = []string{TransportWebSocket, TransportPolling}
	}

	var errs []error
	for _, name := range names {
		t, ok := transports[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrNoTransport))
			continue
		}

		dialCtx := ctx
		cancel := context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		conn, err := t.Dial(dialCtx, endpoint, opts)
		cancel()
		if err == nil {
			return conn, name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Join(errs...)
}

// httpBase converts a ws(s) bridge URL into the matching http(s) base URL.
func httpBase(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing bridge url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported bridge scheme %q", u.Scheme)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// wsURL returns the websocket endpoint under the bridge base URL.
func wsURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing bridge url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported bridge scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
