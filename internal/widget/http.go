package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/soyeahso/supportline/internal/version"
)

// HTTPHandle drives a vendor widget through its REST control endpoint.
type HTTPHandle struct {
	client *resty.Client
}

type widgetState struct {
	Hidden bool `json:"hidden"`
}

// NewHTTPHandle creates a handle for the control API at baseURL.
func NewHTTPHandle(baseURL, apiKey string, timeout time.Duration) *HTTPHandle {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPHandle{client: client}
}

// Probe checks that the control endpoint answers. The CLI loads the handle
// into its Slot only after a successful probe.
func (h *HTTPHandle) Probe(ctx context.Context) error {
	var st widgetState
	resp, err := h.client.R().SetContext(ctx).ForceContentType("application/json").SetResult(&st).Get("/widget/state")
	return check("probing widget", resp, err)
}

func (h *HTTPHandle) SetAttributes(attrs map[string]string) error {
	resp, err := h.client.R().SetBody(attrs).Post("/attributes")
	return check("setting attributes", resp, err)
}

func (h *HTTPHandle) AddEvent(name string, data map[string]string) error {
	resp, err := h.client.R().SetBody(map[string]any{"name": name, "data": data}).Post("/events")
	return check("adding event", resp, err)
}

func (h *HTTPHandle) ShowWidget() error { return h.command("show") }
func (h *HTTPHandle) HideWidget() error { return h.command("hide") }
func (h *HTTPHandle) Maximize() error   { return h.command("maximize") }

// IsChatHidden reports true when the state cannot be read.
func (h *HTTPHandle) IsChatHidden() bool {
	var st widgetState
	resp, err := h.client.R().ForceContentType("application/json").SetResult(&st).Get("/widget/state")
	if check("reading widget state", resp, err) != nil {
		return true
	}
	return st.Hidden
}

func (h *HTTPHandle) command(name string) error {
	resp, err := h.client.R().Post("/widget/" + name)
	return check(name+" widget", resp, err)
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: status %d", op, resp.StatusCode())
	}
	return nil
}
