// Package support is the page-level support widget: it ties visibility,
// identity and the failover engine together for whichever page is showing.
package support

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/failover"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/identity"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/visibility"
)

// ErrHidden is returned by Open when the widget is not rendered on the current page.
var ErrHidden = errors.New("support widget is not shown on this page")

// Widget is the single support widget shared by every page.
type Widget struct {
	engine   *failover.Engine
	identity *identity.Provider
	latch    visibility.Latch
	cfg      config.VisibilityConfig
	log      *logging.Logger
	hooks    *hooks.Manager

	mu          sync.Mutex
	page        domain.PageContext
	unsubscribe func()
}

// New creates the widget on the root page and starts following identity changes.
func New(engine *failover.Engine, provider *identity.Provider, latch visibility.Latch, cfg config.VisibilityConfig, log *logging.Logger, hm *hooks.Manager) *Widget {
	if latch == nil {
		latch = visibility.NewMemoryLatch()
	}
	w := &Widget{
		engine:   engine,
		identity: provider,
		latch:    latch,
		cfg:      cfg,
		log:      log.Sub("support"),
		hooks:    hm,
		page:     visibility.PageContext(cfg, "/"),
	}
	w.unsubscribe = provider.Subscribe(w.identityChanged)
	if err := engine.SetIdentity(provider.Current()); err != nil {
		w.log.Warn().Err(err).Msg("seeding identity")
	}
	return w
}

// Stop detaches the widget from the identity provider.
func (w *Widget) Stop() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}

func (w *Widget) identityChanged(id domain.Identity) {
	if err := w.engine.SetIdentity(id); err != nil {
		w.log.Warn().Err(err).Msg("propagating identity")
		return
	}
	w.closeIfHidden(context.Background())
}

// Navigate switches to a new route and re-evaluates visibility.
func (w *Widget) Navigate(ctx context.Context, path string) bool {
	w.mu.Lock()
	w.page = visibility.PageContext(w.cfg, path)
	w.mu.Unlock()
	return w.closeIfHidden(ctx)
}

// closeIfHidden closes an open panel that may no longer render and
// reports the current visibility.
func (w *Widget) closeIfHidden(ctx context.Context) bool {
	state := w.State(ctx)
	visible := visibility.ShouldRender(w.Page(), w.identity.Current(), state)
	if !visible && state.PanelOpen {
		if err := w.engine.Close(); err != nil {
			w.log.Warn().Err(err).Msg("closing hidden widget")
		}
	}
	return visible
}

// Page returns the current page context.
func (w *Widget) Page() domain.PageContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page
}

// State returns the widget visibility state for the current visitor.
func (w *Widget) State(ctx context.Context) domain.VisibilityState {
	id := w.identity.Current()
	hidden, err := w.latch.IsSet(ctx, id.Key())
	if err != nil {
		w.log.Warn().Err(err).Msg("reading dismissal latch")
	}
	var open bool
	if snap, err := w.engine.Snapshot(); err == nil {
		open = snap.PanelOpen
	}
	return domain.VisibilityState{PanelOpen: open, PermanentlyHidden: hidden}
}

// Visible reports whether the widget renders on the current page. It is
// computed from scratch on every call.
func (w *Widget) Visible(ctx context.Context) bool {
	state := w.State(ctx)
	return visibility.ShouldRender(w.Page(), w.identity.Current(), state)
}

// Open opens the chat panel for an inquiry type (empty uses the default tag).
func (w *Widget) Open(ctx context.Context, inquiryType string) error {
	if !w.Visible(ctx) {
		return ErrHidden
	}
	attrs := domain.ContextAttributes{Page: w.Page().Path, InquiryType: inquiryType}
	return w.engine.Open(attrs)
}

// Close closes the chat panel.
func (w *Widget) Close() error {
	return w.engine.Close()
}

// Send sends a visitor message.
func (w *Widget) Send(text string) (domain.ChatMessage, error) {
	return w.engine.Send(text)
}

// Reconnect retries the primary bridge on the visitor's request.
func (w *Widget) Reconnect(ctx context.Context) error {
	if !w.Visible(ctx) {
		return ErrHidden
	}
	return w.engine.Reconnect()
}

// Snapshot returns the failover engine snapshot.
func (w *Widget) Snapshot() (failover.Snapshot, error) {
	return w.engine.Snapshot()
}

// Dismiss sets the "don't show again" latch for the visitor, closes the
// panel and hides the secondary widget.
func (w *Widget) Dismiss(ctx context.Context) error {
	id := w.identity.Current()
	if err := w.latch.Set(ctx, id.Key()); err != nil {
		return err
	}
	if err := w.engine.Close(); err != nil {
		return err
	}
	if err := w.engine.HideSecondary(); err != nil {
		return err
	}
	w.hooks.Emit(ctx, hooks.EventWidgetDismissed, map[string]any{"page": w.Page().Path})
	return nil
}

// ResetDismissal clears the latch for the current visitor.
func (w *Widget) ResetDismissal(ctx context.Context) error {
	return w.latch.Reset(ctx, w.identity.Current().Key())
}
