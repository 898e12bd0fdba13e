package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/connector"
	"github.com/soyeahso/supportline/internal/failover"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/identity"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/metrics"
	"github.com/soyeahso/supportline/internal/store"
	"github.com/soyeahso/supportline/internal/support"
	"github.com/soyeahso/supportline/internal/visibility"
	"github.com/soyeahso/supportline/internal/widget"
)

// journaledEvents are persisted to the support_events table during a chat run.
var journaledEvents = []string{
	hooks.EventChatStarted,
	hooks.EventChatEnded,
	hooks.EventFallbackTriggered,
	hooks.EventDeepLinkOpened,
	hooks.EventWidgetLoaded,
	hooks.EventWidgetDismissed,
	hooks.EventIdentityUpdated,
}

// stack is the fully wired support widget for one chat run.
type stack struct {
	cfg      config.Config
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	db       *store.DB
	identity *identity.Provider
	slot     *widget.Slot
	engine   *failover.Engine
	widget   *support.Widget

	cancel context.CancelFunc
	done   chan error
}

// buildStack wires every component from cfg and starts the engine loop.
// dbPath may be ":memory:".
func buildStack(ctx context.Context, cfg config.Config, dbPath string, opener widget.Opener, log *logging.Logger) (*stack, error) {
	s := &stack{
		cfg:     cfg,
		hooks:   hooks.NewManager(log),
		metrics: metrics.New(),
		done:    make(chan error, 1),
	}

	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	store.NewJournal(db).Attach(s.hooks, journaledEvents...)

	var latch visibility.Latch
	if cfg.Visibility.LatchScope == "persistent" {
		latch = store.NewDismissalStore(db)
	}

	s.identity = identity.NewProvider(cfg.Profile.BaseURL, cfg.Profile.Timeout(), log, s.hooks)
	if cfg.Profile.Token != "" {
		s.identity.SetToken(cfg.Profile.Token)
		// A failed refresh leaves the visitor anonymous.
		_ = s.identity.Refresh(ctx)
	}

	s.slot = widget.NewSlot(log)
	s.slot.OnLoad(func() { s.hooks.Emit(context.Background(), hooks.EventWidgetLoaded, nil) })
	if cfg.Secondary.ControlURL != "" {
		h := widget.NewHTTPHandle(cfg.Secondary.ControlURL, cfg.Secondary.APIKey, cfg.Secondary.Timeout())
		if err := h.Probe(ctx); err != nil {
			log.Warn().Err(err).Str("url", cfg.Secondary.ControlURL).Msg("live-chat widget did not load, deep link only")
		} else {
			s.slot.Load(h)
		}
	}
	adapter := widget.NewAdapter(s.slot, widget.FromConfig(cfg), opener, log)

	conn := connector.New(log, s.metrics)
	s.engine = failover.New(failover.FromConfig(cfg), conn, adapter, log, s.hooks, s.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() { s.done <- s.engine.Run(runCtx) }()

	s.widget = support.New(s.engine, s.identity, latch, cfg.Visibility, log, s.hooks)
	return s, nil
}

// Close stops the engine loop and releases the database.
func (s *stack) Close() error {
	s.widget.Stop()
	s.cancel()
	<-s.done
	return s.db.Close()
}
