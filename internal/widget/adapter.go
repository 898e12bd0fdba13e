package widget

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/logging"
)

// FallbackEvent is the analytics event sent to the widget on activation.
const FallbackEvent = "fallback-triggered"

var errNotLoaded = errors.New("widget not loaded")

// Config configures the adapter.
type Config struct {
	InquiryTag      string
	DeepLinkBase    string
	DeepLinkPhone   string
	DeepLinkMessage string
}

// FromConfig builds the adapter config from the application config.
func FromConfig(cfg config.Config) Config {
	return Config{
		InquiryTag:      cfg.Secondary.InquiryTag,
		DeepLinkBase:    cfg.DeepLink.BaseURL,
		DeepLinkPhone:   cfg.DeepLink.Phone,
		DeepLinkMessage: cfg.DeepLink.Message,
	}
}

// Adapter is the only code that touches the vendor handle. None of its
// methods panic or return errors; failures degrade to the deep link.
type Adapter struct {
	slot   *Slot
	cfg    Config
	opener Opener
	log    *logging.Logger
}

// NewAdapter creates an adapter over slot. A nil opener discards deep links.
func NewAdapter(slot *Slot, cfg Config, opener Opener, log *logging.Logger) *Adapter {
	if cfg.DeepLinkBase == "" {
		cfg.DeepLinkBase = config.DefaultDeepLinkBase
	}
	if cfg.DeepLinkMessage == "" {
		cfg.DeepLinkMessage = config.DefaultDeepLinkText
	}
	if opener == nil {
		opener = OpenerFunc(func(string) error { return nil })
	}
	return &Adapter{slot: slot, cfg: cfg, opener: opener, log: log.Sub("widget")}
}

// IsAvailable reports whether the vendor handle has loaded.
func (a *Adapter) IsAvailable() bool {
	return a.slot != nil && a.slot.Get() != nil
}

// Activate hands the visitor to the widget, or to the deep link when the
// widget is missing or misbehaves.
func (a *Adapter) Activate(id domain.Identity, attrs domain.ContextAttributes) domain.Activation {
	err := a.call(func(h Handle) error {
		if err := h.SetAttributes(a.attributes(id, attrs)); err != nil {
			return fmt.Errorf("setting attributes: %w", err)
		}
		if err := h.AddEvent(FallbackEvent, map[string]string{
			"page":        attrs.Page,
			"inquiryType": a.inquiryType(attrs),
		}); err != nil {
			return fmt.Errorf("adding event: %w", err)
		}
		if err := h.ShowWidget(); err != nil {
			return fmt.Errorf("showing widget: %w", err)
		}
		if err := h.Maximize(); err != nil {
			return fmt.Errorf("maximizing widget: %w", err)
		}
		return nil
	})
	if err == nil {
		a.log.Info().Str("page", attrs.Page).Msg("live-chat widget activated")
		return domain.Activation{Channel: domain.ChannelWidget}
	}

	a.log.Warn().Err(err).Msg("live-chat widget unusable, opening deep link")
	link := a.DeepLink()
	a.open(link)
	return domain.Activation{Channel: domain.ChannelDeepLink, URL: link}
}

// UpdateAttributes re-sends visitor attributes. No-op when unavailable.
func (a *Adapter) UpdateAttributes(id domain.Identity, attrs domain.ContextAttributes) {
	if !a.IsAvailable() {
		return
	}
	if err := a.call(func(h Handle) error { return h.SetAttributes(a.attributes(id, attrs)) }); err != nil {
		a.log.Warn().Err(err).Msg("updating widget attributes")
	}
}

// Hide hides the widget panel. No-op when unavailable.
func (a *Adapter) Hide() {
	if !a.IsAvailable() {
		return
	}
	if err := a.call(func(h Handle) error { return h.HideWidget() }); err != nil {
		a.log.Warn().Err(err).Msg("hiding widget")
	}
}

// Open reports whether the widget is loaded and its chat is showing.
func (a *Adapter) Open() bool {
	var shown bool
	err := a.call(func(h Handle) error {
		shown = !h.IsChatHidden()
		return nil
	})
	return err == nil && shown
}

// DeepLink returns the pre-filled messaging app link.
func (a *Adapter) DeepLink() string {
	return DeepLinkURL(a.cfg.DeepLinkBase, a.cfg.DeepLinkPhone, a.cfg.DeepLinkMessage)
}

// call runs fn against the loaded handle, converting a missing handle or a
// panic into an error.
func (a *Adapter) call(fn func(Handle) error) (err error) {
	if a.slot == nil {
		return errNotLoaded
	}
	h := a.slot.Get()
	if h == nil {
		return errNotLoaded
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("widget panicked: %v", r)
		}
	}()
	return fn(h)
}

func (a *Adapter) open(link string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("opening deep link panicked")
		}
	}()
	if err := a.opener.Open(link); err != nil {
		a.log.Error().Err(err).Str("url", link).Msg("opening deep link")
	}
}

func (a *Adapter) attributes(id domain.Identity, attrs domain.ContextAttributes) map[string]string {
	return map[string]string{
		"name":        id.DisplayName,
		"email":       id.Email,
		"userId":      id.UserID,
		"role":        string(id.Role),
		"page":        attrs.Page,
		"inquiryType": a.inquiryType(attrs),
	}
}

func (a *Adapter) inquiryType(attrs domain.ContextAttributes) string {
	if attrs.InquiryType != "" {
		return attrs.InquiryType
	}
	return a.cfg.InquiryTag
}

// DeepLinkURL builds base/<digits>?text=<message>. Non-digits are dropped
// from phone and spaces in message are encoded as %20.
func DeepLinkURL(base, phone, message string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return strings.TrimSuffix(base, "/") + "/" + digits.String() + "?text=" + text
}
