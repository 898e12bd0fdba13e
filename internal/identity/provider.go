// Package identity supplies the current visitor identity and keeps it in
// sync with the profile endpoint.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/version"
)

// ErrNoProfileEndpoint is returned by Refresh when no base URL is configured.
var ErrNoProfileEndpoint = errors.New("profile endpoint not configured")

// Profile is the /users/me response.
type Profile struct {
	ID          string `json:"id,omitempty"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role,omitempty"`
}

type subscriber struct {
	id int
	fn func(domain.Identity)
}

// Provider is the single writer of the visitor identity. Concurrent writes
// are serialized so subscribers see updates in the order they were applied.
// A subscriber must not write back to the provider.
type Provider struct {
	client *resty.Client
	log    *logging.Logger
	hooks  *hooks.Manager

	// writeMu is held across an update and its notifications.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current domain.Identity
	token   string
	subs    []subscriber
	nextSub int
}

// NewProvider creates a provider for the profile API at baseURL. An empty
// baseURL disables Refresh.
func NewProvider(baseURL string, timeout time.Duration, log *logging.Logger, hm *hooks.Manager) *Provider {
	p := &Provider{
		log:     log.Sub("identity"),
		hooks:   hm,
		current: domain.Anonymous(),
	}
	if baseURL != "" {
		p.client = resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", version.UserAgent())
		if timeout > 0 {
			p.client.SetTimeout(timeout)
		}
	}
	return p
}

// Current returns the current identity.
func (p *Provider) Current() domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Set replaces the identity (login) and notifies subscribers.
func (p *Provider) Set(id domain.Identity) {
	p.update(func(domain.Identity) domain.Identity { return id })
}

// Clear logs the visitor out.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	p.Set(domain.Anonymous())
}

// SetToken sets the bearer token used by Refresh.
func (p *Provider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

// Subscribe registers fn for every identity change and returns a function
// that removes it.
func (p *Provider) Subscribe(fn func(domain.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Refresh fetches /users/me and merges the profile into the current
// identity. On failure the identity is left unchanged and the error is
// logged and returned.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.client == nil {
		return ErrNoProfileEndpoint
	}
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	var prof Profile
	req := p.client.R().SetContext(ctx).ForceContentType("application/json").SetResult(&prof)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Get("/users/me")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	if err != nil {
		err = fmt.Errorf("fetching profile: %w", err)
		p.log.Warn().Err(err).Msg("profile refresh failed, keeping current identity")
		return err
	}

	p.update(func(cur domain.Identity) domain.Identity { return Merge(cur, prof) })
	return nil
}

// Merge overlays the non-empty profile fields onto id. A fetched profile
// means the visitor is authenticated.
func Merge(id domain.Identity, prof Profile) domain.Identity {
	id.Authenticated = true
	if prof.ID != "" {
		id.UserID = prof.ID
	}
	if prof.Username != "" {
		id.DisplayName = prof.Username
	}
	if prof.Email != "" {
		id.Email = prof.Email
	}
	if prof.PhoneNumber != "" {
		id.Phone = prof.PhoneNumber
	}
	if prof.Role != "" {
		id.Role = domain.ParseRole(prof.Role)
	}
	return id
}

func (p *Provider) update(fn func(domain.Identity) domain.Identity) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	p.current = fn(p.current)
	next := p.current
	subs := append([]subscriber(nil), p.subs...)
	p.mu.Unlock()

	p.log.Debug().Bool("authenticated", next.Authenticated).Str("user", next.UserID).Msg("identity updated")
	for _, s := range subs {
		s.fn(next)
	}
	p.hooks.Emit(context.Background(), hooks.EventIdentityUpdated, map[string]any{
		"authenticated": next.Authenticated,
		"role":          string(next.Role),
	})
}
