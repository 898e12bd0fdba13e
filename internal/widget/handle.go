// Package widget wraps the third-party live-chat widget behind a stable
// interface and provides the deep-link fallback for when it is missing.
package widget

import (
	"sync"

	"github.com/soyeahso/supportline/internal/logging"
)

// Handle is the vendor widget's control surface. Any method may fail or panic.
type Handle interface {
	SetAttributes(attrs map[string]string) error
	AddEvent(name string, data map[string]string) error
	ShowWidget() error
	HideWidget() error
	Maximize() error
	IsChatHidden() bool
}

// Slot holds the vendor handle once it has loaded. It may be empty at any time.
type Slot struct {
	mu     sync.RWMutex
	handle Handle
	log    *logging.Logger

	onLoad        []func()
	onChatStarted []func()
	onChatEnded   []func()
}

// NewSlot creates an empty slot.
func NewSlot(log *logging.Logger) *Slot {
	return &Slot{log: log.Sub("widget")}
}

// Get returns the loaded handle or nil.
func (s *Slot) Get() Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Load installs the handle and runs the OnLoad callbacks.
func (s *Slot) Load(h Handle) {
	s.mu.Lock()
	s.handle = h
	callbacks := append([]func(){}, s.onLoad...)
	s.mu.Unlock()

	s.log.Info().Msg("live-chat widget loaded")
	s.fire("load", callbacks)
}

// Unload empties the slot.
func (s *Slot) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
}

func (s *Slot) OnLoad(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoad = append(s.onLoad, fn)
}

func (s *Slot) OnChatStarted(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChatStarted = append(s.onChatStarted, fn)
}

func (s *Slot) OnChatEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChatEnded = append(s.onChatEnded, fn)
}

// ChatStarted is called by the vendor integration when a widget chat begins.
func (s *Slot) ChatStarted() {
	s.mu.RLock()
	callbacks := append([]func(){}, s.onChatStarted...)
	s.mu.RUnlock()
	s.fire("chatStarted", callbacks)
}

// ChatEnded is called by the vendor integration when a widget chat ends.
func (s *Slot) ChatEnded() {
	s.mu.RLock()
	callbacks := append([]func(){}, s.onChatEnded...)
	s.mu.RUnlock()
	s.fire("chatEnded", callbacks)
}

func (s *Slot) fire(name string, callbacks []func()) {
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Str("callback", name).Msg("widget callback panicked")
				}
			}()
			fn()
		}()
	}
}
