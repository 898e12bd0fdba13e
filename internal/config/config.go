package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultMaxAttempts    = 3
	DefaultWelcomeMessage = "Hi {name}! Thanks for reaching out. How can we help with your rental today?"
	DefaultFailoverNotice = "Our messaging line is unavailable right now, connecting you to live support."
	DefaultDeepLinkBase   = "https://wa.me"
	DefaultDeepLinkText   = "Hello! I would like some help with a property listing."
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// ConnectTimeout returns the per-attempt dial timeout.
func (b BridgeConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutMs) * time.Millisecond
}

// PollWait returns the long-poll wait used by the polling transport.
func (b BridgeConfig) PollWait() time.Duration {
	return time.Duration(b.PollWaitMs) * time.Millisecond
}

// Timeout returns the profile request timeout.
func (p ProfileConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Timeout returns the widget control request timeout.
func (s SecondaryConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
