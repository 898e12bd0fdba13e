package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validTransports   = []string{"websocket", "polling"}
	validRoles        = []string{"guest", "client", "admin"}
	validLatchScopes  = []string{"session", "persistent"}
	validBinds        = []string{"loopback", "lan", "custom"}
	validLogLevels    = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	validConsoleStyle = []string{"pretty", "compact", "json"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Bridge
	if u, err := url.Parse(cfg.Bridge.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		add("bridge.url", "must be a ws:// or wss:// URL, got %q", cfg.Bridge.URL)
	}
	for i, tr := range cfg.Bridge.Transports {
		if !slices.Contains(validTransports, tr) {
			add(fmt.Sprintf("bridge.transports[%d]", i), "must be one of %v, got %q", validTransports, tr)
		}
	}
	if cfg.Bridge.ConnectTimeoutMs < 0 {
		add("bridge.connectTimeoutMs", "must not be negative, got %d", cfg.Bridge.ConnectTimeoutMs)
	}

	// Failover
	if cfg.Failover.MaxAttempts < 1 {
		add("failover.maxAttempts", "must be at least 1, got %d", cfg.Failover.MaxAttempts)
	}
	b := cfg.Failover.Backoff
	if b.InitialMs < 0 || b.MaxMs < 0 {
		add("failover.backoff", "delays must not be negative")
	}
	if b.MaxMs > 0 && b.InitialMs > b.MaxMs {
		add("failover.backoff.initialMs", "must not exceed maxMs (%d > %d)", b.InitialMs, b.MaxMs)
	}
	if b.Multiplier != 0 && b.Multiplier < 1 {
		add("failover.backoff.multiplier", "must be >= 1, got %v", b.Multiplier)
	}

	// Secondary widget and deep link
	if cfg.Secondary.ControlURL != "" {
		if u, err := url.Parse(cfg.Secondary.ControlURL); err != nil || u.Host == "" {
			add("secondary.controlUrl", "invalid URL %q", cfg.Secondary.ControlURL)
		}
	}
	if cfg.DeepLink.Phone != "" && !strings.ContainsAny(cfg.DeepLink.Phone, "0123456789") {
		add("deepLink.phone", "must contain digits, got %q", cfg.DeepLink.Phone)
	}
	if u, err := url.Parse(cfg.DeepLink.BaseURL); err != nil || u.Scheme != "https" || u.Host == "" {
		add("deepLink.baseUrl", "must be an https URL, got %q", cfg.DeepLink.BaseURL)
	}

	// Visibility
	if len(cfg.Visibility.AllowedPaths) == 0 {
		add("visibility.allowedPaths", "at least one path is required")
	}
	for i, p := range cfg.Visibility.AllowedPaths {
		if p == "" || p[0] != '/' {
			add(fmt.Sprintf("visibility.allowedPaths[%d]", i), "must start with '/', got %q", p)
		}
	}
	for i, r := range cfg.Visibility.RequiredRoles {
		if !slices.Contains(validRoles, r) {
			add(fmt.Sprintf("visibility.requiredRoles[%d]", i), "must be one of %v, got %q", validRoles, r)
		}
	}
	if !slices.Contains(validLatchScopes, cfg.Visibility.LatchScope) {
		add("visibility.latchScope", "must be one of %v, got %q", validLatchScopes, cfg.Visibility.LatchScope)
	}

	// Development bridge server
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		add("server.bind", "must be one of %v, got %q", validBinds, cfg.Server.Bind)
	}
	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertPath == "" || cfg.Server.TLS.KeyPath == "") {
		add("server.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Logging
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyle, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyle, cfg.Logging.ConsoleStyle)
	}

	return issues
}
