package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets tokens and endpoints be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Profile.Token = expandEnvVars(cfg.Profile.Token)
	cfg.Profile.BaseURL = expandEnvVars(cfg.Profile.BaseURL)
	cfg.Secondary.APIKey = expandEnvVars(cfg.Secondary.APIKey)
	cfg.Secondary.ControlURL = expandEnvVars(cfg.Secondary.ControlURL)
	cfg.Bridge.URL = expandEnvVars(cfg.Bridge.URL)
	cfg.DeepLink.Phone = expandEnvVars(cfg.DeepLink.Phone)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Bridge.URL == "" {
		cfg.Bridge.URL = "ws://127.0.0.1:18790"
	}
	if len(cfg.Bridge.Transports) == 0 {
		cfg.Bridge.Transports = []string{"websocket", "polling"}
	}
	if cfg.Bridge.ConnectTimeoutMs == 0 {
		cfg.Bridge.ConnectTimeoutMs = 5000
	}
	if cfg.Bridge.PollWaitMs == 0 {
		cfg.Bridge.PollWaitMs = 25000
	}

	if cfg.Failover.MaxAttempts == 0 {
		cfg.Failover.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Failover.Backoff.InitialMs == 0 {
		cfg.Failover.Backoff.InitialMs = 500
	}
	if cfg.Failover.Backoff.MaxMs == 0 {
		cfg.Failover.Backoff.MaxMs = 4000
	}
	if cfg.Failover.Backoff.Multiplier == 0 {
		cfg.Failover.Backoff.Multiplier = 2
	}
	if cfg.Failover.WelcomeMessage == "" {
		cfg.Failover.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.Failover.FailoverNotice == "" {
		cfg.Failover.FailoverNotice = DefaultFailoverNotice
	}

	if cfg.Secondary.InquiryTag == "" {
		cfg.Secondary.InquiryTag = "support"
	}
	if cfg.Secondary.TimeoutMs == 0 {
		cfg.Secondary.TimeoutMs = 3000
	}

	if cfg.DeepLink.BaseURL == "" {
		cfg.DeepLink.BaseURL = DefaultDeepLinkBase
	}
	if cfg.DeepLink.Message == "" {
		cfg.DeepLink.Message = DefaultDeepLinkText
	}

	if len(cfg.Visibility.AllowedPaths) == 0 {
		cfg.Visibility.AllowedPaths = []string{"/", "/dashboard", "/properties", "/properties/*", "/contact"}
	}
	if cfg.Visibility.LatchScope == "" {
		cfg.Visibility.LatchScope = "session"
	}

	if cfg.Profile.TimeoutMs == 0 {
		cfg.Profile.TimeoutMs = 10000
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18790
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "loopback"
	}
	if cfg.Server.AgentName == "" {
		cfg.Server.AgentName = "Support"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads SUPPORTLINE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUPPORTLINE_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("SUPPORTLINE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Failover.MaxAttempts = n
		}
	}
	if v := os.Getenv("SUPPORTLINE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUPPORTLINE_PROFILE_TOKEN"); v != "" {
		cfg.Profile.Token = v
	}
	if v := os.Getenv("SUPPORTLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
