package config

// Config is the root configuration for supportline.
type Config struct {
	Bridge     BridgeConfig     `yaml:"bridge,omitempty"`
	Failover   FailoverConfig   `yaml:"failover,omitempty"`
	Secondary  SecondaryConfig  `yaml:"secondary,omitempty"`
	DeepLink   DeepLinkConfig   `yaml:"deepLink,omitempty"`
	Visibility VisibilityConfig `yaml:"visibility,omitempty"`
	Profile    ProfileConfig    `yaml:"profile,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// BridgeConfig points the channel connector at the primary messaging bridge.
type BridgeConfig struct {
	URL              string   `yaml:"url,omitempty"`        // ws(s)://host[:port]
	Transports       []string `yaml:"transports,omitempty"` // preference order: "websocket", "polling"
	ConnectTimeoutMs int      `yaml:"connectTimeoutMs,omitempty"`
	PollWaitMs       int      `yaml:"pollWaitMs,omitempty"`
}

// FailoverConfig tunes the fallback policy engine.
type FailoverConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts,omitempty"`
	Backoff        BackoffConfig `yaml:"backoff,omitempty"`
	WelcomeMessage string        `yaml:"welcomeMessage,omitempty"` // {name} is replaced with the display name
	FailoverNotice string        `yaml:"failoverNotice,omitempty"`
}

// BackoffConfig bounds the delay between primary connection attempts.
type BackoffConfig struct {
	InitialMs  int     `yaml:"initialMs,omitempty"`
	MaxMs      int     `yaml:"maxMs,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
}

// SecondaryConfig configures the third-party live-chat widget.
type SecondaryConfig struct {
	ControlURL string `yaml:"controlUrl,omitempty"` // vendor control API; empty means never loaded
	APIKey     string `yaml:"apiKey,omitempty"`
	InquiryTag string `yaml:"inquiryTag,omitempty"`
	TimeoutMs  int    `yaml:"timeoutMs,omitempty"`
}

// DeepLinkConfig is the last-resort messaging app link.
type DeepLinkConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	Phone   string `yaml:"phone,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// VisibilityConfig controls where the floating widget renders.
type VisibilityConfig struct {
	AllowedPaths  []string `yaml:"allowedPaths,omitempty"`
	RequiredRoles []string `yaml:"requiredRoles,omitempty"`
	LatchScope    string   `yaml:"latchScope,omitempty"` // "session" | "persistent"
}

// ProfileConfig points at the REST backend serving the visitor profile.
type ProfileConfig struct {
	BaseURL   string `yaml:"baseUrl,omitempty"`
	Token     string `yaml:"token,omitempty"`
	TimeoutMs int    `yaml:"timeoutMs,omitempty"`
}

// ServerConfig controls the development bridge server.
type ServerConfig struct {
	Port           int       `yaml:"port,omitempty"`
	Bind           string    `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string    `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string  `yaml:"allowedOrigins,omitempty"`
	AgentName      string    `yaml:"agentName,omitempty"`
	TLS            ServerTLS `yaml:"tls,omitempty"`
}

// ServerTLS configures TLS for the development bridge server.
type ServerTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
