package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
	"github.com/pmos-desktop/sei-gateway/internal/portal/browser"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Portal    PortalConfig
	Browser   BrowserConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PortalConfig holds the upstream Portal settings. Empty URLs keep the
// markup profile's values.
type PortalConfig struct {
	LoginURL         string        `envconfig:"PORTAL_LOGIN_URL"`
	ListURL          string        `envconfig:"PORTAL_LIST_URL"`
	HistoryURL       string        `envconfig:"PORTAL_HISTORY_URL"`
	ProfileFile      string        `envconfig:"PORTAL_PROFILE_FILE"`
	Timeout          time.Duration `envconfig:"PORTAL_TIMEOUT" default:"20s"`
	UserAgent        string        `envconfig:"PORTAL_USER_AGENT"`
	MaxRedirects     int           `envconfig:"PORTAL_MAX_REDIRECTS" default:"5"`
	Strategy         string        `envconfig:"PORTAL_STRATEGY" default:"http"`
	RateLimit        float64       `envconfig:"PORTAL_RATE_LIMIT" default:"0"`
	BreakerThreshold uint32        `envconfig:"PORTAL_BREAKER_THRESHOLD" default:"10"`
	BreakerCooldown  time.Duration `envconfig:"PORTAL_BREAKER_COOLDOWN" default:"30s"`
	Enrich           bool          `envconfig:"PORTAL_ENRICH" default:"true"`
}

// BrowserConfig holds the headless browser settings used by the browser strategy.
type BrowserConfig struct {
	ControlURL        string        `envconfig:"BROWSER_CONTROL_URL"`
	Bin               string        `envconfig:"BROWSER_BIN"`
	Headless          bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	NavigationTimeout time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// GlobalRequestsPerSecond caps all clients together; 0 disables it.
	GlobalRequestsPerSecond int `envconfig:"RATE_LIMIT_GLOBAL_RPS" default:"0"`
	GlobalBurst             int `envconfig:"RATE_LIMIT_GLOBAL_BURST" default:"50"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Portal: PortalConfig{
			Timeout:          20 * time.Second,
			MaxRedirects:     5,
			Strategy:         portal.StrategyHTTP,
			BreakerThreshold: 10,
			BreakerCooldown:  30 * time.Second,
			Enrich:           true,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
			GlobalBurst:       50,
		},
	}
}

// Bounds on the Portal client settings.
const (
	minPortalTimeout   = 15 * time.Second
	maxPortalTimeout   = 30 * time.Second
	maxPortalRedirects = 5
)

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Portal.Strategy {
	case portal.StrategyHTTP, portal.StrategyBrowser:
	default:
		return fmt.Errorf("unknown portal strategy %q", c.Portal.Strategy)
	}
	if c.Portal.Timeout < minPortalTimeout || c.Portal.Timeout > maxPortalTimeout {
		return fmt.Errorf("portal timeout must be between %s and %s: %s",
			minPortalTimeout, maxPortalTimeout, c.Portal.Timeout)
	}
	if c.Portal.MaxRedirects < 1 || c.Portal.MaxRedirects > maxPortalRedirects {
		return fmt.Errorf("portal max redirects must be between 1 and %d: %d",
			maxPortalRedirects, c.Portal.MaxRedirects)
	}
	if c.RateLimit.GlobalRequestsPerSecond < 0 {
		return fmt.Errorf("global rate limit must not be negative: %d", c.RateLimit.GlobalRequestsPerSecond)
	}
	return nil
}

// Profile returns the markup profile: the profile file when configured,
// else the built-in one, with any URL overrides applied.
func (c *Config) Profile() (portal.Profile, error) {
	profile := portal.DefaultProfile()
	if c.Portal.ProfileFile != "" {
		loaded, err := portal.LoadProfile(c.Portal.ProfileFile)
		if err != nil {
			return portal.Profile{}, err
		}
		profile = loaded
	}

	if c.Portal.LoginURL != "" {
		profile.LoginURL = c.Portal.LoginURL
	}
	if c.Portal.ListURL != "" {
		profile.ListURL = c.Portal.ListURL
	}
	if c.Portal.HistoryURL != "" {
		profile.HistoryURL = c.Portal.HistoryURL
	}
	if err := profile.Validate(); err != nil {
		return portal.Profile{}, err
	}
	return profile, nil
}

// ClientOptions maps the portal settings onto the HTTP engine options.
func (c *Config) ClientOptions() portal.Options {
	opts := portal.DefaultOptions()
	opts.Timeout = c.Portal.Timeout
	opts.MaxRedirects = c.Portal.MaxRedirects
	opts.RateLimit = c.Portal.RateLimit
	opts.BreakerThreshold = c.Portal.BreakerThreshold
	opts.BreakerCooldown = c.Portal.BreakerCooldown
	if c.Portal.UserAgent != "" {
		opts.UserAgent = c.Portal.UserAgent
	}
	return opts
}

// BrowserOptions maps the browser settings onto the browser strategy.
func (c *Config) BrowserOptions() browser.Config {
	return browser.Config{
		ControlURL:        c.Browser.ControlURL,
		Bin:               c.Browser.Bin,
		Headless:          c.Browser.Headless,
		NavigationTimeout: c.Browser.NavigationTimeout,
	}
}
