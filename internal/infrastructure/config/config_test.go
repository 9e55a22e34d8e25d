package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Portal config
	assert.Equal(t, 20*time.Second, cfg.Portal.Timeout)
	assert.Equal(t, 5, cfg.Portal.MaxRedirects)
	assert.Equal(t, portal.StrategyHTTP, cfg.Portal.Strategy)
	assert.True(t, cfg.Portal.Enrich)

	// Browser config
	assert.True(t, cfg.Browser.Headless)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Zero(t, cfg.RateLimit.GlobalRequestsPerSecond)
	assert.Equal(t, 50, cfg.RateLimit.GlobalBurst)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"PORTAL_LOGIN_URL":        "https://sei.example.gov.br/sip/login.php",
		"PORTAL_TIMEOUT":          "25s",
		"PORTAL_MAX_REDIRECTS":    "3",
		"PORTAL_STRATEGY":         "browser",
		"PORTAL_RATE_LIMIT":       "2.5",
		"PORTAL_ENRICH":           "false",
		"BROWSER_CONTROL_URL":     "ws://chrome:9222",
		"BROWSER_HEADLESS":        "false",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_BURST":        "1000",
		"RATE_LIMIT_ENABLED":      "false",
		"RATE_LIMIT_GLOBAL_RPS":   "40",
		"RATE_LIMIT_GLOBAL_BURST": "80",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "https://sei.example.gov.br/sip/login.php", cfg.Portal.LoginURL)
	assert.Equal(t, 25*time.Second, cfg.Portal.Timeout)
	assert.Equal(t, 3, cfg.Portal.MaxRedirects)
	assert.Equal(t, portal.StrategyBrowser, cfg.Portal.Strategy)
	assert.Equal(t, 2.5, cfg.Portal.RateLimit)
	assert.False(t, cfg.Portal.Enrich)

	assert.Equal(t, "ws://chrome:9222", cfg.Browser.ControlURL)
	assert.False(t, cfg.Browser.Headless)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 40, cfg.RateLimit.GlobalRequestsPerSecond)
	assert.Equal(t, 80, cfg.RateLimit.GlobalBurst)
}

func TestLoadRejectsOutOfRangeTimeout(t *testing.T) {
	t.Setenv("PORTAL_TIMEOUT", "2m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal timeout")
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("PORTAL_STRATEGY", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")

	cfg := LoadOrDefault()
	assert.Equal(t, portal.StrategyHTTP, cfg.Portal.Strategy, "falls back to defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "browser strategy", mutate: func(c *Config) { c.Portal.Strategy = portal.StrategyBrowser }},
		{name: "unknown strategy", mutate: func(c *Config) { c.Portal.Strategy = "" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Portal.Timeout = -time.Second }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Portal.Timeout = 0 }, wantErr: true},
		{name: "timeout at lower bound", mutate: func(c *Config) { c.Portal.Timeout = 15 * time.Second }},
		{name: "timeout at upper bound", mutate: func(c *Config) { c.Portal.Timeout = 30 * time.Second }},
		{name: "timeout too short", mutate: func(c *Config) { c.Portal.Timeout = 14 * time.Second }, wantErr: true},
		{name: "timeout too long", mutate: func(c *Config) { c.Portal.Timeout = 31 * time.Second }, wantErr: true},
		{name: "no redirects", mutate: func(c *Config) { c.Portal.MaxRedirects = 0 }, wantErr: true},
		{name: "five redirects", mutate: func(c *Config) { c.Portal.MaxRedirects = 5 }},
		{name: "too many redirects", mutate: func(c *Config) { c.Portal.MaxRedirects = 6 }, wantErr: true},
		{name: "negative global rate", mutate: func(c *Config) { c.RateLimit.GlobalRequestsPerSecond = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestProfileOverrides(t *testing.T) {
	cfg := Default()
	cfg.Portal.ListURL = "https://sei.example.gov.br/sei/controlador.php?acao=procedimento_controlar"

	profile, err := cfg.Profile()
	require.NoError(t, err)

	assert.Equal(t, cfg.Portal.ListURL, profile.ListURL)
	assert.Equal(t, portal.DefaultProfile().LoginURL, profile.LoginURL)
	assert.Equal(t, "txtUsuario", profile.Fields.Username)
}

func TestProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := "login_url: https://sei.example.gov.br/sip/login.php\n" +
		"fields:\n" +
		"  username: txtLogin\n" +
		"  password: pwdSenha\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	cfg.Portal.ProfileFile = path

	profile, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "https://sei.example.gov.br/sip/login.php", profile.LoginURL)
	assert.Equal(t, "txtLogin", profile.Fields.Username)
	assert.Equal(t, portal.DefaultProfile().ListURL, profile.ListURL, "unset keys keep defaults")

	cfg.Portal.ProfileFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Profile()
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.Portal.Timeout = 15 * time.Second
	cfg.Portal.UserAgent = "sei-gateway/1.0"

	opts := cfg.ClientOptions()
	assert.Equal(t, 15*time.Second, opts.Timeout)
	assert.Equal(t, "sei-gateway/1.0", opts.UserAgent)
	assert.Equal(t, 5, opts.MaxRedirects)

	cfg.Portal.UserAgent = ""
	assert.Equal(t, portal.DefaultOptions().UserAgent, cfg.ClientOptions().UserAgent)
}
