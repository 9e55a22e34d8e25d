// Package config provides 12-factor configuration management for the gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Portal: upstream URLs, timeout, redirects, engine strategy, enrichment
//   - Browser: headless Chrome settings for the browser strategy
//   - Logging: Log level and output format
//   - RateLimit: Per-IP and optional global rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	profile, err := cfg.Profile()
//
// Environment Variables:
//   - PORT, HOST
//   - PORTAL_LOGIN_URL, PORTAL_LIST_URL, PORTAL_HISTORY_URL, PORTAL_PROFILE_FILE
//   - PORTAL_TIMEOUT, PORTAL_USER_AGENT, PORTAL_MAX_REDIRECTS, PORTAL_STRATEGY
//   - PORTAL_RATE_LIMIT, PORTAL_BREAKER_THRESHOLD, PORTAL_BREAKER_COOLDOWN, PORTAL_ENRICH
//   - BROWSER_CONTROL_URL, BROWSER_BIN, BROWSER_HEADLESS, BROWSER_NAV_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - RATE_LIMIT_GLOBAL_RPS, RATE_LIMIT_GLOBAL_BURST
package config
