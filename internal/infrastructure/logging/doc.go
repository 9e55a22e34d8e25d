// Package logging configures the gateway's zap logger.
//
// Production writes JSON to stdout; development (LOG_DEV=true) writes
// colored console lines and turns on debug output and stack traces.
// Each subsystem gets a named child through Component ("portal", "api",
// "http", "browser") so a single stream can be filtered per layer.
//
// Only the field helpers in this package touch user data. Usernames are
// logged with User; cookie jars are logged by name with CookieNames. There
// is no helper for passwords or captcha answers, and request bodies are
// never logged.
//
//	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	portalLog := logger.Component("portal")
//	portalLog.Warn("Login rejected", logging.User(username), logging.CookieNames(jar))
package logging
