// Package main is the entry point for the SEI gateway server.
//
// The gateway is a stateless JSON front for the SEI Portal: it fetches login
// challenges, replays the login form, lists the user's cases and opens case
// details. Session state travels with every request; nothing is cached.
//
// Architecture:
//
//	Browser UI → Gateway → SEI Portal (HTML over HTTPS)
//	                     → headless Chrome (browser strategy only)
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//	./server -dev -strategy browser
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
