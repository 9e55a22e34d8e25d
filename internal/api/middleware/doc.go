// Package middleware provides the HTTP middleware stack for the gateway.
//
// Middleware stack includes:
//   - RequestID: ULID request IDs echoed in X-Request-ID
//   - Recovery: Panic recovery answering 500 {error}
//   - AccessLog: one zap line per request, never the body
//   - CORS: any origin, preflight answered 200 with an empty body
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP tracking with idle cleanup
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
