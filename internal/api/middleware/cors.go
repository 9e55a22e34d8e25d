package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
	// PreflightStatus is the status answered to OPTIONS preflights.
	PreflightStatus int
}

// DefaultCORSConfig returns the permissive configuration the browser
// front end relies on: any origin, no credentials, preflight answered 200.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
			RequestIDHeader,
		},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		PreflightStatus:  http.StatusOK,
	}
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	status := cfg.PreflightStatus
	if status == 0 {
		status = http.StatusNoContent
	}
	return cors.New(cors.Config{
		AllowOrigins:              cfg.AllowOrigins,
		AllowMethods:              cfg.AllowMethods,
		AllowHeaders:              cfg.AllowHeaders,
		ExposeHeaders:             cfg.ExposeHeaders,
		AllowCredentials:          cfg.AllowCredentials,
		MaxAge:                    cfg.MaxAge,
		OptionsResponseStatusCode: status,
	})
}
