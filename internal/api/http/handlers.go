package http

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pmos-desktop/sei-gateway/internal/api/middleware"
	"github.com/pmos-desktop/sei-gateway/internal/enrich"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/monitoring"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine   portal.Engine
	enricher *enrich.Pipeline
	metrics  *HandlerMetrics
	monitor  *monitoring.Metrics
	logger   *zap.Logger
	strategy string
}

// Options wires the optional collaborators.
type Options struct {
	// Enricher decorates listed records; nil returns them raw.
	Enricher *enrich.Pipeline
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	Strategy string
}

// NewHandlers creates a new handler set
func NewHandlers(engine portal.Engine, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:   engine,
		enricher: opts.Enricher,
		metrics:  NewHandlerMetrics(opts.Metrics),
		monitor:  opts.Metrics,
		logger:   logger,
		strategy: opts.Strategy,
	}
}

// Register mounts the gateway routes.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group("/api/sei")
	api.GET("/auth/challenge", h.Challenge)
	api.POST("/processos", h.Processes)
	api.POST("/detalhes", h.Details)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sei-gateway",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"strategy": h.strategy,
		"enrich":   h.enricher != nil,
	}
	if h.monitor != nil {
		body["metrics"] = h.monitor.Summary()
	}
	c.JSON(http.StatusOK, body)
}

// Challenge fetches a fresh login page and captcha.
func (h *Handlers) Challenge(c *gin.Context) {
	done := h.metrics.TrackPortalOperation("challenge")
	challenge, err := h.engine.Challenge(c.Request.Context())
	done(err)
	if err != nil {
		h.logFailure(c, "challenge", "", err)
		respondError(c, err, msgChallengeFailed)
		return
	}

	c.JSON(http.StatusOK, newChallengeResponse(challenge))
}

// Processes logs in with a challenge and returns the case listing.
func (h *Handlers) Processes(c *gin.Context) {
	var req processesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingIdentity})
		return
	}

	done := h.metrics.TrackPortalOperation("authenticate")
	listing, err := h.engine.Authenticate(c.Request.Context(), req.credentials(), req.challenge())
	done(err)
	if err != nil {
		h.logFailure(c, "authenticate", req.Username, err)
		respondError(c, err, msgProcessesFailed)
		return
	}

	h.logger.Info("Listing served",
		logging.User(req.Username),
		logging.RequestID(middleware.GetRequestID(c)),
		zap.String("format", listing.Diagnostics.Format),
		zap.Int("total", len(listing.Processes)),
	)

	resp := processesResponse{
		Total:   len(listing.Processes),
		Cookies: nonNilJar(listing.Session.Cookies),
		Debug:   listing.Diagnostics,
	}
	if h.enricher == nil {
		resp.Processes = nonNil(listing.Processes)
	} else {
		records := h.enricher.EnrichAll(listing.Processes)
		summary := enrich.Summarize(records)
		resp.Processes = records
		resp.Summary = &summary
	}
	c.JSON(http.StatusOK, resp)
}

// Details opens one case and returns its document tree and history.
func (h *Handlers) Details(c *gin.Context) {
	var req detailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}
	if strings.TrimSpace(req.Link) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingLink})
		return
	}

	done := h.metrics.TrackPortalOperation("detail")
	detail, err := h.engine.Detail(c.Request.Context(), req.detailRequest())
	done(err)
	if err != nil {
		h.logFailure(c, "detail", req.Username, err)
		respondError(c, err, msgDetailFailed)
		return
	}

	c.JSON(http.StatusOK, detailsResponse{
		Tree:    nonNil(detail.Tree),
		History: nonNil(detail.History),
	})
}

func (h *Handlers) logFailure(c *gin.Context, op, username string, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", statusFor(err)),
		logging.RequestID(middleware.GetRequestID(c)),
		zap.Error(err),
	}
	if username != "" {
		fields = append(fields, logging.User(username))
	}

	if portal.IsAuthRejected(err) {
		h.logger.Info("Portal rejected the request", fields...)
		return
	}
	h.logger.Warn("Portal operation failed", fields...)
}

func encodeCaptcha(image []byte) *string {
	if len(image) == 0 {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	return &encoded
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func nonNilJar(jar portal.Jar) portal.Jar {
	if jar == nil {
		return portal.Jar{}
	}
	return jar
}
