package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch"
	"seatwatch/engine"
	"seatwatch/ratelimit"
	"seatwatch/stream"
)

// Handler exposes the engine's operations over HTTP. Job manipulation is
// JSON over /api/queue/job, status updates stream as SSE from
// /api/jobs/stream.
type Handler struct {
	eng       *engine.Engine
	gateway   *stream.Gateway
	heartbeat time.Duration
	log       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for request-scoped warnings.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithHeartbeatInterval sets the SSE heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Handler) { h.heartbeat = d }
}

// NewHandler creates a Handler serving the given engine. The gateway is
// built over the engine's event bus.
func NewHandler(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng:       eng,
		heartbeat: stream.DefaultHeartbeatInterval,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.gateway = stream.NewGateway(eng.Bus(),
		stream.WithLogger(h.log),
		stream.WithHeartbeatInterval(h.heartbeat),
	)
	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	q := r.Group("/api/queue")
	q.POST("/job", h.SubmitJob)
	q.GET("/job", h.GetJob)
	q.DELETE("/job", h.CancelJob)

	jobs := r.Group("/api/jobs")
	jobs.GET("/history", h.History)
	jobs.GET("/stream", h.Stream)

	r.GET("/health", h.Health)
}

// Router returns a ready-to-serve gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// userIDHeader carries the caller's identity. Authentication proper sits in
// front of this service; the header is trusted as-is.
const userIDHeader = "X-User-ID"

func principal(c *gin.Context) string {
	return c.GetHeader(userIDHeader)
}

// ErrorResponse is the common error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, err error) {
	var limitErr *ratelimit.LimitError
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.As(err, &limitErr):
		status = http.StatusTooManyRequests
		code = "RATE_LIMITED"
		secs := int(math.Ceil(limitErr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	case errors.Is(err, seatwatch.ErrValidation):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	case errors.Is(err, seatwatch.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "UNAUTHORIZED"
	case errors.Is(err, seatwatch.ErrNotOwner):
		status = http.StatusForbidden
		code = "FORBIDDEN"
	case errors.Is(err, seatwatch.ErrJobNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, seatwatch.ErrJobTerminal):
		status = http.StatusConflict
		code = "JOB_TERMINAL"
	case errors.Is(err, seatwatch.ErrRateLimited):
		status = http.StatusTooManyRequests
		code = "RATE_LIMITED"
	}

	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}
