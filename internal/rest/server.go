package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robalyx/guardian/internal/rest/handler"
	"github.com/robalyx/guardian/internal/rest/middleware/ip"
	"github.com/robalyx/guardian/internal/rest/middleware/ratelimit"
	"github.com/robalyx/guardian/internal/rest/middleware/requestid"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// healthCheckTimeout bounds each dependency check on /healthz.
const healthCheckTimeout = 2 * time.Second

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_http_requests_total",
	Help: "Number of HTTP requests by status code and method",
}, []string{"code", "method"})

var httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "guardian_http_requests_in_flight",
	Help: "Number of HTTP requests being served",
})

// HealthCheck reports whether a dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators the REST API is served from.
type Dependencies struct {
	Moderator handler.Moderator
	Flagger   handler.Flagger
	Users     handler.UserGetter
	Logs      handler.LogLister
	Checks    []HealthCheck
}

// Server implements the REST API service.
type Server struct {
	moderationHandler *handler.ModerationHandler
	userHandler       *handler.UserHandler
	logHandler        *handler.LogHandler
	checks            []HealthCheck
	requestTimeout    time.Duration
	logger            *zap.Logger
}

// NewServer creates a new REST API server. The returned cleanup function
// stops background middleware work and must be called on shutdown.
func NewServer(deps *Dependencies, config *config.ServerConfig, logger *zap.Logger) (http.Handler, func()) {
	// Create server instance with handlers
	server := &Server{
		moderationHandler: handler.NewModerationHandler(deps.Moderator, config, logger),
		userHandler:       handler.NewUserHandler(deps.Flagger, deps.Users, logger),
		logHandler:        handler.NewLogHandler(deps.Logs, config.MaxLogsPageSize, logger),
		checks:            deps.Checks,
		requestTimeout:    time.Duration(config.RequestTimeout) * time.Millisecond,
		logger:            logger.Named("rest"),
	}

	// Create middleware instances
	requestIDMiddleware := requestid.New(logger)
	ipMiddleware := ip.New(logger, &config.IP)
	rateLimiter := ratelimit.New(&config.RateLimit, logger)

	// Create base router
	router := bunrouter.New()

	// Create API routes group
	router.Use(
		requestIDMiddleware.AsRESTMiddleware,
		ipMiddleware.AsRESTMiddleware,
		rateLimiter.AsRESTMiddleware,
		server.timeoutMiddleware,
	).WithGroup("/v1/moderate", func(g *bunrouter.Group) {
		g.POST("/text", server.moderationHandler.ModerateText)
		g.POST("/image", server.moderationHandler.ModerateImage)
		g.POST("/video", server.moderationHandler.ModerateVideo)
		g.PUT("/flag", server.userHandler.FlagUser)
		g.GET("/logs", server.logHandler.GetLogs)
	})

	// Operational endpoints
	router.GET("/metrics", bunrouter.HTTPHandler(promhttp.Handler()))
	router.GET("/healthz", server.health)

	// Add instrumentation and gzip compression
	var h http.Handler = gzhttp.GzipHandler(router)
	h = promhttp.InstrumentHandlerCounter(httpRequests, h)
	h = promhttp.InstrumentHandlerInFlight(httpInFlight, h)
	h = otelhttp.NewHandler(h, "guardian.rest")

	return h, rateLimiter.Close
}

// timeoutMiddleware bounds the lifetime of each API request.
func (s *Server) timeoutMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		if s.requestTimeout <= 0 {
			return next(w, req)
		}

		ctx, cancel := context.WithTimeout(req.Context(), s.requestTimeout)
		defer cancel()

		return next(w, req.WithContext(ctx))
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// health runs every dependency check and reports 503 if any fails.
func (s *Server) health(w http.ResponseWriter, req bunrouter.Request) error {
	response := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(s.checks)),
	}
	status := http.StatusOK

	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("Health check failed", zap.String("check", check.Name), zap.Error(err))
			response.Checks[check.Name] = err.Error()
			response.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[check.Name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return bunrouter.JSON(w, response)
}
