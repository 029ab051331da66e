package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/port/primary"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// NewRouter creates a chi router with all application routes registered.
func NewRouter(
	producer primary.ProducerService,
	defaultDestination string,
	healthChecks []secondary.HealthChecker,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Message endpoints
	r.Method(http.MethodPost, "/messages", NewSendMessageHandler(producer, defaultDestination, logger))

	// Health check endpoint
	r.Method(http.MethodGet, "/health", NewHealthHandler(healthChecks))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
