package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/api/handlers"
	"example.com/campushub/services/events/internal/api/middleware"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/search"
	"example.com/campushub/services/events/internal/services"
	"example.com/campushub/services/events/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config              config.Config
	router              *gin.Engine
	httpServer          *http.Server
	approvalService     *services.ApprovalService
	notificationService *services.NotificationService
	elastic             *search.ElasticClient
	metrics             *metrics.Metrics
	tracer              tracing.Tracer
}

// NewServer creates a new HTTP server. elasticClient may be nil; the search
// route is then simply not registered.
func NewServer(
	cfg config.Config,
	approvalService *services.ApprovalService,
	notificationService *services.NotificationService,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:              cfg,
		approvalService:     approvalService,
		notificationService: notificationService,
		elastic:             elasticClient,
		metrics:             metricsCollector,
		tracer:              tracer,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Health check and metrics stay outside the identity gate
	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer)
	router.GET("/health", metricsHandler.HandleGetHealthCheck)
	router.GET("/metrics", metricsHandler.HandleGetMetrics)

	authed := router.Group("/")
	authed.Use(middleware.Identity())

	approvalHandler := handlers.NewApprovalHandler(s.approvalService, s.tracer)
	approvalHandler.RegisterRoutes(authed)

	notificationHandler := handlers.NewNotificationHandler(s.notificationService, s.tracer)
	notificationHandler.RegisterRoutes(authed)

	if s.elastic != nil {
		searchHandler := handlers.NewSearchHandler(s.elastic, s.tracer)
		searchHandler.RegisterRoutes(authed)
	}

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
