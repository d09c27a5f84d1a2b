package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/api"
	"example.com/campushub/services/events/internal/cache"
	"example.com/campushub/services/events/internal/database"
	"example.com/campushub/services/events/internal/messaging"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/repositories"
	"example.com/campushub/services/events/internal/search"
	"example.com/campushub/services/events/internal/services"
	"example.com/campushub/services/events/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for approval actions and notification reads`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return err
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search indexing")
		elasticClient = nil
	}

	// Initialize push relay publisher
	publisher, err := messaging.NewServiceBusPublisher(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus publisher, continuing without push relay")
		publisher = nil
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize repositories and services
	eventRepo := repositories.NewEventRepository(db, readOnlyDB)
	notifRepo := repositories.NewNotificationRepository(db, readOnlyDB)
	audienceRepo := repositories.NewAudienceRepository(db, readOnlyDB)

	notificationService := services.NewNotificationService(notifRepo, audienceRepo, redisCache, publisher, metricsCollector, tracer)
	approvalService := services.NewApprovalService(eventRepo, audienceRepo, notificationService, elasticClient, metricsCollector, tracer)

	// Initialize and start the server
	server := api.NewServer(cfg, approvalService, notificationService, elasticClient, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Service Bus shutdown error")
		}
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
