package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/cache"
	"example.com/campushub/services/events/internal/database"
	"example.com/campushub/services/events/internal/messaging"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/repositories"
	"example.com/campushub/services/events/internal/services"
	"example.com/campushub/services/events/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker running the event reminder and reservation cleanup jobs`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

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
	reservationRepo := repositories.NewReservationRepository(db, readOnlyDB)

	notificationService := services.NewNotificationService(notifRepo, audienceRepo, redisCache, publisher, metricsCollector, tracer)
	reminderService := services.NewReminderService(eventRepo, notificationService, metricsCollector, cfg.Scheduler)
	reservationService := services.NewReservationService(reservationRepo, metricsCollector)

	// Run the schedulers until the context is cancelled
	g.Go(func() error {
		return runSchedulers(ctx, cfg.Scheduler, reminderService, reservationService)
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runSchedulers wires both timed jobs. Each job runs once immediately and in
// singleton mode, so a slow run is never overlapped by the next tick.
func runSchedulers(ctx context.Context, cfg config.SchedulerConfig, reminders *services.ReminderService, reservations *services.ReservationService) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	interval := cfg.ReminderInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := reminders.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Reminder job failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.CleanupHour), 0, 0))),
		gocron.NewTask(func() {
			if _, err := reservations.CompleteExpired(ctx); err != nil {
				log.Error().Err(err).Msg("Reservation cleanup job failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	scheduler.Start()

	// Reservation reconciliation also runs once at startup, so a worker that
	// was down over the daily boundary catches up immediately.
	if _, err := reservations.CompleteExpired(ctx); err != nil {
		log.Error().Err(err).Msg("Startup reservation cleanup failed")
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Shutdown the scheduler
	return scheduler.Shutdown()
}
