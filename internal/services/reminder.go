package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/repositories"
	"example.com/campushub/services/events/internal/workflow"
)

// ReminderService scans approved upcoming events and fans out the 1-day and
// 1-hour reminders to registrants and savers.
type ReminderService struct {
	eventRepo repositories.EventRepository
	notifier  *NotificationService
	metrics   *metrics.Metrics

	lookahead       time.Duration
	perEventTimeout time.Duration
	guard           *sentGuard
	now             func() time.Time
}

// NewReminderService creates a new reminder service.
func NewReminderService(
	eventRepo repositories.EventRepository,
	notifier *NotificationService,
	metricsCollector *metrics.Metrics,
	cfg config.SchedulerConfig,
) *ReminderService {
	lookahead := cfg.ReminderLookahead
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}
	perEventTimeout := cfg.PerEventTimeout
	if perEventTimeout <= 0 {
		perEventTimeout = 10 * time.Second
	}
	return &ReminderService{
		eventRepo:       eventRepo,
		notifier:        notifier,
		metrics:         metricsCollector,
		lookahead:       lookahead,
		perEventTimeout: perEventTimeout,
		guard:           newSentGuard(2*time.Hour, 4096),
		now:             time.Now,
	}
}

// reminderWindowPad absorbs scheduler jitter at the top of the 1-day window.
// The scan range carries the same pad so events in the padded slice above the
// lookahead are still returned.
const reminderWindowPad = 15 * time.Minute

// Run executes one reminder pass. Per-event failures are logged and the
// batch continues; a run never returns early because one event misbehaved.
func (s *ReminderService) Run(ctx context.Context) error {
	started := s.now().UTC()

	events, err := s.eventRepo.ListApprovedStartingBetween(ctx, started, started.Add(s.lookahead+reminderWindowPad))
	if err != nil {
		return err
	}

	var sent, failed int
	for i := range events {
		event := &events[i]
		kind, due := reminderKind(event.StartTime.Sub(started))
		if !due {
			continue
		}

		// Intra-run duplicate suppression on top of the persisted dedup;
		// adjacent runs inside the tolerance window would otherwise race the
		// persisted check.
		if s.guard.seen(event.ID, kind) {
			continue
		}

		eventCtx, cancel := context.WithTimeout(ctx, s.perEventTimeout)
		created, err := s.notifier.Emit(eventCtx, event, kind, workflow.AudienceAttendees)
		cancel()
		if err != nil {
			failed++
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("kind", string(kind)).
				Msg("Failed to send event reminder")
			continue
		}

		s.guard.mark(event.ID, kind)
		if created > 0 {
			sent += created
			s.metrics.IncrementCounterBy(metrics.CounterReminders, int64(created))
		}
	}

	s.metrics.RecordTimer(metrics.TimerReminderRun, time.Since(started).Milliseconds())
	log.Info().
		Int("events_scanned", len(events)).
		Int("reminders_sent", sent).
		Int("failures", failed).
		Msg("Reminder run completed")

	return nil
}

// reminderKind maps time-until-start to a reminder kind. The windows are
// wide enough to absorb scheduler jitter; the persisted lifetime dedup for
// reminder kinds keeps a window firing at most once per recipient.
func reminderKind(until time.Duration) (workflow.NotificationType, bool) {
	switch {
	case until > 23*time.Hour && until <= 24*time.Hour+reminderWindowPad:
		return workflow.TypeReminderOneDay, true
	case until > 0 && until <= time.Hour:
		return workflow.TypeReminderOneHour, true
	default:
		return "", false
	}
}

// sentGuard is a bounded TTL set of (event, kind) pairs already handled by
// this scheduler instance. It is owned by the service, not shared process
// state, so parallel instances and tests do not interfere.
type sentGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	maxSize int
}

func newSentGuard(ttl time.Duration, maxSize int) *sentGuard {
	return &sentGuard{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func (g *sentGuard) seen(eventID uuid.UUID, kind workflow.NotificationType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.entries[guardKey(eventID, kind)]
	return ok && time.Now().Before(expiry)
}

func (g *sentGuard) mark(eventID uuid.UUID, kind workflow.NotificationType) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, expiry := range g.entries {
		if now.After(expiry) {
			delete(g.entries, key)
		}
	}
	// Guard entries are an optimization; dropping them all under pressure
	// only costs an extra persisted dedup query.
	if len(g.entries) >= g.maxSize {
		g.entries = make(map[string]time.Time)
	}
	g.entries[guardKey(eventID, kind)] = now.Add(g.ttl)
}

func guardKey(eventID uuid.UUID, kind workflow.NotificationType) string {
	return fmt.Sprintf("%s:%s", eventID, kind)
}
