package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/campushub/services/events/internal/cache"
	"example.com/campushub/services/events/internal/messaging"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/repositories"
	"example.com/campushub/services/events/internal/tracing"
	"example.com/campushub/services/events/internal/workflow"
)

// NotificationService owns the fan-out path and the read surface. Rows are
// created only here; everything else just reads them or marks them read.
type NotificationService struct {
	notifRepo    repositories.NotificationRepository
	audienceRepo repositories.AudienceRepository
	cache        *cache.RedisCache
	publisher    messaging.Publisher
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewNotificationService creates a new notification service. cache and
// publisher may be nil when the backing systems are unavailable; the service
// degrades to uncached reads and no push-relay publishing.
func NewNotificationService(
	notifRepo repositories.NotificationRepository,
	audienceRepo repositories.AudienceRepository,
	redisCache *cache.RedisCache,
	publisher messaging.Publisher,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *NotificationService {
	return &NotificationService{
		notifRepo:    notifRepo,
		audienceRepo: audienceRepo,
		cache:        redisCache,
		publisher:    publisher,
		metrics:      metricsCollector,
		tracer:       tracer,
	}
}

// Emit resolves the audience, deduplicates against already-delivered
// notifications of the same kind for the same event, and persists the
// remainder in one batched insert. It returns the number of rows created.
//
// The caller must only invoke Emit after the event's state write has been
// durably committed; a crash between the two then leaves a recoverable
// missing notification rather than a dangling one. Emit is idempotent by
// construction: the dedup check re-runs on retry.
func (s *NotificationService) Emit(ctx context.Context, event *models.Event, kind workflow.NotificationType, audience workflow.Audience) (int, error) {
	txn := s.tracer.StartTransaction("notification-fanout")
	defer s.tracer.EndTransaction(txn)

	resolveSpan := s.tracer.StartSpan("resolve-audience", txn)
	recipients, err := s.resolveAudience(ctx, event, audience)
	resolveSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, errors.Wrap(err, "failed to resolve notification audience")
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	// Recurring kinds legitimately repeat across approval cycles, so their
	// dedup window starts at the event's last state transition; reminder
	// kinds are deduplicated over the event's whole lifetime.
	var since time.Time
	if kind.Recurring() {
		since = event.StatusChangedAt
	}

	dedupSpan := s.tracer.StartSpan("dedup-recipients", txn)
	notified, err := s.notifRepo.RecipientsNotifiedSince(ctx, event.ID, kind, since, recipients)
	dedupSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, errors.Wrap(err, "failed to run notification dedup check")
	}

	fresh := make([]uuid.UUID, 0, len(recipients))
	for _, id := range recipients {
		if !notified[id] {
			fresh = append(fresh, id)
		}
	}
	if skipped := len(recipients) - len(fresh); skipped > 0 {
		s.metrics.IncrementCounterBy(metrics.CounterDeduped, int64(skipped))
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	message := messageFor(event, kind)
	revisionMessage, revisionResponse := revisionContext(event, kind)
	rows := make([]models.Notification, len(fresh))
	for i, userID := range fresh {
		rows[i] = models.Notification{
			ID:               uuid.New(),
			UserID:           userID,
			EventID:          &event.ID,
			Type:             kind,
			Message:          message,
			EventTitle:       event.Title,
			EventStatus:      event.Status,
			CommunityName:    event.Community.Name,
			RevisionMessage:  revisionMessage,
			RevisionResponse: revisionResponse,
		}
	}

	writeSpan := s.tracer.StartSpan("create-notifications", txn)
	err = s.notifRepo.CreateBatch(ctx, rows)
	writeSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, errors.Wrap(err, "failed to persist notifications")
	}

	s.metrics.IncrementCounterBy(metrics.CounterNotifications, int64(len(rows)))

	if s.cache != nil {
		if err := s.cache.InvalidateUnreadCounts(ctx, fresh...); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate unread-count cache")
		}
	}

	if s.publisher != nil {
		envelope := messaging.TransitionEnvelope{
			EventID:    event.ID,
			EventTitle: event.Title,
			Status:     event.Status,
			Kind:       kind,
			Recipients: fresh,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishTransition(ctx, envelope); err != nil {
			// Push relay is best-effort; the persisted rows are the source
			// of truth for the polling clients.
			log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("Failed to publish transition envelope")
		}
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("kind", string(kind)).
		Int("recipients", len(rows)).
		Msg("Notifications fanned out")

	return len(rows), nil
}

func (s *NotificationService) resolveAudience(ctx context.Context, event *models.Event, audience workflow.Audience) ([]uuid.UUID, error) {
	switch audience {
	case workflow.AudienceCreator:
		return []uuid.UUID{event.CreatorID}, nil
	case workflow.AudienceDeanOfFaculty:
		dean, err := s.audienceRepo.DeanOfFaculty(ctx, event.Community.CollegeID)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{dean.ID}, nil
	case workflow.AudienceDeanship:
		holders, err := s.audienceRepo.DeanshipHolders(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(holders))
		for i, holder := range holders {
			ids[i] = holder.ID
		}
		return ids, nil
	case workflow.AudienceAttendees:
		return s.audienceRepo.AttendeeIDs(ctx, event.ID)
	default:
		return nil, errors.Errorf("unknown audience %q", audience)
	}
}

// messageFor renders the human-readable notification text for a kind.
func messageFor(event *models.Event, kind workflow.NotificationType) string {
	switch kind {
	case workflow.TypeApprovalPending:
		return fmt.Sprintf("Event %q is pending your approval", event.Title)
	case workflow.TypeNeedsRevision:
		msg, _ := revisionContext(event, kind)
		if msg != nil {
			return fmt.Sprintf("Your event %q needs revision: %s", event.Title, *msg)
		}
		return fmt.Sprintf("Your event %q needs revision", event.Title)
	case workflow.TypeResubmitted:
		return fmt.Sprintf("Event %q was resubmitted with a response to your revision request", event.Title)
	case workflow.TypeApproved:
		return fmt.Sprintf("Your event %q has been approved", event.Title)
	case workflow.TypeRejected:
		msg, _ := revisionContext(event, kind)
		if msg != nil {
			return fmt.Sprintf("Your event %q was rejected: %s", event.Title, *msg)
		}
		return fmt.Sprintf("Your event %q was rejected", event.Title)
	case workflow.TypeReminderOneDay:
		return fmt.Sprintf("Event %q starts tomorrow at %s", event.Title, event.StartTime.Format("15:04"))
	case workflow.TypeReminderOneHour:
		return fmt.Sprintf("Event %q starts in about an hour", event.Title)
	default:
		return fmt.Sprintf("Update for event %q", event.Title)
	}
}

// revisionContext picks the revision message/response pair of the stage that
// produced the notification so clients can render it without another fetch.
func revisionContext(event *models.Event, kind workflow.NotificationType) (*string, *string) {
	switch kind {
	case workflow.TypeNeedsRevision, workflow.TypeResubmitted, workflow.TypeRejected:
	default:
		return nil, nil
	}

	switch event.Status {
	case workflow.StatusNeedsRevisionDean, workflow.StatusPendingDeanApproval:
		return event.DeanRevisionMessage, event.DeanRevisionResponse
	case workflow.StatusNeedsRevisionDeanship, workflow.StatusPendingDeanshipApproval:
		return event.DeanshipRevisionMessage, event.DeanshipRevisionResponse
	case workflow.StatusRejected:
		if event.DeanshipApproval == workflow.MarkRejected {
			return event.DeanshipRevisionMessage, event.DeanshipRevisionResponse
		}
		return event.DeanRevisionMessage, event.DeanRevisionResponse
	}
	return nil, nil
}

// ListForUser gets a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.notifRepo.ListForUser(ctx, userID, limit)
}

// UnreadCount returns a user's unread count, read through the cache. The
// cache TTL keeps staleness well under one client polling interval.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		if count, ok, err := s.cache.GetUnreadCount(ctx, userID); err == nil && ok {
			return count, nil
		}
	}

	count, err := s.notifRepo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetUnreadCount(ctx, userID, count); err != nil {
			log.Warn().Err(err).Msg("Failed to cache unread count")
		}
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.notifRepo.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUnreadCounts(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate unread-count cache")
		}
	}
	return nil
}

// MarkAllRead marks all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notifRepo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUnreadCounts(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate unread-count cache")
		}
	}
	return nil
}
