package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/repositories"
	"example.com/campushub/services/events/internal/search"
	"example.com/campushub/services/events/internal/tracing"
	"example.com/campushub/services/events/internal/workflow"
)

// ApprovalService orchestrates workflow transitions: decide, commit, fan out.
type ApprovalService struct {
	eventRepo    repositories.EventRepository
	audienceRepo repositories.AudienceRepository
	notifier     *NotificationService
	elastic      *search.ElasticClient
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewApprovalService creates a new approval service. elastic may be nil when
// search is unavailable; approved events then simply go unindexed.
func NewApprovalService(
	eventRepo repositories.EventRepository,
	audienceRepo repositories.AudienceRepository,
	notifier *NotificationService,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *ApprovalService {
	return &ApprovalService{
		eventRepo:    eventRepo,
		audienceRepo: audienceRepo,
		notifier:     notifier,
		elastic:      elasticClient,
		metrics:      metricsCollector,
		tracer:       tracer,
	}
}

// Act applies one workflow action to an event on behalf of the actor and
// returns the updated event. The status write is committed before any
// notification is emitted, and is guarded by a compare-and-swap on the status
// the decision was computed against, so two racing actions on the same event
// yield exactly one success and one conflict.
func (s *ApprovalService) Act(ctx context.Context, actorID, eventID uuid.UUID, action workflow.Action, reason string) (*models.Event, error) {
	txn := s.tracer.StartTransaction("approval-action")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "event_id", eventID.String())
	s.tracer.AddAttribute(txn, "action", string(action))

	actor, err := s.audienceRepo.GetUser(ctx, actorID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	var (
		event   *models.Event
		outcome workflow.Outcome
		updated *models.Event
	)
	// A transient storage failure during the commit re-runs the whole load,
	// decide, commit sequence once from the top; workflow errors, conflicts
	// included, surface immediately and are never retried.
	for attempt := 0; ; attempt++ {
		event, err = s.eventRepo.FindByID(ctx, eventID)
		if err != nil {
			s.tracer.RecordError(txn, err)
			return nil, err
		}
		if !event.Status.Valid() {
			err = errors.Wrapf(workflow.ErrInvalidTransition, "event %s holds unrecognized status %s", event.ID, event.Status)
			s.tracer.RecordError(txn, err)
			return nil, err
		}

		outcome, err = workflow.Decide(
			workflow.Subject{
				EventID:   event.ID,
				Status:    event.Status,
				CreatorID: event.CreatorID,
				CollegeID: event.Community.CollegeID,
			},
			workflow.Actor{
				UserID:    actor.ID,
				Role:      actor.Role,
				CollegeID: actor.CollegeID,
			},
			workflow.Request{Action: action, Reason: reason},
		)
		if err != nil {
			s.tracer.RecordError(txn, err)
			return nil, err
		}

		commitSpan := s.tracer.StartSpan("commit-transition", txn)
		updated, err = s.eventRepo.Transition(ctx, event.ID, event.Status, outcome.NextStatus, outcome.Updates, time.Now().UTC())
		commitSpan.End()
		if err == nil {
			break
		}
		if errors.Is(err, workflow.ErrConflict) {
			s.metrics.IncrementCounter(metrics.CounterConflicts)
			s.tracer.RecordError(txn, err)
			return nil, err
		}
		s.metrics.IncrementCounter(metrics.CounterTransitionErrors)
		if !transientStorageError(err) || attempt > 0 {
			s.tracer.RecordError(txn, err)
			return nil, err
		}
		log.Warn().
			Err(err).
			Str("event_id", eventID.String()).
			Msg("Retrying transition after transient storage failure")
	}

	s.metrics.IncrementCounter(metrics.CounterTransitions)
	log.Info().
		Str("event_id", event.ID.String()).
		Str("from", string(event.Status)).
		Str("to", string(updated.Status)).
		Str("actor_id", actor.ID.String()).
		Msg("Event transitioned")

	// The transition is durable from here on; fan-out failures leave only a
	// recoverable missing notification, never a half-applied transition.
	for _, effect := range outcome.Effects {
		s.emitWithRetry(ctx, updated, effect)
	}

	if updated.Status == workflow.StatusApproved && s.elastic != nil {
		indexSpan := s.tracer.StartSpan("index-event", txn)
		if err := s.elastic.IndexEvent(ctx, updated); err != nil {
			log.Warn().Err(err).Str("event_id", updated.ID.String()).Msg("Failed to index approved event")
			s.tracer.RecordError(txn, err)
		}
		indexSpan.End()
	}

	return updated, nil
}

// transientStorageError reports whether a transition failure is outside the
// workflow error taxonomy and so worth one re-run of the commit sequence.
func transientStorageError(err error) bool {
	switch {
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrUnauthorized),
		errors.Is(err, workflow.ErrValidation):
		return false
	}
	return true
}

// emitWithRetry emits one effect, retrying once on transient failure. The
// dedup check re-runs inside Emit, so the retry cannot double-deliver.
func (s *ApprovalService) emitWithRetry(ctx context.Context, event *models.Event, effect workflow.Effect) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if _, lastErr = s.notifier.Emit(ctx, event, effect.Kind, effect.Audience); lastErr == nil {
			return
		}
		if errors.Is(lastErr, workflow.ErrNotFound) {
			break
		}
	}
	log.Error().
		Err(lastErr).
		Str("event_id", event.ID.String()).
		Str("kind", string(effect.Kind)).
		Msg("Failed to emit notification effect")
}
