package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/workflow"
)

type approvalFixture struct {
	eventRepo    *MockEventRepository
	notifRepo    *MockNotificationRepository
	audienceRepo *MockAudienceRepository
	metrics      *metrics.Metrics
	service      *ApprovalService
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	metricsCollector := metrics.NewMetrics()
	tracer := newTestTracer(t)

	notifier := NewNotificationService(notifRepo, audienceRepo, nil, nil, metricsCollector, tracer)
	service := NewApprovalService(eventRepo, audienceRepo, notifier, nil, metricsCollector, tracer)

	return &approvalFixture{
		eventRepo:    eventRepo,
		notifRepo:    notifRepo,
		audienceRepo: audienceRepo,
		metrics:      metricsCollector,
		service:      service,
	}
}

func TestActDeanApprovalCommitsThenNotifies(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanApproval)
	collegeID := event.Community.CollegeID
	dean := &models.User{ID: uuid.New(), Role: workflow.RoleDeanOfFaculty, CollegeID: &collegeID}
	holders := []models.User{{ID: uuid.New()}}

	updated := *event
	updated.Status = workflow.StatusPendingDeanshipApproval
	updated.DeanApproval = workflow.MarkApproved
	updated.StatusChangedAt = time.Now().UTC()

	f.audienceRepo.On("GetUser", mock.Anything, dean.ID).Return(dean, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanApproval, workflow.StatusPendingDeanshipApproval,
		mock.MatchedBy(func(updates workflow.Updates) bool {
			return updates.DeanApproval != nil && *updates.DeanApproval == workflow.MarkApproved
		}), mock.Anything).Return(&updated, nil)

	// The next stage gets told after the commit
	f.audienceRepo.On("DeanshipHolders", mock.Anything).Return(holders, nil)
	f.notifRepo.On("RecipientsNotifiedSince", mock.Anything, event.ID, workflow.TypeApprovalPending, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	f.notifRepo.On("CreateBatch", mock.Anything, mock.MatchedBy(func(rows []models.Notification) bool {
		return len(rows) == 1 && rows[0].UserID == holders[0].ID && rows[0].Type == workflow.TypeApprovalPending
	})).Return(nil)

	result, err := f.service.Act(context.Background(), dean.ID, event.ID, workflow.ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingDeanshipApproval, result.Status)

	f.eventRepo.AssertExpectations(t)
	f.notifRepo.AssertExpectations(t)
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.CounterTransitions])
}

func TestActConflictSurfacesWithoutFanout(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanshipApproval)
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanshipApproval, workflow.StatusApproved,
		mock.Anything, mock.Anything).
		Return(nil, errors.Wrap(workflow.ErrConflict, "event already advanced"))

	result, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionApprove, "")
	require.ErrorIs(t, err, workflow.ErrConflict)
	require.Nil(t, result)

	f.notifRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	f.eventRepo.AssertNumberOfCalls(t, "Transition", 1)
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.CounterConflicts])
	require.Zero(t, f.metrics.GetCounters()[metrics.CounterTransitions])
}

func TestActUnauthorizedActorNeverTouchesTheStore(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanApproval)
	student := &models.User{ID: uuid.New(), Role: workflow.RoleStudent}

	f.audienceRepo.On("GetUser", mock.Anything, student.ID).Return(student, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)

	result, err := f.service.Act(context.Background(), student.ID, event.ID, workflow.ActionApprove, "")
	require.ErrorIs(t, err, workflow.ErrUnauthorized)
	require.Nil(t, result)

	f.eventRepo.AssertNotCalled(t, "Transition",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActUnknownEvent(t *testing.T) {
	f := newApprovalFixture(t)

	actor := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}
	eventID := uuid.New()

	f.audienceRepo.On("GetUser", mock.Anything, actor.ID).Return(actor, nil)
	f.eventRepo.On("FindByID", mock.Anything, eventID).
		Return(nil, errors.Wrapf(workflow.ErrNotFound, "event %s", eventID))

	_, err := f.service.Act(context.Background(), actor.ID, eventID, workflow.ActionApprove, "")
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestActRetriesTransientStorageFailureFromTheTop(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanshipApproval)
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	updated := *event
	updated.Status = workflow.StatusApproved
	updated.DeanshipApproval = workflow.MarkApproved
	updated.StatusChangedAt = time.Now().UTC()

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	// The whole load-decide-commit sequence re-runs, so the event is loaded
	// again before the second commit attempt.
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil).Twice()
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanshipApproval, workflow.StatusApproved,
		mock.Anything, mock.Anything).
		Return(nil, errors.New("write: connection reset by peer")).Once()
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanshipApproval, workflow.StatusApproved,
		mock.Anything, mock.Anything).
		Return(&updated, nil).Once()

	f.notifRepo.On("RecipientsNotifiedSince", mock.Anything, event.ID, workflow.TypeApproved, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	f.notifRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, result.Status)

	f.eventRepo.AssertExpectations(t)
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.CounterTransitionErrors])
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.CounterTransitions])
}

func TestActGivesUpAfterOneRetry(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanshipApproval)
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanshipApproval, workflow.StatusApproved,
		mock.Anything, mock.Anything).
		Return(nil, errors.New("write: connection reset by peer"))

	_, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionApprove, "")
	require.Error(t, err)

	f.eventRepo.AssertNumberOfCalls(t, "Transition", 2)
	f.notifRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	require.Equal(t, int64(2), f.metrics.GetCounters()[metrics.CounterTransitionErrors])
}

func TestActNeverRetriesWorkflowErrors(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanshipApproval)
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)
	f.eventRepo.On("Transition", mock.Anything, event.ID,
		workflow.StatusPendingDeanshipApproval, workflow.StatusApproved,
		mock.Anything, mock.Anything).
		Return(nil, errors.Wrapf(workflow.ErrNotFound, "event %s", event.ID))

	_, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionApprove, "")
	require.ErrorIs(t, err, workflow.ErrNotFound)

	f.eventRepo.AssertNumberOfCalls(t, "Transition", 1)
	f.eventRepo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestActRejectsUnrecognizedStatus(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent("DRAFT")
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)

	_, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionApprove, "")
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	f.eventRepo.AssertNotCalled(t, "Transition",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActValidationFailureLeavesEventUntouched(t *testing.T) {
	f := newApprovalFixture(t)

	event := testEvent(workflow.StatusPendingDeanshipApproval)
	deanship := &models.User{ID: uuid.New(), Role: workflow.RoleDeanship}

	f.audienceRepo.On("GetUser", mock.Anything, deanship.ID).Return(deanship, nil)
	f.eventRepo.On("FindByID", mock.Anything, event.ID).Return(event, nil)

	_, err := f.service.Act(context.Background(), deanship.ID, event.ID, workflow.ActionReject, "   ")
	require.ErrorIs(t, err, workflow.ErrValidation)

	f.eventRepo.AssertNotCalled(t, "Transition",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
