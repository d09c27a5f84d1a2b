package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/workflow"
)

func TestReminderKindWindows(t *testing.T) {
	cases := []struct {
		until time.Duration
		kind  workflow.NotificationType
		due   bool
	}{
		{30 * time.Minute, workflow.TypeReminderOneHour, true},
		{time.Hour, workflow.TypeReminderOneHour, true},
		{time.Hour + time.Minute, "", false},
		{23 * time.Hour, "", false},
		{23*time.Hour + time.Minute, workflow.TypeReminderOneDay, true},
		{24 * time.Hour, workflow.TypeReminderOneDay, true},
		{24*time.Hour + 15*time.Minute, workflow.TypeReminderOneDay, true},
		{24*time.Hour + 16*time.Minute, "", false},
		{0, "", false},
		{-5 * time.Minute, "", false},
	}

	for _, tc := range cases {
		kind, due := reminderKind(tc.until)
		require.Equal(t, tc.due, due, "until=%s", tc.until)
		require.Equal(t, tc.kind, kind, "until=%s", tc.until)
	}
}

func newReminderFixture(t *testing.T, eventRepo *MockEventRepository, notifRepo *MockNotificationRepository, audienceRepo *MockAudienceRepository, now time.Time) *ReminderService {
	t.Helper()
	notifier := newTestNotificationService(t, notifRepo, audienceRepo)
	service := NewReminderService(eventRepo, notifier, metrics.NewMetrics(), config.SchedulerConfig{})
	service.now = func() time.Time { return now }
	return service
}

func reminderEvent(startsIn time.Duration, now time.Time) models.Event {
	event := *testEvent(workflow.StatusApproved)
	event.StartTime = now.Add(startsIn)
	return event
}

func TestRunSendsDueReminders(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	service := newReminderFixture(t, eventRepo, notifRepo, audienceRepo, now)

	soon := reminderEvent(30*time.Minute, now)
	tomorrow := reminderEvent(23*time.Hour+30*time.Minute, now)
	farOff := reminderEvent(10*time.Hour, now)

	eventRepo.On("ListApprovedStartingBetween", mock.Anything, now, now.Add(24*time.Hour+15*time.Minute)).
		Return([]models.Event{soon, tomorrow, farOff}, nil)

	audienceRepo.On("AttendeeIDs", mock.Anything, soon.ID).Return([]uuid.UUID{uuid.New()}, nil)
	audienceRepo.On("AttendeeIDs", mock.Anything, tomorrow.ID).Return([]uuid.UUID{uuid.New()}, nil)
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, soon.ID, workflow.TypeReminderOneHour, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, tomorrow.ID, workflow.TypeReminderOneDay, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	notifRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Twice()

	require.NoError(t, service.Run(context.Background()))

	// The event outside both windows never reaches the fan-out path.
	audienceRepo.AssertNotCalled(t, "AttendeeIDs", mock.Anything, farOff.ID)
	notifRepo.AssertExpectations(t)
}

// An event just above the 24h lookahead must get its 1-day reminder on this
// run, not one or two ticks later, so the scan range carries the same pad as
// the window check.
func TestRunReachesEventsAboveTheLookahead(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	service := newReminderFixture(t, eventRepo, notifRepo, audienceRepo, now)

	justOver := reminderEvent(24*time.Hour+10*time.Minute, now)

	// The expectations mirror the repository's [from, to) range semantics:
	// the event is only returned when the upper bound clears its start time.
	eventRepo.On("ListApprovedStartingBetween", mock.Anything, mock.Anything, mock.MatchedBy(func(to time.Time) bool {
		return justOver.StartTime.Before(to)
	})).Return([]models.Event{justOver}, nil)
	eventRepo.On("ListApprovedStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Event{}, nil)

	audienceRepo.On("AttendeeIDs", mock.Anything, justOver.ID).Return([]uuid.UUID{uuid.New()}, nil)
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, justOver.ID, workflow.TypeReminderOneDay, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	notifRepo.On("CreateBatch", mock.Anything, mock.MatchedBy(func(rows []models.Notification) bool {
		return len(rows) == 1 && rows[0].Type == workflow.TypeReminderOneDay
	})).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	notifRepo.AssertExpectations(t)
}

func TestRunContinuesPastFailingEvents(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	service := newReminderFixture(t, eventRepo, notifRepo, audienceRepo, now)

	broken := reminderEvent(20*time.Minute, now)
	healthy := reminderEvent(45*time.Minute, now)

	eventRepo.On("ListApprovedStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Event{broken, healthy}, nil)

	audienceRepo.On("AttendeeIDs", mock.Anything, broken.ID).
		Return(nil, errors.New("attendee lookup failed"))
	audienceRepo.On("AttendeeIDs", mock.Anything, healthy.ID).Return([]uuid.UUID{uuid.New()}, nil)
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, healthy.ID, workflow.TypeReminderOneHour, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	notifRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()

	// One event failing never fails the run.
	require.NoError(t, service.Run(context.Background()))
	notifRepo.AssertExpectations(t)
	audienceRepo.AssertExpectations(t)
}

func TestRunGuardSuppressesRepeatsAcrossRuns(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	service := newReminderFixture(t, eventRepo, notifRepo, audienceRepo, now)

	event := reminderEvent(40*time.Minute, now)

	eventRepo.On("ListApprovedStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Event{event}, nil)
	audienceRepo.On("AttendeeIDs", mock.Anything, event.ID).Return([]uuid.UUID{uuid.New()}, nil).Once()
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, event.ID, workflow.TypeReminderOneHour, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil).Once()
	notifRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	require.NoError(t, service.Run(context.Background()))

	// The second run is absorbed by the in-process guard before any query.
	audienceRepo.AssertExpectations(t)
	notifRepo.AssertExpectations(t)
}

func TestRunFailedEmitIsNotGuarded(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	eventRepo := new(MockEventRepository)
	notifRepo := new(MockNotificationRepository)
	audienceRepo := new(MockAudienceRepository)
	service := newReminderFixture(t, eventRepo, notifRepo, audienceRepo, now)

	event := reminderEvent(40*time.Minute, now)

	eventRepo.On("ListApprovedStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Event{event}, nil)
	audienceRepo.On("AttendeeIDs", mock.Anything, event.ID).
		Return(nil, errors.New("transient failure")).Once()
	audienceRepo.On("AttendeeIDs", mock.Anything, event.ID).Return([]uuid.UUID{uuid.New()}, nil).Once()
	notifRepo.On("RecipientsNotifiedSince", mock.Anything, event.ID, workflow.TypeReminderOneHour, mock.Anything, mock.Anything).
		Return(map[uuid.UUID]bool{}, nil)
	notifRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()

	// First run fails the emit, second run retries because the guard only
	// records successful sends.
	require.NoError(t, service.Run(context.Background()))
	require.NoError(t, service.Run(context.Background()))
	notifRepo.AssertExpectations(t)
	audienceRepo.AssertExpectations(t)
}
