package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/campushub/services/events/internal/metrics"
)

func TestCompleteExpiredUsesUTCDayBoundary(t *testing.T) {
	repo := new(MockReservationRepository)
	service := NewReservationService(repo, metrics.NewMetrics())
	service.now = func() time.Time {
		return time.Date(2026, 3, 5, 10, 30, 0, 0, time.FixedZone("EAT", 3*3600))
	}

	boundary := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	repo.On("CompleteExpired", mock.Anything, boundary).Return(int64(3), nil)

	completed, err := service.CompleteExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), completed)
	repo.AssertExpectations(t)
}

func TestCompleteExpiredIsIdempotent(t *testing.T) {
	repo := new(MockReservationRepository)
	service := NewReservationService(repo, metrics.NewMetrics())

	repo.On("CompleteExpired", mock.Anything, mock.Anything).Return(int64(2), nil).Once()
	repo.On("CompleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Once()

	first, err := service.CompleteExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), first)

	second, err := service.CompleteExpired(context.Background())
	require.NoError(t, err)
	require.Zero(t, second)
}
