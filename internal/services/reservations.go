package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/campushub/services/events/internal/metrics"
	"example.com/campushub/services/events/internal/repositories"
)

// ReservationService reconciles stale study-space reservations.
type ReservationService struct {
	reservationRepo repositories.ReservationRepository
	metrics         *metrics.Metrics
	now             func() time.Time
}

// NewReservationService creates a new reservation service.
func NewReservationService(reservationRepo repositories.ReservationRepository, metricsCollector *metrics.Metrics) *ReservationService {
	return &ReservationService{
		reservationRepo: reservationRepo,
		metrics:         metricsCollector,
		now:             time.Now,
	}
}

// CompleteExpired transitions ACTIVE reservations whose date has passed to
// COMPLETED. The boundary is UTC midnight of today, so "yesterday" means the
// same thing regardless of server locale. Re-running changes nothing.
func (s *ReservationService) CompleteExpired(ctx context.Context) (int64, error) {
	started := s.now().UTC()
	boundary := started.Truncate(24 * time.Hour)

	completed, err := s.reservationRepo.CompleteExpired(ctx, boundary)
	if err != nil {
		return 0, err
	}

	s.metrics.RecordTimer(metrics.TimerCleanupRun, time.Since(started).Milliseconds())
	log.Info().
		Int64("completed", completed).
		Time("boundary", boundary).
		Msg("Reservation cleanup completed")

	return completed, nil
}
