package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/campushub/services/events/internal/models"
)

// ReservationRepository provides access to study-space reservation data.
type ReservationRepository interface {
	CompleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type reservationRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *gorm.DB, readOnlyDB *gorm.DB) ReservationRepository {
	return &reservationRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// CompleteExpired transitions ACTIVE reservations dated strictly before the
// boundary to COMPLETED in a single bulk update. Re-running matches nothing.
func (r *reservationRepository) CompleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND date < ?", models.ReservationActive, before).
		Update("status", models.ReservationCompleted)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to complete expired reservations")
	}
	return result.RowsAffected, nil
}
