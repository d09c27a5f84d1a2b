package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/workflow"
)

// EventRepository provides access to event data.
type EventRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListApprovedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
	Transition(ctx context.Context, id uuid.UUID, from, to workflow.Status, updates workflow.Updates, at time.Time) (*models.Event, error)
}

type eventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) EventRepository {
	return &eventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// FindByID gets an event with its community and creator preloaded. The write
// database is used so a transition immediately observes its own commit.
func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Preload("Community").
		Preload("Creator").
		First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(workflow.ErrNotFound, "event %s", id)
		}
		return nil, errors.Wrap(err, "failed to get event by ID")
	}
	return &event, nil
}

// ListApprovedStartingBetween gets APPROVED events starting inside [from, to).
func (r *eventRepository) ListApprovedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	var events []models.Event
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Community").
		Where("status = ? AND start_time >= ? AND start_time < ?", workflow.StatusApproved, from, to).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list approved upcoming events")
	}
	return events, nil
}

// Transition advances an event's status with a compare-and-swap on the
// current status. A concurrent transition that already advanced the event
// makes the guarded update match zero rows, which is reported as a conflict;
// a plain read-then-write would admit lost updates here.
func (r *eventRepository) Transition(ctx context.Context, id uuid.UUID, from, to workflow.Status, updates workflow.Updates, at time.Time) (*models.Event, error) {
	columns := transitionColumns(to, updates, at)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Event{}).
			Where("id = ? AND status = ?", id, from).
			Updates(columns)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to update event status")
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Event{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return errors.Wrap(err, "failed to check event existence")
			}
			if count == 0 {
				return errors.Wrapf(workflow.ErrNotFound, "event %s", id)
			}
			return errors.Wrapf(workflow.ErrConflict, "event %s is no longer in state %s", id, from)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func transitionColumns(to workflow.Status, updates workflow.Updates, at time.Time) map[string]interface{} {
	columns := map[string]interface{}{
		"status":            to,
		"status_changed_at": at,
	}
	if updates.FacultyApproval != nil {
		columns["faculty_approval"] = *updates.FacultyApproval
	}
	if updates.DeanApproval != nil {
		columns["dean_approval"] = *updates.DeanApproval
	}
	if updates.DeanshipApproval != nil {
		columns["deanship_approval"] = *updates.DeanshipApproval
	}
	if updates.DeanRevisionMessage != nil {
		columns["dean_revision_message"] = *updates.DeanRevisionMessage
	}
	if updates.DeanRevisionResponse != nil {
		columns["dean_revision_response"] = *updates.DeanRevisionResponse
	}
	if updates.DeanshipRevisionMessage != nil {
		columns["deanship_revision_message"] = *updates.DeanshipRevisionMessage
	}
	if updates.DeanshipRevisionResponse != nil {
		columns["deanship_revision_response"] = *updates.DeanshipRevisionResponse
	}
	return columns
}
