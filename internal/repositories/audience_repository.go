package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/workflow"
)

// AudienceRepository resolves notification audiences and actor identities.
// All lookups are read-only; role assignment is owned by the admin subsystem.
type AudienceRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	DeanOfFaculty(ctx context.Context, collegeID uuid.UUID) (*models.User, error)
	DeanshipHolders(ctx context.Context) ([]models.User, error)
	AttendeeIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

type audienceRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAudienceRepository creates a new audience repository
func NewAudienceRepository(db *gorm.DB, readOnlyDB *gorm.DB) AudienceRepository {
	return &audienceRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetUser gets a user by ID.
func (r *audienceRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.readOnlyDB.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(workflow.ErrNotFound, "user %s", id)
		}
		return nil, errors.Wrap(err, "failed to get user by ID")
	}
	return &user, nil
}

// DeanOfFaculty gets the dean-of-faculty office holder for a college. Each
// college has at most one.
func (r *audienceRepository) DeanOfFaculty(ctx context.Context, collegeID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.readOnlyDB.WithContext(ctx).
		Where("role = ? AND college_id = ?", workflow.RoleDeanOfFaculty, collegeID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(workflow.ErrNotFound, "dean of faculty for college %s", collegeID)
		}
		return nil, errors.Wrap(err, "failed to get dean of faculty")
	}
	return &user, nil
}

// DeanshipHolders gets all deanship-of-student-affairs office holders.
func (r *audienceRepository) DeanshipHolders(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.readOnlyDB.WithContext(ctx).
		Where("role = ?", workflow.RoleDeanship).
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get deanship holders")
	}
	return users, nil
}

// AttendeeIDs gets the union of an event's registrants and savers.
func (r *audienceRepository) AttendeeIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var registrants []uuid.UUID
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Where("event_id = ?", eventID).
		Pluck("user_id", &registrants).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event registrants")
	}

	var savers []uuid.UUID
	err = r.readOnlyDB.WithContext(ctx).
		Model(&models.SavedEvent{}).
		Where("event_id = ?", eventID).
		Pluck("user_id", &savers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event savers")
	}

	seen := make(map[uuid.UUID]bool, len(registrants)+len(savers))
	union := make([]uuid.UUID, 0, len(registrants)+len(savers))
	for _, id := range append(registrants, savers...) {
		if !seen[id] {
			seen[id] = true
			union = append(union, id)
		}
	}
	return union, nil
}
