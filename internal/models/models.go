package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/campushub/services/events/internal/workflow"
)

// College groups communities and scopes the per-college approval offices.
type College struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
}

// User is a platform account. Role assignment is owned by the admin
// subsystem; this service only reads it.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"not null;uniqueIndex" json:"email"`
	Role      workflow.Role  `gorm:"not null;index" json:"role"`
	CollegeID *uuid.UUID     `gorm:"type:uuid;index" json:"college_id"`
	College   *College       `gorm:"foreignKey:CollegeID" json:"-"`
}

// Community is a student club scoped to a college.
type Community struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	CollegeID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"college_id"`
	LeaderID    uuid.UUID      `gorm:"type:uuid;not null" json:"leader_id"`
	College     College        `gorm:"foreignKey:CollegeID" json:"-"`
	Leader      User           `gorm:"foreignKey:LeaderID" json:"-"`
}

// Event is the approval-workflow subject. Status is the single source of
// truth for the workflow position; the three markers are the audit trail.
type Event struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `json:"description"`
	Location        string          `json:"location"`
	StartTime       time.Time       `gorm:"not null;index" json:"start_time"`
	EndTime         time.Time       `gorm:"not null" json:"end_time"`
	Capacity        int             `gorm:"not null;default:0" json:"capacity"`
	CommunityID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"community_id"`
	CreatorID       uuid.UUID       `gorm:"type:uuid;not null" json:"creator_id"`
	Status          workflow.Status `gorm:"not null;index;default:'PENDING_FACULTY_APPROVAL'" json:"status"`
	StatusChangedAt time.Time       `gorm:"not null" json:"status_changed_at"`

	FacultyApproval  workflow.ApprovalMark `gorm:"not null;default:'PENDING'" json:"faculty_leader_approval"`
	DeanApproval     workflow.ApprovalMark `gorm:"not null;default:'PENDING'" json:"dean_of_faculty_approval"`
	DeanshipApproval workflow.ApprovalMark `gorm:"not null;default:'PENDING'" json:"deanship_approval"`

	DeanRevisionMessage      *string `json:"dean_revision_message"`
	DeanRevisionResponse     *string `json:"dean_revision_response"`
	DeanshipRevisionMessage  *string `json:"deanship_revision_message"`
	DeanshipRevisionResponse *string `json:"deanship_revision_response"`

	Community Community `gorm:"foreignKey:CommunityID" json:"-"`
	Creator   User      `gorm:"foreignKey:CreatorID" json:"-"`
}

// EventRegistration records a user's registration for an event.
type EventRegistration struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	EventID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_registration_event_user,unique" json:"event_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_registration_event_user,unique" json:"user_id"`
}

// SavedEvent is a bookmark; savers receive reminders alongside registrants.
type SavedEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	EventID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_saved_event_user,unique" json:"event_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_saved_event_user,unique" json:"user_id"`
}

// Notification is a fan-out record. Rows are created only by the fan-out
// service and mutated only by marking read. Event context is denormalized so
// clients render without extra joins.
type Notification struct {
	ID        uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time                 `gorm:"autoCreateTime;index" json:"created_at"`
	UserID    uuid.UUID                 `gorm:"type:uuid;not null;index:idx_notification_user_read" json:"user_id"`
	EventID   *uuid.UUID                `gorm:"type:uuid;index:idx_notification_event_type" json:"event_id"`
	Type      workflow.NotificationType `gorm:"not null;index:idx_notification_event_type" json:"type"`
	Message   string                    `gorm:"not null" json:"message"`
	Read      bool                      `gorm:"not null;default:false;index:idx_notification_user_read" json:"read"`

	EventTitle       string          `json:"event_title"`
	EventStatus      workflow.Status `json:"event_status"`
	CommunityName    string          `json:"community_name"`
	RevisionMessage  *string         `json:"revision_message,omitempty"`
	RevisionResponse *string         `json:"revision_response,omitempty"`
}

// ReservationStatus is the study-space reservation lifecycle.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// StudySpace is a bookable room; capacity counting is an external concern.
type StudySpace struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Location  string         `json:"location"`
	Capacity  int            `gorm:"not null;default:0" json:"capacity"`
}

// Reservation is a study-space booking. The cleanup scheduler's only concern
// is the ACTIVE to COMPLETED transition once Date has passed.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`
	SpaceID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"space_id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Date      time.Time         `gorm:"not null;index" json:"date"`
	StartTime time.Time         `gorm:"not null" json:"start_time"`
	EndTime   time.Time         `gorm:"not null" json:"end_time"`
	Status    ReservationStatus `gorm:"not null;default:'ACTIVE';index" json:"status"`
	Space     StudySpace        `gorm:"foreignKey:SpaceID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&College{},
		&User{},
		&Community{},
		&Event{},
		&EventRegistration{},
		&SavedEvent{},
		&Notification{},
		&StudySpace{},
		&Reservation{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
