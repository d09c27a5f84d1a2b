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

// NotificationRepository provides access to notification data.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	RecipientsNotifiedSince(ctx context.Context, eventID uuid.UUID, kind workflow.NotificationType, since time.Time, candidates []uuid.UUID) (map[uuid.UUID]bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB, readOnlyDB *gorm.DB) NotificationRepository {
	return &notificationRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// CreateBatch inserts notifications in a single batched write.
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return errors.Wrap(err, "failed to create notifications")
	}
	return nil
}

// RecipientsNotifiedSince returns, out of the candidate recipients, those who
// already hold a notification of the given kind for the event created at or
// after the window start. The dedup query runs against the write database so
// a racing emit sees the rows its rival just committed.
func (r *notificationRepository) RecipientsNotifiedSince(ctx context.Context, eventID uuid.UUID, kind workflow.NotificationType, since time.Time, candidates []uuid.UUID) (map[uuid.UUID]bool, error) {
	notified := make(map[uuid.UUID]bool)
	if len(candidates) == 0 {
		return notified, nil
	}

	var userIDs []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("event_id = ? AND type = ? AND user_id IN ?", eventID, kind, candidates)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Pluck("user_id", &userIDs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query already-notified recipients")
	}

	for _, id := range userIDs {
		notified[id] = true
	}
	return notified, nil
}

// ListForUser gets a user's notifications, newest first.
func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	return notifications, nil
}

// UnreadCount counts a user's unread notifications.
func (r *notificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	return count, nil
}

// MarkRead marks one notification as read. Marking an already-read row again
// is a no-op, which keeps the endpoint safe to poll.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark notification as read")
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check notification existence")
		}
		if count == 0 {
			return errors.Wrapf(workflow.ErrNotFound, "notification %s", id)
		}
	}
	return nil
}

// MarkAllRead marks all of a user's notifications as read.
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark notifications as read")
	}
	return nil
}
