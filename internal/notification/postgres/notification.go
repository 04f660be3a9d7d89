package postgres

import (
	"context"
	"time"

	notificationDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/notification"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationDatamodel.Notification) error {
	return database.Conn(ctx, r.db).Create(n).Error
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*notificationDatamodel.Notification, error) {
	q := database.Conn(ctx, r.db).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var rows []*notificationDatamodel.Notification
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead is scoped to the owner so one user cannot touch another's inbox.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error) {
	var n notificationDatamodel.Notification
	res := database.Conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&n)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if n.IsRead {
		return true, nil
	}

	err := database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	return err == nil, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}
