package repositories

import (
	"github.com/timiebi/alertos/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification history operations
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	GetByRecipient(recipient string, page, limit int) ([]models.Notification, int64, error)
	GetUnreadCount(recipient string) (int64, error)
	MarkAsRead(notificationID uint) error
	MarkAllAsRead(recipient string) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a NotificationRepository backed by PostgreSQL
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *postgresNotificationRepository) GetByRecipient(recipient string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	r.db.Model(&models.Notification{}).Where("recipient = ?", recipient).Count(&total)

	offset := (page - 1) * limit
	err := r.db.Where("recipient = ?", recipient).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetUnreadCount(recipient string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Where("recipient = ? AND is_read = false", recipient).Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(notificationID uint) error {
	return r.db.Model(&models.Notification{}).Where("id = ?", notificationID).Update("is_read", true).Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(recipient string) error {
	return r.db.Model(&models.Notification{}).Where("recipient = ? AND is_read = false", recipient).Update("is_read", true).Error
}
