package repository

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/models"
)

// NotificationRepository defines the interface for the per-user inbox.
type NotificationRepository interface {
	Create(notification *models.Notification) error
	// ListByUser returns the user's notifications, newest first.
	ListByUser(userID uint) ([]*models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create stores a notification.
func (r *notificationRepository) Create(notification *models.Notification) error {
	if notification == nil {
		return errors.New("notification cannot be nil")
	}
	if notification.UserID == 0 {
		return errors.New("notification requires a user ID")
	}
	if err := r.db.Create(notification).Error; err != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to create notification for user %d: %v", notification.UserID, err)
		return fmt.Errorf("failed to create notification for user %d: %w", notification.UserID, err)
	}
	return nil
}

// ListByUser returns all notifications for a user ordered newest first.
func (r *notificationRepository) ListByUser(userID uint) ([]*models.Notification, error) {
	var rows []*models.Notification
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&rows).Error
	if err != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to list notifications for user %d: %v", userID, err)
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	return rows, nil
}
