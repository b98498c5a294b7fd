package models

import "time"

// Notification is a per-user inbox entry. A null ReadAt means unread;
// setting it is the only mutation a notification ever receives.
type Notification struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"index;not null"`
	Title     string     `json:"title" gorm:"not null"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for the Notification model.
func (Notification) TableName() string {
	return "notifications"
}

// Serialize returns the generic row shape for a notification.
func (n *Notification) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":         n.ID,
		"user_id":    n.UserID,
		"title":      n.Title,
		"body":       n.Body,
		"read_at":    isoTimePtr(n.ReadAt),
		"created_at": isoTime(n.CreatedAt),
	}
}
