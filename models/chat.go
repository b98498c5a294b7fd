package models

import (
	"time"
)

// Chat is a conversation thread. LastMessage and MessagesCount are
// denormalized from the thread's messages and must be updated in the
// same transaction as each message insert.
type Chat struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"index"`
	Title         *string   `json:"title"`
	LastMessage   *string   `json:"last_message"`
	MessagesCount int       `json:"messages_count" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Chat model.
func (Chat) TableName() string {
	return "chats"
}

// Serialize returns the generic row shape for a chat.
func (c *Chat) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":             c.ID,
		"user_id":        c.UserID,
		"title":          strPtrOrNil(c.Title),
		"last_message":   strPtrOrNil(c.LastMessage),
		"messages_count": c.MessagesCount,
		"created_at":     isoTime(c.CreatedAt),
		"updated_at":     isoTime(c.UpdatedAt),
	}
}

// Message roles as stored in the content bag.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message belongs to exactly one chat. The body is stored as an opaque
// bag: {"role":"user|assistant","text":"...","version":"V1|V2|V3","meta":{}}.
type Message struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ChatID      uint      `json:"chat_id" gorm:"index;not null"`
	UserID      uint      `json:"user_id" gorm:"index"`
	ContentJSON JSONMap   `json:"content" gorm:"column:content_json;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

// NewMessage builds a message with the standard content bag.
func NewMessage(chatID, userID uint, role, text, version string) *Message {
	return &Message{
		ChatID: chatID,
		UserID: userID,
		ContentJSON: JSONMap{
			"role":    role,
			"text":    text,
			"version": version,
			"meta":    map[string]interface{}{},
		},
	}
}

// Text returns the message body text from the content bag.
func (m *Message) Text() string {
	if m.ContentJSON == nil {
		return ""
	}
	if s, ok := m.ContentJSON["text"].(string); ok {
		return s
	}
	return ""
}

// Role returns the role recorded in the content bag, if any.
func (m *Message) Role() string {
	if m.ContentJSON == nil {
		return ""
	}
	if s, ok := m.ContentJSON["role"].(string); ok {
		return s
	}
	return ""
}

// Serialize returns the generic row shape for a message. The stored
// content_json column surfaces under the external "content" alias, and
// the role is hoisted to the top level for convenience.
func (m *Message) Serialize() map[string]interface{} {
	out := map[string]interface{}{
		"id":         m.ID,
		"chat_id":    m.ChatID,
		"user_id":    m.UserID,
		"content":    map[string]interface{}(m.ContentJSON),
		"created_at": isoTime(m.CreatedAt),
	}
	if role := m.Role(); role != "" {
		out["role"] = role
	}
	return out
}
