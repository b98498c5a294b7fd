package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/models"
)

// ChatRepository defines the interface for interacting with chat
// threads and their messages.
type ChatRepository interface {
	CreateChat(chat *models.Chat) error
	// GetChat returns (nil, nil) when the chat does not exist.
	GetChat(chatID uint) (*models.Chat, error)
	// CreateMessage inserts a message and updates the parent chat's
	// denormalized last_message / messages_count in one transaction.
	CreateMessage(message *models.Message) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateChat creates a new chat thread.
func (r *chatRepository) CreateChat(chat *models.Chat) error {
	if chat == nil {
		return errors.New("chat cannot be nil")
	}
	if err := r.db.Create(chat).Error; err != nil {
		log.Printf("ERROR: [ChatRepository] Failed to create chat for user %d: %v", chat.UserID, err)
		return fmt.Errorf("failed to create chat for user %d: %w", chat.UserID, err)
	}
	log.Printf("INFO: [ChatRepository] Created chat ID %d for user %d.", chat.ID, chat.UserID)
	return nil
}

// GetChat retrieves a chat thread by ID.
func (r *chatRepository) GetChat(chatID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.First(&chat, chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [ChatRepository] Failed to fetch chat ID %d: %v", chatID, err)
		return nil, fmt.Errorf("failed to fetch chat ID %d: %w", chatID, err)
	}
	return &chat, nil
}

// CreateMessage inserts the message and keeps the parent chat's
// counters consistent with its message set. The parent update rides the
// same transaction as the insert, so the thread never observes a
// message without the matching count bump.
func (r *chatRepository) CreateMessage(message *models.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.ChatID == 0 {
		return errors.New("message requires a chat ID")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, message.ChatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("chat ID %d not found", message.ChatID)
			}
			return err
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		text := message.Text()
		return tx.Model(&models.Chat{}).
			Where("id = ?", chat.ID).
			Updates(map[string]interface{}{
				"last_message":   text,
				"messages_count": gorm.Expr("messages_count + 1"),
				"updated_at":     time.Now().UTC(),
			}).Error
	})
	if err != nil {
		log.Printf("ERROR: [ChatRepository] Failed to insert message into chat %d: %v", message.ChatID, err)
		return fmt.Errorf("failed to insert message into chat %d: %w", message.ChatID, err)
	}
	log.Printf("INFO: [ChatRepository] Message ID %d inserted into chat %d.", message.ID, message.ChatID)
	return nil
}
