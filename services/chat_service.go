package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/napassornsp/chat-new/config"
	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
)

// EventPublisher is the sink for committed change events.
type EventPublisher interface {
	Publish(event realtime.Event)
}

// ChatService runs one gated chat turn: resolve the thread, pass the
// credit gate, record the user message, produce the assistant reply and
// record it with the thread's denormalized counters.
type ChatService interface {
	ProcessTurn(user *models.User, req ChatTurnRequest) (*ChatTurnResult, error)
}

// ChatTurnRequest is the body of a chat function invocation.
type ChatTurnRequest struct {
	ChatID   uint   `json:"chat_id"`
	Version  string `json:"version"`
	Text     string `json:"text"`
	UserText string `json:"user_text"`
}

// UserInput returns the caller's message text under either accepted key.
func (r ChatTurnRequest) UserInput() string {
	if r.Text != "" {
		return r.Text
	}
	return r.UserText
}

// ChatTurnResult is the success payload of a chat turn.
type ChatTurnResult struct {
	ChatID    uint
	Reply     string
	Assistant map[string]interface{}
	Credits   models.CreditSnapshot
}

type chatService struct {
	chatRepo  repository.ChatRepository
	credits   CreditService
	publisher EventPublisher
	llm       *openai.Client
	llmModel  string
}

// NewChatService creates a new instance of ChatService. When the config
// carries an LLM API key the reply is produced by the configured model;
// otherwise every turn answers with the canned demo reply.
func NewChatService(chatRepo repository.ChatRepository, credits CreditService, publisher EventPublisher) ChatService {
	s := &chatService{
		chatRepo:  chatRepo,
		credits:   credits,
		publisher: publisher,
	}
	llm := config.AppConfig.LLM
	if llm.APIKey != "" {
		clientConfig := openai.DefaultConfig(llm.APIKey)
		if llm.BaseURL != "" {
			clientConfig.BaseURL = llm.BaseURL
		}
		s.llm = openai.NewClientWithConfig(clientConfig)
		s.llmModel = llm.Model
		log.Printf("INFO: [ChatService] LLM passthrough enabled (model '%s').", llm.Model)
	} else {
		log.Println("INFO: [ChatService] No LLM API key configured; serving canned replies.")
	}
	return s
}

// versionLabel collapses the request tier onto one of the three known
// labels; anything unrecognized is treated as V2.
func versionLabel(version string) string {
	switch strings.ToUpper(version) {
	case "V1":
		return "V1"
	case "V3":
		return "V3"
	default:
		return "V2"
	}
}

// ProcessTurn executes one chat turn for the user.
func (s *chatService) ProcessTurn(user *models.User, req ChatTurnRequest) (*ChatTurnResult, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	version := strings.ToUpper(req.Version)
	if version == "" {
		version = models.DefaultChatVersion
	}
	cost := models.ChatVersionCost(version)

	// Resolve ownership before the gate so a foreign thread fails with
	// not-found instead of burning credit.
	var chat *models.Chat
	if req.ChatID != 0 {
		existing, err := s.chatRepo.GetChat(req.ChatID)
		if err != nil {
			return nil, err
		}
		if existing == nil || existing.UserID != user.ID {
			return nil, fmt.Errorf("chat %d: %w", req.ChatID, ErrNotFound)
		}
		chat = existing
	}

	credits, err := s.credits.TryConsume(user.ID, models.BucketChat, cost)
	if err != nil {
		return nil, err
	}

	if chat == nil {
		title := "New Chat"
		chat = &models.Chat{UserID: user.ID, Title: &title}
		if err := s.chatRepo.CreateChat(chat); err != nil {
			return nil, err
		}
	}

	if input := req.UserInput(); input != "" {
		userMsg := models.NewMessage(chat.ID, user.ID, models.MessageRoleUser, input, version)
		if err := s.chatRepo.CreateMessage(userMsg); err != nil {
			return nil, err
		}
		s.publisher.Publish(realtime.NewEvent(realtime.EventInsert, "messages", userMsg.Serialize(), nil))
	}

	reply := s.reply(versionLabel(version), req.UserInput())

	assistantMsg := models.NewMessage(chat.ID, user.ID, models.MessageRoleAssistant, reply, version)
	if err := s.chatRepo.CreateMessage(assistantMsg); err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventInsert, "messages", assistantMsg.Serialize(), nil))

	log.Printf("INFO: [ChatService] Turn completed for user %d in chat %d (version %s, cost %d).",
		user.ID, chat.ID, version, cost)
	return &ChatTurnResult{
		ChatID:    chat.ID,
		Reply:     reply,
		Assistant: assistantMsg.Serialize(),
		Credits:   credits,
	}, nil
}

// reply produces the assistant text: the configured LLM when available,
// the canned demo reply otherwise (and as the fallback on LLM failure).
func (s *chatService) reply(label, input string) string {
	canned := fmt.Sprintf("Temporary reply message from %s", label)
	if s.llm == nil || input == "" {
		return canned
	}
	resp, err := s.llm.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model: s.llmModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		log.Printf("WARN: [ChatService] LLM call failed, falling back to canned reply: %v", err)
		return canned
	}
	return resp.Choices[0].Message.Content
}
