package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
)

// MockChatRepository is a mock type for the ChatRepository interface
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) CreateChat(chat *models.Chat) error {
	args := m.Called(chat)
	return args.Error(0)
}

func (m *MockChatRepository) GetChat(chatID uint) (*models.Chat, error) {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatRepository) CreateMessage(message *models.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

// MockCreditService is a mock type for the CreditService interface
type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) GetOrCreate(userID uint) (*models.UserCredit, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockCreditService) Snapshot(userID uint) (models.CreditSnapshot, error) {
	args := m.Called(userID)
	return args.Get(0).(models.CreditSnapshot), args.Error(1)
}

func (m *MockCreditService) SetPlan(userID uint, plan string) (models.CreditSnapshot, error) {
	args := m.Called(userID, plan)
	return args.Get(0).(models.CreditSnapshot), args.Error(1)
}

func (m *MockCreditService) ResetMonthly(userID uint) (models.CreditSnapshot, error) {
	args := m.Called(userID)
	return args.Get(0).(models.CreditSnapshot), args.Error(1)
}

func (m *MockCreditService) TryConsume(userID uint, bucket models.Bucket, amount int) (models.CreditSnapshot, error) {
	args := m.Called(userID, bucket, amount)
	return args.Get(0).(models.CreditSnapshot), args.Error(1)
}

// capturePublisher collects published events for assertions.
type capturePublisher struct {
	events []realtime.Event
}

func (p *capturePublisher) Publish(event realtime.Event) {
	p.events = append(p.events, event)
}

func newChatServiceForTest(chatRepo *MockChatRepository, credits *MockCreditService, publisher *capturePublisher) ChatService {
	return NewChatService(chatRepo, credits, publisher)
}

func TestChatService_ProcessTurn(t *testing.T) {
	user := &models.User{ID: 11, Email: "v1@example.com"}
	ownedChat := &models.Chat{ID: 42, UserID: 11}

	t.Run("existing thread answers with the version label", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		chatRepo.On("GetChat", uint(42)).Return(ownedChat, nil)
		credits.On("TryConsume", uint(11), models.BucketChat, 1).Return(models.CreditSnapshot{}, nil)
		chatRepo.On("CreateMessage", mock.AnythingOfType("*models.Message")).Return(nil)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		result, err := svc.ProcessTurn(user, ChatTurnRequest{ChatID: 42, Version: "v1", Text: "hello"})

		assert.NoError(t, err)
		assert.Equal(t, uint(42), result.ChatID)
		assert.Equal(t, "Temporary reply message from V1", result.Reply)
		chatRepo.AssertNumberOfCalls(t, "CreateMessage", 2)
		assert.Len(t, publisher.events, 2)
		assert.Equal(t, "messages", publisher.events[0].Table)
		assert.Equal(t, realtime.EventInsert, publisher.events[0].EventType)
		credits.AssertExpectations(t)
	})

	t.Run("missing version defaults to V2 and its cost", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		chatRepo.On("GetChat", uint(42)).Return(ownedChat, nil)
		credits.On("TryConsume", uint(11), models.BucketChat, 2).Return(models.CreditSnapshot{}, nil)
		chatRepo.On("CreateMessage", mock.AnythingOfType("*models.Message")).Return(nil)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		result, err := svc.ProcessTurn(user, ChatTurnRequest{ChatID: 42, Text: "hi"})

		assert.NoError(t, err)
		assert.Equal(t, "Temporary reply message from V2", result.Reply)
		credits.AssertExpectations(t)
	})

	t.Run("missing thread id opens a new thread", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		credits.On("TryConsume", uint(11), models.BucketChat, 3).Return(models.CreditSnapshot{}, nil)
		chatRepo.On("CreateChat", mock.AnythingOfType("*models.Chat")).Run(func(args mock.Arguments) {
			args.Get(0).(*models.Chat).ID = 77
		}).Return(nil)
		chatRepo.On("CreateMessage", mock.AnythingOfType("*models.Message")).Return(nil)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		result, err := svc.ProcessTurn(user, ChatTurnRequest{Version: "V3", Text: "first"})

		assert.NoError(t, err)
		assert.Equal(t, uint(77), result.ChatID)
		assert.Equal(t, "Temporary reply message from V3", result.Reply)
		chatRepo.AssertCalled(t, "CreateChat", mock.AnythingOfType("*models.Chat"))
	})

	t.Run("foreign thread fails before the credit gate", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		chatRepo.On("GetChat", uint(42)).Return(&models.Chat{ID: 42, UserID: 99}, nil)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		_, err := svc.ProcessTurn(user, ChatTurnRequest{ChatID: 42, Text: "hey"})

		assert.ErrorIs(t, err, ErrNotFound)
		credits.AssertNotCalled(t, "TryConsume", mock.Anything, mock.Anything, mock.Anything)
		chatRepo.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("credit denial aborts the turn without inserts", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		chatRepo.On("GetChat", uint(42)).Return(ownedChat, nil)
		denial := &InsufficientCreditsError{Bucket: models.BucketChat, Need: 2}
		credits.On("TryConsume", uint(11), models.BucketChat, 2).Return(models.CreditSnapshot{}, denial)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		_, err := svc.ProcessTurn(user, ChatTurnRequest{ChatID: 42, Text: "hey"})

		assert.NotNil(t, AsInsufficientCredits(err))
		chatRepo.AssertNotCalled(t, "CreateMessage", mock.Anything)
		assert.Empty(t, publisher.events)
	})

	t.Run("anonymous caller is rejected", func(t *testing.T) {
		svc := newChatServiceForTest(new(MockChatRepository), new(MockCreditService), &capturePublisher{})
		_, err := svc.ProcessTurn(nil, ChatTurnRequest{Text: "hey"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("empty input records only the assistant message", func(t *testing.T) {
		chatRepo := new(MockChatRepository)
		credits := new(MockCreditService)
		publisher := &capturePublisher{}

		chatRepo.On("GetChat", uint(42)).Return(ownedChat, nil)
		credits.On("TryConsume", uint(11), models.BucketChat, 2).Return(models.CreditSnapshot{}, nil)
		chatRepo.On("CreateMessage", mock.AnythingOfType("*models.Message")).Return(nil)

		svc := newChatServiceForTest(chatRepo, credits, publisher)
		_, err := svc.ProcessTurn(user, ChatTurnRequest{ChatID: 42})

		assert.NoError(t, err)
		chatRepo.AssertNumberOfCalls(t, "CreateMessage", 1)
		assert.Len(t, publisher.events, 1)
	})
}
