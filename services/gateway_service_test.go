package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
)

func openGatewayDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.User{}, &models.Chat{}, &models.Message{},
		&models.Notification{}, &models.OCRBillExtract{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newGatewayForTest(t *testing.T) (TableGateway, *gorm.DB, *capturePublisher) {
	db := openGatewayDB(t)
	publisher := &capturePublisher{}
	gateway := NewTableGateway(db, repository.NewChatRepository(db), publisher)
	return gateway, db, publisher
}

func seedChat(t *testing.T, db *gorm.DB, userID uint, title string) *models.Chat {
	t.Helper()
	chat := &models.Chat{UserID: userID, Title: &title}
	if err := db.Create(chat).Error; err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	return chat
}

func TestTableGateway_Select(t *testing.T) {
	alice := &models.User{ID: 1}
	bob := &models.User{ID: 2}

	t.Run("owned tables only show the caller's rows", func(t *testing.T) {
		gateway, db, _ := newGatewayForTest(t)
		seedChat(t, db, alice.ID, "mine")
		seedChat(t, db, bob.ID, "not mine")

		rows, err := gateway.Select(alice, "chats", SelectQuery{})
		assert.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, "mine", rows[0]["title"].(string))
	})

	t.Run("owned tables reject anonymous callers", func(t *testing.T) {
		gateway, _, _ := newGatewayForTest(t)
		_, err := gateway.Select(nil, "chats", SelectQuery{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("ordering and limit apply after scoping", func(t *testing.T) {
		gateway, db, _ := newGatewayForTest(t)
		seedChat(t, db, alice.ID, "a")
		seedChat(t, db, alice.ID, "b")
		seedChat(t, db, alice.ID, "c")

		rows, err := gateway.Select(alice, "chats", SelectQuery{
			OrderCol: "id", OrderAsc: false, Limit: 2,
		})
		assert.NoError(t, err)
		assert.Len(t, rows, 2)
		assert.Equal(t, "c", rows[0]["title"].(string))
	})

	t.Run("filters outside the column set are dropped", func(t *testing.T) {
		gateway, db, _ := newGatewayForTest(t)
		seedChat(t, db, alice.ID, "kept")

		rows, err := gateway.Select(alice, "chats", SelectQuery{
			Filters: map[string]interface{}{"no_such_column": "x"},
		})
		assert.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("unknown table is rejected", func(t *testing.T) {
		gateway, _, _ := newGatewayForTest(t)
		_, err := gateway.Select(alice, "sessions", SelectQuery{})
		assert.ErrorIs(t, err, ErrUnknownTable)
	})
}

func TestTableGateway_Insert(t *testing.T) {
	alice := &models.User{ID: 1}

	t.Run("caller replaces any claimed owner", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)

		rows, err := gateway.Insert(alice, "chats", []map[string]interface{}{
			{"title": "hello", "user_id": 999},
		})
		assert.NoError(t, err)
		assert.Len(t, rows, 1)

		var stored models.Chat
		assert.NoError(t, db.First(&stored).Error)
		assert.Equal(t, alice.ID, stored.UserID)

		assert.Len(t, publisher.events, 1)
		assert.Equal(t, realtime.EventInsert, publisher.events[0].EventType)
		assert.Equal(t, "chats", publisher.events[0].Table)
		assert.Nil(t, publisher.events[0].Old)
	})

	t.Run("message insert maintains thread counters", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)
		chat := seedChat(t, db, alice.ID, "thread")

		_, err := gateway.Insert(alice, "messages", []map[string]interface{}{
			{"chat_id": chat.ID, "content": map[string]interface{}{"role": "user", "text": "hi there"}},
		})
		assert.NoError(t, err)

		var fresh models.Chat
		assert.NoError(t, db.First(&fresh, chat.ID).Error)
		assert.Equal(t, 1, fresh.MessagesCount)
		assert.NotNil(t, fresh.LastMessage)
		assert.Equal(t, "hi there", *fresh.LastMessage)
		assert.Len(t, publisher.events, 1)
	})

	t.Run("content alias accepts a JSON string", func(t *testing.T) {
		gateway, db, _ := newGatewayForTest(t)
		chat := seedChat(t, db, alice.ID, "thread")

		rows, err := gateway.Insert(alice, "messages", []map[string]interface{}{
			{"chat_id": chat.ID, "content": `{"role":"user","text":"parsed"}`},
		})
		assert.NoError(t, err)
		content := rows[0]["content"].(map[string]interface{})
		assert.Equal(t, "parsed", content["text"])
	})

	t.Run("foreign thread is indistinguishable from a missing one", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)
		foreign := seedChat(t, db, 99, "not yours")

		_, err := gateway.Insert(alice, "messages", []map[string]interface{}{
			{"chat_id": foreign.ID, "content": map[string]interface{}{"text": "sneaky"}},
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, publisher.events)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		gateway, _, _ := newGatewayForTest(t)
		_, err := gateway.Insert(alice, "chats", nil)
		assert.ErrorIs(t, err, ErrMissingValues)
	})

	t.Run("anonymous insert is rejected", func(t *testing.T) {
		gateway, _, _ := newGatewayForTest(t)
		_, err := gateway.Insert(nil, "chats", []map[string]interface{}{{"title": "x"}})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestTableGateway_Update(t *testing.T) {
	alice := &models.User{ID: 1}

	t.Run("matched rows change and carry old state in events", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)
		chat := seedChat(t, db, alice.ID, "before")

		rows, err := gateway.Update(alice, "chats",
			map[string]interface{}{"id": chat.ID},
			map[string]interface{}{"title": "after", "no_such_column": "dropped", "user_id": 42},
		)
		assert.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, "after", rows[0]["title"].(string))

		var stored models.Chat
		assert.NoError(t, db.First(&stored, chat.ID).Error)
		assert.Equal(t, alice.ID, stored.UserID, "the owner column is never mutable")

		assert.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, realtime.EventUpdate, event.EventType)
		assert.Equal(t, "before", event.Old["title"].(string))
		assert.Equal(t, "after", event.New["title"].(string))
	})

	t.Run("foreign rows stay untouched", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)
		foreign := seedChat(t, db, 99, "theirs")

		rows, err := gateway.Update(alice, "chats",
			map[string]interface{}{"id": foreign.ID},
			map[string]interface{}{"title": "mine now"},
		)
		assert.NoError(t, err)
		assert.Empty(t, rows)
		assert.Empty(t, publisher.events)

		var stored models.Chat
		assert.NoError(t, db.First(&stored, foreign.ID).Error)
		assert.Equal(t, "theirs", *stored.Title)
	})
}

func TestTableGateway_Delete(t *testing.T) {
	alice := &models.User{ID: 1}

	t.Run("matched rows are removed with their prior state", func(t *testing.T) {
		gateway, db, publisher := newGatewayForTest(t)
		chat := seedChat(t, db, alice.ID, "doomed")
		keeper := seedChat(t, db, alice.ID, "keeper")

		rows, err := gateway.Delete(alice, "chats", map[string]interface{}{"id": chat.ID})
		assert.NoError(t, err)
		assert.Len(t, rows, 1)

		var count int64
		db.Model(&models.Chat{}).Count(&count)
		assert.Equal(t, int64(1), count)

		var remaining models.Chat
		assert.NoError(t, db.First(&remaining).Error)
		assert.Equal(t, keeper.ID, remaining.ID)

		assert.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, realtime.EventDelete, event.EventType)
		assert.Nil(t, event.New)
		assert.Equal(t, "doomed", event.Old["title"].(string))
	})

	t.Run("foreign rows survive a scoped delete", func(t *testing.T) {
		gateway, db, _ := newGatewayForTest(t)
		foreign := seedChat(t, db, 99, "theirs")

		rows, err := gateway.Delete(alice, "chats", map[string]interface{}{"id": foreign.ID})
		assert.NoError(t, err)
		assert.Empty(t, rows)

		var count int64
		db.Model(&models.Chat{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}
