package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptorDecode_OwnerCoercion(t *testing.T) {
	t.Run("uint owner id survives decoding", func(t *testing.T) {
		desc, ok := LookupTable("chats")
		assert.True(t, ok)

		rec, err := desc.Decode(map[string]interface{}{"user_id": uint(7), "title": "inbox"})
		assert.NoError(t, err)
		assert.Equal(t, uint(7), rec.(*Chat).UserID)
	})

	t.Run("uint64 and float64 owner ids decode alike", func(t *testing.T) {
		desc, ok := LookupTable("notifications")
		assert.True(t, ok)

		rec, err := desc.Decode(map[string]interface{}{"user_id": uint64(9), "title": "hi", "body": "there"})
		assert.NoError(t, err)
		assert.Equal(t, uint(9), rec.(*Notification).UserID)

		rec, err = desc.Decode(map[string]interface{}{"user_id": float64(9), "title": "hi", "body": "there"})
		assert.NoError(t, err)
		assert.Equal(t, uint(9), rec.(*Notification).UserID)
	})
}

func TestJSONMap_GormDataType(t *testing.T) {
	assert.Equal(t, "text", JSONMap{}.GormDataType())
}
