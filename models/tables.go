package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// EntityDescriptor declares how one table is exposed through the
// generic table surface: its declared column set, the external alias
// spellings, ownership scoping, and explicit decode/serialize mappings.
// Every entry is hand-written so the row shapes stay an explicit
// contract instead of falling out of struct reflection.
type EntityDescriptor struct {
	Table string

	// Owned marks tables that carry a user_id column. Reads and writes
	// on owned tables are always scoped to the caller's own rows.
	Owned bool

	// Columns is the declared column set. Filter keys and written
	// fields outside this set are silently dropped.
	Columns map[string]bool

	// Aliases maps external field spellings to stored column names
	// (e.g. "content" -> "content_json").
	Aliases map[string]string

	// JSONColumns need their values coerced into a JSONMap before they
	// reach the driver.
	JSONColumns map[string]bool

	// managedColumns are stamped by the store and never writable.
	managedColumns map[string]bool

	// Find loads all rows matching the prepared query.
	Find func(tx *gorm.DB) ([]interface{}, error)

	// Decode builds a new record from a sanitized row map.
	Decode func(row map[string]interface{}) (interface{}, error)

	// Serialize renders a record in the external row shape.
	Serialize func(rec interface{}) map[string]interface{}

	// ID returns a record's primary key.
	ID func(rec interface{}) uint
}

// Writable reports whether a (post-alias) column may be written by a
// caller.
func (d *EntityDescriptor) Writable(column string) bool {
	return d.Columns[column] && !d.managedColumns[column]
}

var managedTimestamps = map[string]bool{"created_at": true, "updated_at": true}

// Tables is the fixed registry of entity types reachable through the
// generic table surface. Sessions are deliberately absent.
var Tables = map[string]*EntityDescriptor{
	"users": {
		Table: "users",
		Columns: map[string]bool{
			"id": true, "email": true, "name": true, "password_hash": true, "created_at": true,
		},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []User
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			u := &User{
				Email:        asString(row["email"]),
				Name:         asString(row["name"]),
				PasswordHash: asString(row["password_hash"]),
			}
			u.ID = asUint(row["id"])
			return u, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*User).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*User).ID },
	},
	"profiles": {
		Table: "profiles",
		Columns: map[string]bool{
			"id": true, "full_name": true, "avatar_url": true, "created_at": true,
		},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []Profile
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			return &Profile{
				ID:        asUint(row["id"]),
				FullName:  asStringPtr(row["full_name"]),
				AvatarURL: asStringPtr(row["avatar_url"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*Profile).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*Profile).ID },
	},
	"user_credits": {
		Table: "user_credits",
		Columns: map[string]bool{
			"id": true, "plan": true,
			"chat_used": true, "ocr_bill_used": true, "ocr_bank_used": true,
			"chat_limit_override": true, "ocr_bill_limit_override": true, "ocr_bank_limit_override": true,
			"last_reset_period": true, "last_reset_at": true, "updated_at": true,
		},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []UserCredit
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			c := &UserCredit{
				ID:                   asUint(row["id"]),
				Plan:                 Plan(asString(row["plan"])),
				ChatUsed:             asInt(row["chat_used"]),
				OCRBillUsed:          asInt(row["ocr_bill_used"]),
				OCRBankUsed:          asInt(row["ocr_bank_used"]),
				ChatLimitOverride:    asIntPtr(row["chat_limit_override"]),
				OCRBillLimitOverride: asIntPtr(row["ocr_bill_limit_override"]),
				OCRBankLimitOverride: asIntPtr(row["ocr_bank_limit_override"]),
				LastResetPeriod:      asString(row["last_reset_period"]),
			}
			return c, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*UserCredit).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*UserCredit).ID },
	},
	"chats": {
		Table: "chats",
		Owned: true,
		Columns: map[string]bool{
			"id": true, "user_id": true, "title": true, "last_message": true,
			"messages_count": true, "created_at": true, "updated_at": true,
		},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []Chat
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			return &Chat{
				UserID:        asUint(row["user_id"]),
				Title:         asStringPtr(row["title"]),
				LastMessage:   asStringPtr(row["last_message"]),
				MessagesCount: asInt(row["messages_count"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*Chat).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*Chat).ID },
	},
	"messages": {
		Table: "messages",
		Owned: true,
		Columns: map[string]bool{
			"id": true, "chat_id": true, "user_id": true, "content_json": true, "created_at": true,
		},
		Aliases:        map[string]string{"content": "content_json"},
		JSONColumns:    map[string]bool{"content_json": true},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []Message
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			chatID := asUint(row["chat_id"])
			if chatID == 0 {
				return nil, fmt.Errorf("messages require a chat_id")
			}
			return &Message{
				ChatID:      chatID,
				UserID:      asUint(row["user_id"]),
				ContentJSON: AsJSONColumn(row["content_json"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*Message).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*Message).ID },
	},
	"ocr_bill_extractions": {
		Table: "ocr_bill_extractions",
		Owned: true,
		Columns: map[string]bool{
			"id": true, "user_id": true, "file_name": true, "file_url": true,
			"text": true, "metadata_json": true, "approved": true, "created_at": true,
		},
		Aliases:        map[string]string{"metadata": "metadata_json", "data": "metadata_json"},
		JSONColumns:    map[string]bool{"metadata_json": true},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []OCRBillExtract
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			return &OCRBillExtract{
				UserID:       asUint(row["user_id"]),
				FileName:     asStringPtr(row["file_name"]),
				FileURL:      asStringPtr(row["file_url"]),
				Text:         asStringPtr(row["text"]),
				MetadataJSON: AsJSONColumn(row["metadata_json"]),
				Approved:     asBool(row["approved"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*OCRBillExtract).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*OCRBillExtract).ID },
	},
	"ocr_bank_extractions": {
		Table: "ocr_bank_extractions",
		Owned: true,
		Columns: map[string]bool{
			"id": true, "user_id": true, "file_name": true, "file_url": true,
			"text": true, "metadata_json": true, "approved": true, "created_at": true,
		},
		Aliases:        map[string]string{"metadata": "metadata_json", "data": "metadata_json"},
		JSONColumns:    map[string]bool{"metadata_json": true},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []OCRBankExtract
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			return &OCRBankExtract{
				UserID:       asUint(row["user_id"]),
				FileName:     asStringPtr(row["file_name"]),
				FileURL:      asStringPtr(row["file_url"]),
				Text:         asStringPtr(row["text"]),
				MetadataJSON: AsJSONColumn(row["metadata_json"]),
				Approved:     asBool(row["approved"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*OCRBankExtract).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*OCRBankExtract).ID },
	},
	"notifications": {
		Table: "notifications",
		Owned: true,
		Columns: map[string]bool{
			"id": true, "user_id": true, "title": true, "body": true,
			"read_at": true, "created_at": true,
		},
		managedColumns: managedTimestamps,
		Find: func(tx *gorm.DB) ([]interface{}, error) {
			var rows []Notification
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asRecords(len(rows), func(i int) interface{} { return &rows[i] }), nil
		},
		Decode: func(row map[string]interface{}) (interface{}, error) {
			return &Notification{
				UserID: asUint(row["user_id"]),
				Title:  asString(row["title"]),
				Body:   asString(row["body"]),
			}, nil
		},
		Serialize: func(rec interface{}) map[string]interface{} { return rec.(*Notification).Serialize() },
		ID:        func(rec interface{}) uint { return rec.(*Notification).ID },
	},
}

// LookupTable resolves a table name against the registry.
func LookupTable(name string) (*EntityDescriptor, bool) {
	desc, ok := Tables[name]
	return desc, ok
}

func asRecords(n int, at func(i int) interface{}) []interface{} {
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = at(i)
	}
	return out
}

// --- value coercion for decoded JSON bodies ---
//
// Request bodies arrive as generic JSON, so numbers are float64 and
// everything else needs an explicit conversion.

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func asIntPtr(v interface{}) *int {
	if v == nil {
		return nil
	}
	n := asInt(v)
	return &n
}

func asUint(v interface{}) uint {
	n := asInt(v)
	if n < 0 {
		return 0
	}
	return uint(n)
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// AsJSONColumn coerces a JSON column value. Maps pass through; a string
// is parsed as JSON and, failing that, wrapped as {"text": ...} the way
// the message body field historically tolerated plain strings.
func AsJSONColumn(v interface{}) JSONMap {
	switch val := v.(type) {
	case nil:
		return nil
	case JSONMap:
		return val
	case map[string]interface{}:
		return JSONMap(val)
	case string:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(val), &parsed); err == nil {
			return JSONMap(parsed)
		}
		return JSONMap{"text": val}
	default:
		return nil
	}
}
