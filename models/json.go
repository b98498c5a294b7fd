package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions so signature drift is caught at
// build time rather than at query time.
var (
	_ sql.Scanner   = (*JSONMap)(nil)
	_ driver.Valuer = JSONMap(nil)
)

// JSONMap stores an opaque JSON object in a TEXT column. It backs the
// message content and OCR metadata bags.
type JSONMap map[string]interface{}

// Scan implements sql.Scanner. It accepts []byte or string from the
// driver; NULL scans to a nil map.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("JSONMap: unsupported scan type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// GormDataType tells the migrator which column type to create.
func (JSONMap) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer. A nil map is stored as NULL.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
