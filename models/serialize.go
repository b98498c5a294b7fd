package models

import (
	"encoding/json"
	"time"
)

// isoTime formats a timestamp the way the API serializes all times.
func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// isoTimePtr is isoTime for nullable columns; nil stays nil.
func isoTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return isoTime(*t)
}

func strPtrOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func intPtrOrNil(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func marshalMap(m map[string]interface{}) ([]byte, error) {
	return json.Marshal(m)
}
