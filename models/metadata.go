package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is free-form caller data stored as a JSON column.
type Metadata map[string]interface{}

// Merge returns a copy of m with other's keys written over it.
func (m Metadata) Merge(other Metadata) Metadata {
	if len(m) == 0 && len(other) == 0 {
		return m
	}
	merged := make(Metadata, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Value implements the driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot convert %T to Metadata", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}
