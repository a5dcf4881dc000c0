package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ID is a storage-assigned identifier. The zero value is an unassigned id,
// which is distinct from an assigned empty string.
type ID struct {
	value    string
	assigned bool
}

func NewID(value string) ID {
	return ID{value: value, assigned: true}
}

func (id ID) Get() (string, bool) {
	return id.value, id.assigned
}

func (id ID) IsAssigned() bool {
	return id.assigned
}

// String returns the id value, or "" when unassigned.
func (id ID) String() string {
	return id.value
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.assigned {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = NewID(s)
	return nil
}

func (id ID) Value() (driver.Value, error) {
	if !id.assigned {
		return nil, nil
	}
	return id.value, nil
}

func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = ID{}
	case string:
		*id = NewID(v)
	case []byte:
		*id = NewID(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
	return nil
}
