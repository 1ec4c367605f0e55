package vfs

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Value implements driver.Valuer so gorm can store a FileSystem as a JSON
// TEXT column.
func (fs FileSystem) Value() (driver.Value, error) {
	b, err := json.Marshal(fs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, the inverse of Value.
func (fs *FileSystem) Scan(src any) error {
	if src == nil {
		*fs = FileSystem{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("vfs: unsupported Scan source type")
	}
	if len(b) == 0 {
		*fs = FileSystem{}
		return nil
	}
	var out FileSystem
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("vfs: unmarshal file_system column: %w", err)
	}
	*fs = out
	return nil
}
