// Database model for the memory index.
package memstore

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Record is one stored memory row. Rows are immutable once created except
// for bulk deletion; the relational store is authoritative, the vector
// collection exists for similarity search.
type Record struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Username  string    `json:"username" gorm:"index;size:200;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Metadata  JSONMap   `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult pairs a record with its search-time similarity score.
type SearchResult struct {
	Record
	Score float64 `json:"score"`
}

// JSONMap stores a map as a JSON column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	return json.Unmarshal(b, j)
}
