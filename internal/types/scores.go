package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// Scan is on the pointer receiver; Value is on the value receiver.
var (
	_ sql.Scanner   = (*ConfidenceScores)(nil)
	_ driver.Valuer = ConfidenceScores(nil)
)

// ConfidenceScores maps every known activity class to its predicted
// probability. Entries sum to 1 within floating point tolerance. The type
// implements sql.Scanner and driver.Valuer for JSONB column storage.
type ConfidenceScores map[ActivityClass]float64

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (s *ConfidenceScores) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("confidence scores: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, s)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (s ConfidenceScores) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}
