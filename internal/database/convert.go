package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamps are persisted as unix nanoseconds so they order totally,
// round-trip exactly, and stay UTC by construction.

// UnixNanos converts a time to its stored integer form
func UnixNanos(t time.Time) int64 {
	return t.UnixNano()
}

// FromUnixNanos converts a stored integer back to a UTC time
func FromUnixNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// NullUnixNanos converts an optional time to a nullable column value
func NullUnixNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// FromNullUnixNanos converts a nullable column value to an optional UTC time
func FromNullUnixNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// MarshalStringList encodes a string slice as the JSON stored in TEXT
// columns. A nil slice encodes as [] so round-trips are stable.
func MarshalStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	out, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(out), nil
}

// UnmarshalStringList decodes a TEXT column containing a JSON array of
// strings. Empty input decodes to an empty slice.
func UnmarshalStringList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
