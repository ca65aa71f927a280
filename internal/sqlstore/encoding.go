package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
)

// Times are stored as UTC unix nanoseconds, durations as nanoseconds and
// JSON documents as text.

func encodeTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func encodeTimePtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: encodeTime(*t), Valid: true}
}

func decodeTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func decodeTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}

	t := decodeTime(n.Int64)
	return &t
}

func decodeDurationPtr(n sql.NullInt64) *time.Duration {
	if !n.Valid {
		return nil
	}

	d := time.Duration(n.Int64)
	return &d
}

func encodeRaw(r json.RawMessage) sql.NullString {
	if len(r) == 0 {
		return sql.NullString{}
	}

	return sql.NullString{String: string(r), Valid: true}
}

func decodeRaw(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}

	return json.RawMessage(s.String)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func encodeConditions(t *condition.Tree) (sql.NullString, error) {
	if t == nil || t.Root == nil {
		return sql.NullString{}, nil
	}

	b, err := json.Marshal(t)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding conditions: %w", err)
	}

	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeConditions(s sql.NullString) (*condition.Tree, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}

	t, err := condition.Parse([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}

	if t.Root == nil {
		return nil, nil
	}

	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
