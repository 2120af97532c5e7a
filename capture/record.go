package capture

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Direction tells which half of an exchange a capture holds.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// ParseDirection parses "request" or "response".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionRequest, DirectionResponse:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want request or response)", s)
	}
}

// dayFormat is the layout of the day partition.
const dayFormat = "2006-01-02"

// Record is one captured parameter buffer.
type Record struct {
	ID        string
	CallID    string // shared by the request and response of one call
	Session   uint32
	Command   uint32
	Direction Direction
	Result    string // result code name; empty for standalone encodes
	Origin    uint32
	Size      int
	Data      []byte
	Day       string // YYYY-MM-DD, derived from Ts
	Ts        time.Time
}

// sessionKey formats a session ID as its partition value.
func sessionKey(id uint32) string {
	return fmt.Sprintf("%08x", id)
}

// toMap converts a record to its stored row. The day, session and
// direction fields are the Hive partition keys.
func toMap(r *Record) map[string]any {
	m := map[string]any{
		"id":        r.ID,
		"session":   sessionKey(r.Session),
		"command":   r.Command,
		"direction": string(r.Direction),
		"result":    r.Result,
		"origin":    r.Origin,
		"size":      r.Size,
		"data_hex":  hex.EncodeToString(r.Data),
		"day":       r.Day,
		"ts":        r.Ts.UTC().Format(time.RFC3339Nano),
	}
	if r.CallID != "" {
		m["call_id"] = r.CallID
	}
	return m
}

// fromMap converts a stored row back into a record.
func fromMap(m map[string]any) (*Record, error) {
	id := toString(m["id"])
	if id == "" {
		return nil, fmt.Errorf("capture row without id")
	}

	session, err := strconv.ParseUint(toString(m["session"]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("capture %s: session: %w", id, err)
	}
	data, err := hex.DecodeString(toString(m["data_hex"]))
	if err != nil {
		return nil, fmt.Errorf("capture %s: data: %w", id, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, toString(m["ts"]))
	if err != nil {
		return nil, fmt.Errorf("capture %s: ts: %w", id, err)
	}

	return &Record{
		ID:        id,
		CallID:    toString(m["call_id"]),
		Session:   uint32(session),
		Command:   uint32(toInt64(m["command"])),
		Direction: Direction(toString(m["direction"])),
		Result:    toString(m["result"]),
		Origin:    uint32(toInt64(m["origin"])),
		Size:      int(toInt64(m["size"])),
		Data:      data,
		Day:       toString(m["day"]),
		Ts:        ts,
	}, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a decoded JSON number to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return 0
	}
}
