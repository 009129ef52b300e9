package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the author of a chat message.
type MessageType string

const (
	MessageTypeHuman  MessageType = "human"
	MessageTypeAI     MessageType = "ai"
	MessageTypeSystem MessageType = "system"
)

// SessionSummary is one chat session of a user.
type SessionSummary struct {
	SessionID    string    `json:"session_id" yaml:"session_id"`
	UserEmail    string    `json:"user_email" yaml:"user_email"`
	SessionName  string    `json:"session_name" yaml:"session_name"`
	CreatedAt    Timestamp `json:"created_at" yaml:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at" yaml:"updated_at"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	MessageCount *int      `json:"message_count,omitempty" yaml:"message_count,omitempty"`
}

// Message is one entry of a session transcript.
type Message struct {
	ID              MessageID              `json:"id" yaml:"id"`
	SessionID       string                 `json:"session_id" yaml:"session_id"`
	MessageType     MessageType            `json:"message_type" yaml:"message_type"`
	Content         string                 `json:"content" yaml:"content"`
	Timestamp       Timestamp              `json:"timestamp" yaml:"timestamp"`
	MessageMetadata map[string]interface{} `json:"message_metadata,omitempty" yaml:"message_metadata,omitempty"`
	ChartFiles      []string               `json:"chart_files,omitempty" yaml:"chart_files,omitempty"`
	QueryResults    json.RawMessage        `json:"query_results,omitempty" yaml:"-"`
}

// MessageID is a message identifier. The backend sends integers or strings.
type MessageID string

func (id *MessageID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(n.String())
	return nil
}

type createSessionRequest struct {
	UserEmail   string `json:"user_email"`
	SessionName string `json:"session_name"`
}

// timestampLayouts are tried in order. The backend emits naive UTC timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp accepts RFC 3339 and zone-less ISO 8601 times, the latter as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// MarshalYAML renders the time as RFC 3339.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}
