package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TempIDPrefix marks an optimistic placeholder message created locally on
// send, before the persisted row arrives through the realtime stream.
const TempIDPrefix = "temp-"

// Message represents a row of 'whatsapp_messages'. Body is nullable for
// media-only messages. Media is joined in ordered by media_index.
type Message struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	PhoneID        string     `db:"phone_id" json:"phone_id"`
	FromNumber     string     `db:"from_number" json:"from_number"`
	ToNumber       string     `db:"to_number" json:"to_number"`
	Body           *string    `db:"body" json:"body"`
	Direction      string     `db:"direction" json:"direction"`
	MessageType    string     `db:"message_type" json:"message_type"`
	Status         string     `db:"status" json:"status"` // "pending", "sent", "delivered", "read", "failed"
	NumMedia       int        `db:"num_media" json:"num_media"`
	ReadAt         *time.Time `db:"read_at" json:"read_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	// BodyTruncated is set only on realtime row images: the NOTIFY trigger
	// bounds the body it publishes, and a truncated body must not be used
	// for display or placeholder matching — re-read the row instead.
	BodyTruncated bool `db:"-" json:"body_truncated,omitempty"`

	Media []Media `db:"-" json:"media,omitempty"`
}

// IsTemp reports whether the message is an optimistic placeholder.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// TrimmedBody returns the message body with surrounding whitespace removed,
// or "" when the body is null. Optimistic placeholders are matched to their
// persisted counterparts by this value.
func (m *Message) TrimmedBody() string {
	if m.Body == nil {
		return ""
	}
	return strings.TrimSpace(*m.Body)
}

// Media represents a row of 'whatsapp_message_media'. AIAnalysis is the raw
// payload written by the annotation pipeline; it may be a JSON object or a
// JSON-encoded string, so it stays opaque here and is parsed where consumed.
type Media struct {
	ID          string          `db:"id" json:"id"`
	MessageID   string          `db:"message_id" json:"message_id"`
	MediaIndex  int             `db:"media_index" json:"media_index"`
	MediaURL    string          `db:"media_url" json:"media_url"`
	ContentType string          `db:"media_content_type" json:"media_content_type"`
	AIAnalysis  json.RawMessage `db:"ai_analysis" json:"ai_analysis,omitempty"`
	AIFeedback  *string         `db:"ai_feedback" json:"ai_feedback"` // "positive" or "negative"
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
