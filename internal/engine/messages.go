package engine

import (
	"strconv"
	"time"

	"wacrm/internal/models"
)

// MessageList is the reconciled message list of the one conversation the
// operator has open, ordered ascending by time. It merges fetched snapshots
// with realtime inserts and matches locally-created optimistic placeholders
// to their persisted counterparts.
//
// The placeholder match is heuristic: same outbound direction and equal
// trimmed body, first unmatched placeholder wins. Two in-flight sends with
// identical bodies can therefore pair with the wrong rows; the webhook
// payload already carries a client reference for a future server-echoed
// idempotency key, but until the backend echoes it the body match stands.
//
// Copy-on-write like ConversationList; owned by the engine loop.
type MessageList struct {
	conversationID string
	items          []*models.Message
}

// ConversationID returns the conversation this list is scoped to.
func (l *MessageList) ConversationID() string {
	return l.conversationID
}

// Seed replaces the list wholesale, rescoping it to the given conversation.
func (l *MessageList) Seed(conversationID string, items []*models.Message) {
	l.conversationID = conversationID
	l.items = make([]*models.Message, len(items))
	copy(l.items, items)
}

// Items returns the current entries; the slice is the caller's to keep.
func (l *MessageList) Items() []*models.Message {
	items := make([]*models.Message, len(l.items))
	copy(items, l.items)
	return items
}

// Len returns the number of entries.
func (l *MessageList) Len() int {
	return len(l.items)
}

// ApplyInsert merges a persisted message delivered by the realtime stream.
// An id already present is a duplicate delivery and a no-op. An outbound
// message first tries to replace the oldest optimistic placeholder with the
// same trimmed body, keeping the placeholder's position; otherwise, and for
// every inbound message, it is appended. Messages of other conversations
// are ignored.
func (l *MessageList) ApplyInsert(msg *models.Message) bool {
	if msg.ConversationID != l.conversationID {
		return false
	}
	for _, m := range l.items {
		if m.ID == msg.ID {
			return false
		}
	}

	if msg.Direction == models.DirectionOutbound {
		body := msg.TrimmedBody()
		for i, m := range l.items {
			if m.IsTemp() && m.TrimmedBody() == body {
				items := make([]*models.Message, len(l.items))
				copy(items, l.items)
				items[i] = msg
				l.items = items
				return true
			}
		}
	}

	l.items = append(l.items, msg)
	return true
}

// AppendOptimistic appends a placeholder for a reply the operator just sent.
// The placeholder carries a temp- id and is replaced, never duplicated, when
// the persisted row arrives via ApplyInsert.
func (l *MessageList) AppendOptimistic(body, fromNumber, toNumber string) *models.Message {
	msg := &models.Message{
		ID:             models.TempIDPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10),
		ConversationID: l.conversationID,
		FromNumber:     fromNumber,
		ToNumber:       toNumber,
		Body:           &body,
		Direction:      models.DirectionOutbound,
		MessageType:    "text",
		Status:         "sent",
		CreatedAt:      time.Now(),
	}
	l.items = append(l.items, msg)
	return msg
}
