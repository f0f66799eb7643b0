package engine

import (
	"wacrm/internal/models"
)

// ConversationList is the reconciled conversation list, ordered
// most-recently-active first. It merges bulk fetch results with realtime
// insert/update events, deduplicating by id and preserving the joined client
// when an event payload lacks it. Duplicate and out-of-order input are
// normal cases, never errors.
//
// Mutations are copy-on-write: an entry is never modified in place, so a
// snapshot of the slice stays consistent while the engine keeps applying
// events. Not safe for concurrent use; the engine loop owns it.
type ConversationList struct {
	items []*models.Conversation
}

// Seed replaces the list wholesale with a fresh fetch result.
func (l *ConversationList) Seed(items []*models.Conversation) {
	l.items = make([]*models.Conversation, len(items))
	copy(l.items, items)
}

// Items returns the current entries. The returned slice is the caller's to
// keep; entries are shared but never mutated in place.
func (l *ConversationList) Items() []*models.Conversation {
	items := make([]*models.Conversation, len(l.items))
	copy(items, l.items)
	return items
}

// Len returns the number of entries.
func (l *ConversationList) Len() int {
	return len(l.items)
}

// Get returns the entry with the given id, or nil.
func (l *ConversationList) Get(id string) *models.Conversation {
	if i := l.indexOf(id); i >= 0 {
		return l.items[i]
	}
	return nil
}

// ApplyInsert handles a realtime INSERT. A row already present is a
// duplicate delivery and a no-op; otherwise the row is prepended.
// needsClient reports that the payload lacks a resolved client and a
// supplementary fetch should be scheduled.
func (l *ConversationList) ApplyInsert(conv *models.Conversation) (inserted, needsClient bool) {
	if l.indexOf(conv.ID) >= 0 {
		return false, false
	}
	l.items = append([]*models.Conversation{conv}, l.items...)
	return true, !conv.HasClient()
}

// ApplyUpdate handles a realtime UPDATE. A known row has every scalar field
// replaced by the event payload; the existing client join is kept because
// the payload never carries it. An unknown row is an out-of-band insert and
// is appended. needsClient reports that the entry still lacks a resolved
// client after the merge.
func (l *ConversationList) ApplyUpdate(conv *models.Conversation) (needsClient bool) {
	i := l.indexOf(conv.ID)
	if i < 0 {
		l.items = append(l.items, conv)
		return !conv.HasClient()
	}

	existing := l.items[i]
	merged := *conv
	if merged.Client == nil {
		merged.Client = existing.Client
	}
	l.items[i] = &merged
	return !merged.HasClient()
}

// ApplyMessage rolls a newly inserted message up into its conversation:
// last_message and last_message_at always follow the message, and
// unread_count is incremented only for inbound messages of a conversation
// the operator is not currently viewing. The second return is false when the
// conversation is not in the list (an out-of-band fetch should follow).
func (l *ConversationList) ApplyMessage(msg *models.Message, activeConversationID string) (conv *models.Conversation, known bool) {
	i := l.indexOf(msg.ConversationID)
	if i < 0 {
		return nil, false
	}

	updated := *l.items[i]
	updated.LastMessage = msg.Body
	at := msg.CreatedAt
	updated.LastMessageAt = &at
	if msg.Direction == models.DirectionInbound && msg.ConversationID != activeConversationID {
		updated.UnreadCount++
	}
	l.items[i] = &updated
	return &updated, true
}

// SetClient backfills the client join resolved by a supplementary fetch.
// Only the client sub-object changes: list order and scalar fields mutated
// by events that landed while the fetch was in flight are left alone.
func (l *ConversationList) SetClient(conversationID string, client *models.Client) {
	i := l.indexOf(conversationID)
	if i < 0 || client == nil {
		return
	}
	updated := *l.items[i]
	updated.Client = client
	l.items[i] = &updated
}

// SetClassification records a derived classification label in memory.
func (l *ConversationList) SetClassification(conversationID, classification string) {
	i := l.indexOf(conversationID)
	if i < 0 {
		return
	}
	updated := *l.items[i]
	label := classification
	updated.Classification = &label
	l.items[i] = &updated
}

// Remove drops the entry with the given id, used when a status change moves
// a conversation out of the view's filter. Unknown ids are a no-op.
func (l *ConversationList) Remove(id string) {
	i := l.indexOf(id)
	if i < 0 {
		return
	}
	items := make([]*models.Conversation, 0, len(l.items)-1)
	items = append(items, l.items[:i]...)
	items = append(items, l.items[i+1:]...)
	l.items = items
}

// ClearUnread resets the unread counter, mirroring the mark-as-read write.
func (l *ConversationList) ClearUnread(conversationID string) {
	i := l.indexOf(conversationID)
	if i < 0 {
		return
	}
	updated := *l.items[i]
	updated.UnreadCount = 0
	l.items[i] = &updated
}

func (l *ConversationList) indexOf(id string) int {
	for i, c := range l.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}
