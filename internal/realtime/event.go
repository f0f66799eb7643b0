package realtime

import "encoding/json"

// Event kinds produced by the NOTIFY triggers.
const (
	KindInsert = "INSERT"
	KindUpdate = "UPDATE"
)

// NOTIFY channels the triggers publish on. Conversation and message events
// carry a phone id and are filtered per subscriber; media analysis events
// are global because the annotation pipeline is not channel-scoped.
const (
	ChannelConversations = "wacrm_conversations"
	ChannelMessages      = "wacrm_messages"
	ChannelMedia         = "wacrm_media"
)

// Notification is the change-event envelope emitted by the database
// triggers: the table name, the event kind, and the new row image only.
// There is no previous-row diff and no joined relations.
type Notification struct {
	Table string          `json:"table"`
	Kind  string          `json:"kind"`
	Row   json.RawMessage `json:"row"`
}
