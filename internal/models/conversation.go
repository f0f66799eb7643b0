package models

import "time"

// Conversation status values.
const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Classification labels derived from media AI analysis. A nil classification
// and "inquiry" are treated as the same baseline ("not classified yet") when
// deciding whether a derived label needs to be written back.
const (
	ClassificationOpportunity = "opportunity"
	ClassificationTrash       = "trash"
	ClassificationInquiry     = "inquiry"
)

// Conversation represents a row of 'whatsapp_conversations': one thread
// between a client and a phone. The Client sub-object is joined at read time
// and is never carried by realtime change events.
type Conversation struct {
	ID              string     `db:"id" json:"id"`
	PhoneID         string     `db:"phone_id" json:"phone_id"`
	ClientID        *string    `db:"client_id" json:"client_id"`
	Status          string     `db:"status" json:"status"`
	LastMessage     *string    `db:"last_message" json:"last_message"`
	LastMessageAt   *time.Time `db:"last_message_at" json:"last_message_at"`
	UnreadCount     int        `db:"unread_count" json:"unread_count"`
	Classification  *string    `db:"classification" json:"classification"`
	WindowExpiresAt *time.Time `db:"window_expires_at" json:"window_expires_at"`
	ClosedAt        *time.Time `db:"closed_at" json:"closed_at"`
	ClosedReason    *string    `db:"closed_reason" json:"closed_reason"`
	ClosedBy        *string    `db:"closed_by" json:"closed_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Client *Client `db:"-" json:"client,omitempty"`
}

// HasClient reports whether the joined client is present with a resolved
// name. A conversation delivered via realtime lacks the join entirely, and a
// freshly-created client may still have a null name; both cases need a
// supplementary fetch.
func (c *Conversation) HasClient() bool {
	return c.Client != nil && c.Client.FullName != nil
}

// EffectiveClassification normalizes the stored label for comparisons:
// null and "inquiry" both mean "no classification".
func (c *Conversation) EffectiveClassification() string {
	if c.Classification == nil {
		return ClassificationInquiry
	}
	return *c.Classification
}
