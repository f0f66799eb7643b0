package models

import "time"

// Client represents a customer stored in the 'clients' table. A client is
// owned independently of any conversation; the conversation list joins it in
// at read time. FullName is nullable: a client created from an inbound
// message starts out as just a phone number.
type Client struct {
	ID          string    `db:"id" json:"id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	FullName    *string   `db:"full_name" json:"full_name"`
	Status      string    `db:"status" json:"status"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the client's name, falling back to the phone number
// when the name has not been resolved yet.
func (c *Client) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.FullName != nil && *c.FullName != "" {
		return *c.FullName
	}
	return c.PhoneNumber
}
