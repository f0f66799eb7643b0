package models

import "time"

// Phone represents one WhatsApp business number stored in 'whatsapp_phones'.
// Every conversation and message belongs to exactly one phone, and the
// dashboard scopes all queries and subscriptions to the selected phone.
type Phone struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Status      string    `db:"status" json:"status"` // "pending", "active", "disabled"
	IsDefault   bool      `db:"is_default" json:"is_default"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
