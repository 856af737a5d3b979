package models

import "time"

// Batch is a named group of students supervised by one batch owner. The store
// enforces at most one batch per owner.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   *string   `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
