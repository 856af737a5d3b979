package models

import "time"

// UserRole represents the available roles.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleBatchOwner UserRole = "batch_owner"
	RoleStudent    UserRole = "student"
)

// User is owned by the entity-store collaborator; the ledger only reads it
// (marked_by resolution, role counts for the dashboard).
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      UserRole  `db:"role" json:"role"`
	BatchID   *string   `db:"batch_id" json:"batch_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
