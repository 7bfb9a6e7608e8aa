package models

import "time"

// User represents a user in the system
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	AccountIDs   []int64   `json:"account_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
