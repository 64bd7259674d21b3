package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	ContactStatusNew      = "new"
	ContactStatusRead     = "read"
	ContactStatusArchived = "archived"
	ContactStatusDeleted  = "deleted"
)

type ContactMessage struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      *string    `json:"phone"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}
