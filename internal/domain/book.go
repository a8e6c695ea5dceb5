package domain

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog record. The catalog has no invariants beyond ID
// uniqueness; it exists as the protected surface behind the auth core.
type Book struct {
	ID            uuid.UUID
	Title         string
	Author        string
	Publisher     string
	PublishedDate string
	PageCount     int
	Language      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
