package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted long-lived credential. Immutable once issued
// except for Revoked, which only transitions false to true.
type RefreshToken struct {
	ID         int64
	Token      string
	AccountID  uuid.UUID
	ExpiresAt  time.Time
	Revoked    bool
	DeviceInfo string
	CreatedAt  time.Time
}
