package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role orders account privilege levels from least to most privileged.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:      0,
	RoleModerator: 1,
	RoleAdmin:     2,
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Meets reports whether the role grants at least the privilege of minimum.
// Unknown roles never meet any minimum.
func (r Role) Meets(minimum Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[minimum]
}

// ParseRole validates a role string from external input.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Account is the persisted identity record. PasswordHash is empty for
// accounts created through OAuth federation.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool
	Verified     bool

	// One-time token slots. A token, when present, is always paired with
	// a non-nil expiry.
	VerificationToken       *string
	VerificationTokenExpiry *time.Time
	ResetToken              *string
	ResetTokenExpiry        *time.Time

	// Login guardrail state. Counters live on the row so lockout survives
	// process restarts and stays consistent across server instances.
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
