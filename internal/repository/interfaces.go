package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
)

// UserRepository is the credential store: direct lookups and mutations with
// no business logic. Lookups are case-sensitive exact matches; uniqueness
// violations surface as domain.ErrConflict and missing rows as
// domain.ErrNotFound. There is no caching layer, so every check reads
// current lockout and role state.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.Account, error)
	GetByResetToken(ctx context.Context, token string) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	Update(ctx context.Context, account domain.Account) (domain.Account, error)
	List(ctx context.Context, offset, limit int) ([]domain.Account, error)

	// WithLock loads the account under a row lock, applies fn, and writes
	// the mutated record back before releasing the lock. Mutations persist
	// even when fn returns an error; only storage failures roll back. The
	// login guardrail uses this so its read-check-increment-write is atomic
	// with concurrent logins for the same account.
	WithLock(ctx context.Context, id uuid.UUID, fn func(account *domain.Account) error) (domain.Account, error)
}

// RefreshTokenRepository persists the refresh-token ledger.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	Revoke(ctx context.Context, id int64) error
}

// BookRepository persists the catalog records.
type BookRepository interface {
	List(ctx context.Context) ([]domain.Book, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Book, error)
	Create(ctx context.Context, book domain.Book) (domain.Book, error)
	Update(ctx context.Context, book domain.Book) (domain.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OAuthStateStore holds single-use federation state tokens. The default
// implementation is process-local and in-memory, which is fine for a single
// instance: an interrupted flow fails closed and the user retries. Sharding
// across instances needs the Redis-backed implementation.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume atomically checks and deletes the state, returning whether it
	// was present and unexpired. A state is never redeemable twice.
	Consume(ctx context.Context, state string) (bool, error)
}
