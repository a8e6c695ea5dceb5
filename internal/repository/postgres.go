package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
	_ BookRepository         = (*PostgresBookRepo)(nil)
)

const uniqueViolation = "23505"

func mapPgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s (%s): %w", op, pgErr.ConstraintName, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, is_active, is_verified,
verification_token, verification_token_expiry, reset_token, reset_token_expiry,
failed_login_attempts, last_failed_login, locked_until, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a         domain.Account
		hash      sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
		role      string
	)
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&hash,
		&firstName,
		&lastName,
		&role,
		&a.Active,
		&a.Verified,
		&a.VerificationToken,
		&a.VerificationTokenExpiry,
		&a.ResetToken,
		&a.ResetTokenExpiry,
		&a.FailedLoginAttempts,
		&a.LastFailedLogin,
		&a.LockedUntil,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.PasswordHash = hash.String
	a.FirstName = firstName.String
	a.LastName = lastName.String
	a.Role = domain.Role(role)
	return a, nil
}

func (r *PostgresUserRepo) getBy(ctx context.Context, op, where string, arg any) (domain.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s", userColumns, where)
	account, err := scanAccount(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return domain.Account{}, mapPgError(op, err)
	}
	return account, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return r.getBy(ctx, "get user by id", "id = $1", id)
}

func (r *PostgresUserRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.getBy(ctx, "get user by username", "username = $1", username)
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getBy(ctx, "get user by email", "email = $1", email)
}

func (r *PostgresUserRepo) GetByVerificationToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getBy(ctx, "get user by verification token", "verification_token = $1", token)
}

func (r *PostgresUserRepo) GetByResetToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getBy(ctx, "get user by reset token", "reset_token = $1", token)
}

const insertUserSQL = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, is_active, is_verified,
verification_token, verification_token_expiry, reset_token, reset_token_expiry)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		account.ID,
		account.Username,
		account.Email,
		nullString(account.PasswordHash),
		nullString(account.FirstName),
		nullString(account.LastName),
		string(account.Role),
		account.Active,
		account.Verified,
		account.VerificationToken,
		account.VerificationTokenExpiry,
		account.ResetToken,
		account.ResetTokenExpiry,
	)
	created, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapPgError("create user", err)
	}
	return created, nil
}

const updateUserSQL = `UPDATE users SET username = $2, email = $3, password_hash = $4, first_name = $5, last_name = $6,
role = $7, is_active = $8, is_verified = $9,
verification_token = $10, verification_token_expiry = $11, reset_token = $12, reset_token_expiry = $13,
failed_login_attempts = $14, last_failed_login = $15, locked_until = $16, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *PostgresUserRepo) Update(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, updateUserSQL, updateArgs(account)...)
	updated, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapPgError("update user", err)
	}
	return updated, nil
}

func updateArgs(account domain.Account) []any {
	return []any{
		account.ID,
		account.Username,
		account.Email,
		nullString(account.PasswordHash),
		nullString(account.FirstName),
		nullString(account.LastName),
		string(account.Role),
		account.Active,
		account.Verified,
		account.VerificationToken,
		account.VerificationTokenExpiry,
		account.ResetToken,
		account.ResetTokenExpiry,
		account.FailedLoginAttempts,
		account.LastFailedLogin,
		account.LockedUntil,
	}
}

func (r *PostgresUserRepo) List(ctx context.Context, offset, limit int) ([]domain.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at OFFSET $1 LIMIT $2", userColumns)
	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, mapPgError("list users", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, mapPgError("list users", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("list users", err)
	}
	return accounts, nil
}

func (r *PostgresUserRepo) WithLock(ctx context.Context, id uuid.UUID, fn func(account *domain.Account) error) (domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 FOR UPDATE", userColumns)
	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Account{}, mapPgError("lock user", err)
	}

	fnErr := fn(&account)

	updated, err := scanAccount(tx.QueryRow(ctx, updateUserSQL, updateArgs(account)...))
	if err != nil {
		return domain.Account{}, mapPgError("write locked user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Account{}, fmt.Errorf("commit: %w", err)
	}
	return updated, fnErr
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const refreshTokenColumns = `id, token, account_id, expires_at, is_revoked, device_info, created_at`

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t      domain.RefreshToken
		device sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Token, &t.AccountID, &t.ExpiresAt, &t.Revoked, &device, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, err
	}
	t.DeviceInfo = device.String
	return t, nil
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, token, account_id, expires_at, is_revoked, device_info)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + refreshTokenColumns

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		token.ID,
		token.Token,
		token.AccountID,
		token.ExpiresAt,
		token.Revoked,
		nullString(token.DeviceInfo),
	)
	created, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapPgError("create refresh token", err)
	}
	return created, nil
}

func (r *PostgresRefreshTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	query := fmt.Sprintf("SELECT %s FROM refresh_tokens WHERE token = $1", refreshTokenColumns)
	stored, err := scanRefreshToken(r.db.QueryRow(ctx, query, token))
	if err != nil {
		return domain.RefreshToken{}, mapPgError("get refresh token", err)
	}
	return stored, nil
}

func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, "UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1", id); err != nil {
		return mapPgError("revoke refresh token", err)
	}
	return nil
}

// PostgresBookRepo implements BookRepository.
type PostgresBookRepo struct {
	db *pgxpool.Pool
}

func NewPostgresBookRepo(pool *pgxpool.Pool) *PostgresBookRepo {
	return &PostgresBookRepo{db: pool}
}

const bookColumns = `id, title, author, publisher, published_date, page_count, language, created_at, updated_at`

func scanBook(row rowScanner) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.PublishedDate, &b.PageCount, &b.Language, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *PostgresBookRepo) List(ctx context.Context) ([]domain.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books ORDER BY created_at", bookColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapPgError("list books", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, mapPgError("list books", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("list books", err)
	}
	return books, nil
}

func (r *PostgresBookRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)
	book, err := scanBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Book{}, mapPgError("get book", err)
	}
	return book, nil
}

const insertBookSQL = `INSERT INTO books (id, title, author, publisher, published_date, page_count, language)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + bookColumns

func (r *PostgresBookRepo) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	row := r.db.QueryRow(ctx, insertBookSQL,
		book.ID, book.Title, book.Author, book.Publisher, book.PublishedDate, book.PageCount, book.Language)
	created, err := scanBook(row)
	if err != nil {
		return domain.Book{}, mapPgError("create book", err)
	}
	return created, nil
}

const updateBookSQL = `UPDATE books SET title = $2, author = $3, publisher = $4, published_date = $5,
page_count = $6, language = $7, updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns

func (r *PostgresBookRepo) Update(ctx context.Context, book domain.Book) (domain.Book, error) {
	row := r.db.QueryRow(ctx, updateBookSQL,
		book.ID, book.Title, book.Author, book.Publisher, book.PublishedDate, book.PageCount, book.Language)
	updated, err := scanBook(row)
	if err != nil {
		return domain.Book{}, mapPgError("update book", err)
	}
	return updated, nil
}

func (r *PostgresBookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return mapPgError("delete book", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete book: %w", domain.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
