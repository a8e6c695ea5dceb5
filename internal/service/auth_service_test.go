package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/config"
	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/jwt"
	"github.com/Gauravpathak1789/Bookly/internal/mail"
	"github.com/Gauravpathak1789/Bookly/internal/service"
)

func testConfig() config.Config {
	return config.Config{
		AccessTokenTTL:       30 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		RefreshTokenBytes:    32,
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		LoginMaxAttempts:     5,
		LoginAttemptWindow:   15 * time.Minute,
		LockoutDuration:      30 * time.Minute,
		FrontendURL:          "http://localhost:3000",
	}
}

func newTestService(t *testing.T) (*service.AuthService, *memoryUserRepo, *memoryTokenRepo, *recordSender) {
	t.Helper()
	users := newMemoryUserRepo()
	tokens := newMemoryTokenRepo()
	sender := &recordSender{}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	issuer := jwt.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), "HS256", 30*time.Minute)
	svc := service.NewAuthService(users, tokens, node, issuer, sender, testConfig(), zap.NewNop())
	return svc, users, tokens, sender
}

func registerAccount(t *testing.T, svc *service.AuthService) domain.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), service.RegisterInput{
		Username: "alice",
		Email:    "a@x.com",
		Password: "pw123456",
	})
	require.NoError(t, err)
	return account
}

func TestRegisterAndLoginFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, _, sender := newTestService(t)

	account := registerAccount(t, svc)
	require.Equal(t, domain.RoleUser, account.Role)
	require.True(t, account.Active)
	require.False(t, account.Verified)

	stored, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	require.NotNil(t, stored.VerificationTokenExpiry)

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "a@x.com", sender.sent()[0].To)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	registerAccount(t, svc)

	_, err := svc.Register(ctx, service.RegisterInput{Username: "alice2", Email: "a@x.com", Password: "pw123456"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Login(context.Background(), "nobody@x.com", "whatever", "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginGuardrailLockout(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	registerAccount(t, svc)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "a@x.com", "wrong", "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	// Correct password no longer helps once locked.
	_, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	var rateErr *domain.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	require.GreaterOrEqual(t, rateErr.RetryAfterMinutes(), 1)
}

func TestLoginSuccessResetsCounters(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, "a@x.com", "wrong", "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Zero(t, stored.FailedLoginAttempts)
	require.Nil(t, stored.LastFailedLogin)
	require.Nil(t, stored.LockedUntil)
}

func TestLoginExpiredLockoutClears(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.FailedLoginAttempts = 5
	stored.LastFailedLogin = &past
	stored.LockedUntil = &past
	_, err = users.Update(ctx, stored)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	after, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Zero(t, after.FailedLoginAttempts)
	require.Nil(t, after.LastFailedLogin)
	require.Nil(t, after.LockedUntil)
}

func TestLoginStaleFailureWindowResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	stale := time.Now().Add(-16 * time.Minute)
	stored.FailedLoginAttempts = 4
	stored.LastFailedLogin = &stale
	_, err = users.Update(ctx, stored)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "wrong", "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	after, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 1, after.FailedLoginAttempts)
	require.Nil(t, after.LockedUntil)
}

func TestConcurrentFailedLoginsCountEachAttempt(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Login(ctx, "a@x.com", "wrong", "")
		}()
	}
	wg.Wait()

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.FailedLoginAttempts)
}

func TestLoginInactiveAccount(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	account, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	account.Active = false
	_, err = users.Update(ctx, account)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "pw123456", "")
	require.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestRefreshIssuesAccessOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens, _ := newTestService(t)
	registerAccount(t, svc)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Empty(t, refreshed.RefreshToken)

	// The stored refresh token is not rotated.
	stored, err := tokens.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.False(t, stored.Revoked)
}

func TestRefreshRevokedToken(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens, _ := newTestService(t)
	account := registerAccount(t, svc)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, account.ID, pair.RefreshToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	stored, err := tokens.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, stored.Revoked)
}

func TestRefreshExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens, _ := newTestService(t)
	registerAccount(t, svc)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	stored, err := tokens.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	tokens.put(stored)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Refresh(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestLogoutIsSilentForUnknownAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens, _ := newTestService(t)
	account := registerAccount(t, svc)

	require.NoError(t, svc.Logout(ctx, account.ID, "unknown-token"))

	other, err := svc.Register(ctx, service.RegisterInput{Username: "bob", Email: "b@x.com", Password: "pw123456"})
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	// Bob cannot revoke Alice's token, and gets no error saying so.
	require.NoError(t, svc.Logout(ctx, other.ID, pair.RefreshToken))
	stored, err := tokens.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.False(t, stored.Revoked)
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	token := *stored.VerificationToken

	require.NoError(t, svc.VerifyEmail(ctx, token))

	verified, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, verified.Verified)
	require.Nil(t, verified.VerificationToken)
	require.Nil(t, verified.VerificationTokenExpiry)

	require.ErrorIs(t, svc.VerifyEmail(ctx, token), domain.ErrTokenInvalid)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.VerificationTokenExpiry = &past
	_, err = users.Update(ctx, stored)
	require.NoError(t, err)

	require.ErrorIs(t, svc.VerifyEmail(ctx, *stored.VerificationToken), domain.ErrTokenExpired)
}

func TestResendVerificationInvalidatesOldToken(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	oldToken := *stored.VerificationToken

	require.NoError(t, svc.ResendVerification(ctx, "a@x.com"))

	require.ErrorIs(t, svc.VerifyEmail(ctx, oldToken), domain.ErrTokenInvalid)

	stored, err = users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, *stored.VerificationToken))
}

func TestResendVerificationNeverRevealsAccounts(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	// Unknown email and already-verified account both succeed silently.
	require.NoError(t, svc.ResendVerification(ctx, "nobody@x.com"))

	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	stored.Verified = true
	_, err = users.Update(ctx, stored)
	require.NoError(t, err)
	require.NoError(t, svc.ResendVerification(ctx, "a@x.com"))
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, _, sender := newTestService(t)
	require.NoError(t, svc.ForgotPassword(context.Background(), "nobody@x.com"))
	// No account, no email.
	time.Sleep(50 * time.Millisecond)
	for _, msg := range sender.sent() {
		require.NotEqual(t, "nobody@x.com", msg.To)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	// Lock the account first; reset must clear the counters.
	for i := 0; i < 5; i++ {
		_, _ = svc.Login(ctx, "a@x.com", "wrong", "")
	}

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)

	require.NoError(t, svc.ResetPassword(ctx, *stored.ResetToken, "newpw1234"))

	after, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Nil(t, after.ResetToken)
	require.Zero(t, after.FailedLoginAttempts)
	require.Nil(t, after.LockedUntil)

	_, err = svc.Login(ctx, "a@x.com", "newpw1234", "")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@x.com", "pw123456", "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestResetPasswordExpiredTokenLeavesHash(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.ResetTokenExpiry = &past
	_, err = users.Update(ctx, stored)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetPassword(ctx, *stored.ResetToken, "newpw1234"), domain.ErrTokenExpired)

	after, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, stored.PasswordHash, after.PasswordHash)
}

func TestResetPasswordSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	stored, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	token := *stored.ResetToken

	require.NoError(t, svc.ResetPassword(ctx, token, "newpw1234"))
	require.ErrorIs(t, svc.ResetPassword(ctx, token, "anotherpw1"), domain.ErrTokenInvalid)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	err := svc.ChangePassword(ctx, account.ID, "wrong", "newpw1234")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, account.ID, "pw123456", "newpw1234"))
	_, err = svc.Login(ctx, "a@x.com", "newpw1234", "")
	require.NoError(t, err)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	pair, err := svc.Login(ctx, "a@x.com", "pw123456", "")
	require.NoError(t, err)

	resolved, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, resolved.ID)

	_, err = svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestAdminGates(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	admin, err := svc.Register(ctx, service.RegisterInput{Username: "root", Email: "root@x.com", Password: "pw123456"})
	require.NoError(t, err)
	stored, err := users.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	stored.Role = domain.RoleAdmin
	admin, err = users.Update(ctx, stored)
	require.NoError(t, err)

	_, err = svc.ListAccounts(ctx, account, 0, 10)
	require.ErrorIs(t, err, domain.ErrForbidden)

	accounts, err := svc.ListAccounts(ctx, admin, 0, 10)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	_, err = svc.SetRole(ctx, account, admin.ID, domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := svc.SetRole(ctx, admin, account.ID, domain.RoleModerator)
	require.NoError(t, err)
	require.Equal(t, domain.RoleModerator, updated.Role)
}

func TestDeactivateGates(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	account := registerAccount(t, svc)

	mod, err := svc.Register(ctx, service.RegisterInput{Username: "mod", Email: "mod@x.com", Password: "pw123456"})
	require.NoError(t, err)
	stored, err := users.GetByID(ctx, mod.ID)
	require.NoError(t, err)
	stored.Role = domain.RoleModerator
	mod, err = users.Update(ctx, stored)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Deactivate(ctx, account, mod.ID), domain.ErrForbidden)
	require.ErrorIs(t, svc.Deactivate(ctx, mod, mod.ID), domain.ErrSelfDeactivation)

	require.NoError(t, svc.Deactivate(ctx, mod, account.ID))
	after, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, after.Active)
}

// --- fakes ---

type memoryUserRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{accounts: make(map[uuid.UUID]domain.Account)}
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (m *memoryUserRepo) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	return m.findBy(func(a domain.Account) bool { return a.Username == username })
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	return m.findBy(func(a domain.Account) bool { return a.Email == email })
}

func (m *memoryUserRepo) GetByVerificationToken(_ context.Context, token string) (domain.Account, error) {
	return m.findBy(func(a domain.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == token
	})
}

func (m *memoryUserRepo) GetByResetToken(_ context.Context, token string) (domain.Account, error) {
	return m.findBy(func(a domain.Account) bool {
		return a.ResetToken != nil && *a.ResetToken == token
	})
}

func (m *memoryUserRepo) findBy(match func(domain.Account) bool) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if match(account) {
			return account, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (m *memoryUserRepo) Create(_ context.Context, account domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return domain.Account{}, domain.ErrConflict
		}
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memoryUserRepo) Update(_ context.Context, account domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	account.UpdatedAt = time.Now()
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memoryUserRepo) List(_ context.Context, offset, limit int) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		all = append(all, account)
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memoryUserRepo) WithLock(_ context.Context, id uuid.UUID, fn func(*domain.Account) error) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	fnErr := fn(&account)
	account.UpdatedAt = time.Now()
	m.accounts[id] = account
	return account, fnErr
}

type memoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]domain.RefreshToken)}
}

func (m *memoryTokenRepo) Create(_ context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.CreatedAt = time.Now()
	m.tokens[token.Token] = token
	return token, nil
}

func (m *memoryTokenRepo) GetByToken(_ context.Context, token string) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tokens[token]
	if !ok {
		return domain.RefreshToken{}, domain.ErrNotFound
	}
	return stored, nil
}

func (m *memoryTokenRepo) Revoke(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, stored := range m.tokens {
		if stored.ID == id {
			stored.Revoked = true
			m.tokens[key] = stored
		}
	}
	return nil
}

func (m *memoryTokenRepo) put(token domain.RefreshToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
}

type recordSender struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (r *recordSender) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordSender) sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mail.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}
