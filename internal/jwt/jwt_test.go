package jwt_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/jwt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndValidate(t *testing.T) {
	issuer := jwt.NewIssuer(testSecret, "HS256", 30*time.Minute)
	accountID := uuid.New()

	token, err := issuer.Issue(accountID)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, accountID, claims.AccountID)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestValidateExpired(t *testing.T) {
	// TTL well past the validation leeway so the token is already expired.
	issuer := jwt.NewIssuer(testSecret, "HS256", -5*time.Minute)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestValidateWrongSecret(t *testing.T) {
	issuer := jwt.NewIssuer(testSecret, "HS256", 30*time.Minute)
	other := jwt.NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), "HS256", 30*time.Minute)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestValidateGarbage(t *testing.T) {
	issuer := jwt.NewIssuer(testSecret, "HS256", 30*time.Minute)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := issuer.Validate(token)
		require.ErrorIs(t, err, domain.ErrTokenInvalid)
	}
}

func TestValidateTampered(t *testing.T) {
	issuer := jwt.NewIssuer(testSecret, "HS256", 30*time.Minute)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = issuer.Validate(tampered)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}
