package jwt

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
)

// Issuer signs and validates access tokens with a process-wide symmetric
// secret. It is stateless: a token is a pure function of secret, claims,
// and clock. Access tokens carry no revocation mechanism; the short TTL is
// the sole mitigation, and revocation lives at the refresh-token layer.
type Issuer struct {
	secret    []byte
	algorithm gojose.SignatureAlgorithm
	accessTTL time.Duration
}

// NewIssuer constructs an access-token issuer.
func NewIssuer(secret []byte, algorithm string, accessTTL time.Duration) *Issuer {
	return &Issuer{
		secret:    secret,
		algorithm: gojose.SignatureAlgorithm(algorithm),
		accessTTL: accessTTL,
	}
}

// AccessTTL exposes the configured token lifetime for expires_in responses.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Claims is the transient payload of a validated access token.
type Claims struct {
	AccountID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issue mints a signed token with the account as subject and an absolute
// expiry of now plus the configured TTL.
func (i *Issuer) Issue(accountID uuid.UUID) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: i.algorithm, Key: i.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:  accountID.String(),
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(i.accessTTL)),
	}

	token, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return token, nil
}

// Validate verifies signature and expiry. It returns domain.ErrTokenExpired
// for structurally valid tokens past their expiry and domain.ErrTokenInvalid
// for everything else so clients can message the two cases apart.
func (i *Issuer) Validate(token string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{i.algorithm})
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var std gojwt.Claims
	if err := parsed.Claims(i.secret, &std); err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	accountID, err := uuid.Parse(std.Subject)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	claims := &Claims{AccountID: accountID}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	if std.Expiry != nil {
		claims.ExpiresAt = std.Expiry.Time()
	}
	return claims, nil
}
