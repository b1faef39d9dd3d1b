package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an issued bearer token.
const TokenTTL = 15 * time.Minute

// InsecureDefaultSecret signs tokens when no secret is configured.
// It is public knowledge and only acceptable for local development; the
// server refuses to start in production without PASSIFLORA_SERVER_JWT_SECRET.
const InsecureDefaultSecret = "43aaf85b92f1ae6fbcef7732c50a0904"

// ErrUnauthorized covers every reason a token or header is rejected.
// Callers cannot tell an expired token from a forged one.
var ErrUnauthorized = errors.New("unauthorized")

// SecretFunc resolves the signing secret. It is called for every Issue and
// Verify so a rotated environment value takes effect immediately.
type SecretFunc func() []byte

// EnvSecret reads the secret from the environment variable key on each call,
// falling back to InsecureDefaultSecret when it is unset or empty.
func EnvSecret(key string) SecretFunc {
	return func() []byte {
		if v := os.Getenv(key); v != "" {
			return []byte(v)
		}
		return []byte(InsecureDefaultSecret)
	}
}

// StaticSecret always returns secret.
func StaticSecret(secret []byte) SecretFunc {
	return func() []byte { return secret }
}

// Claims is the token payload: {"sub": <user id>, "exp": <unix seconds>}.
type Claims struct {
	Subject   int64            `json:"sub"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *Claims) GetIssuer() (string, error)                   { return "", nil }
func (c *Claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

func (c *Claims) GetSubject() (string, error) {
	return strconv.FormatInt(c.Subject, 10), nil
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret SecretFunc
	now    func() time.Time
}

// NewTokenService creates a token service using secret for signing.
func NewTokenService(secret SecretFunc) *TokenService {
	return &TokenService{secret: secret, now: time.Now}
}

// Issue creates a signed token for subject that expires after TokenTTL.
func (s *TokenService) Issue(subject int64) (string, error) {
	claims := &Claims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(s.now().Add(TokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiration of token and returns its claims.
// Any failure is reported as ErrUnauthorized.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
