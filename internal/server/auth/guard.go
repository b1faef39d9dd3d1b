package auth

import (
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

// ErrForbidden means the token is valid but belongs to another subject.
var ErrForbidden = errors.New("forbidden")

// Guard authenticates the Authorization header of a request and checks the
// subject against the owner of the requested resource. It keeps no state
// between requests.
type Guard struct {
	tokens *TokenService
}

func NewGuard(tokens *TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate verifies a "Bearer <token>" header value.
func (g *Guard) Authenticate(authorization string) (*Claims, error) {
	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok || token == "" {
		return nil, ErrUnauthorized
	}
	return g.tokens.Verify(token)
}

// Authorize authenticates the header and requires the token subject to be
// ownerID.
func (g *Guard) Authorize(authorization string, ownerID int64) (*Claims, error) {
	claims, err := g.Authenticate(authorization)
	if err != nil {
		return nil, err
	}
	if claims.Subject != ownerID {
		return nil, ErrForbidden
	}
	return claims, nil
}
