package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	tokens := NewTokenService(StaticSecret([]byte("guard-secret")))
	guard := NewGuard(tokens)

	tokA, err := tokens.Issue(1)
	require.NoError(t, err)

	expired := newTestTokenService("guard-secret", time.Now().Add(-time.Hour))
	oldTok, err := expired.Issue(1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		owner   int64
		wantErr error
	}{
		{"owner matches", "Bearer " + tokA, 1, nil},
		{"adjacent owner", "Bearer " + tokA, 2, ErrForbidden},
		{"missing header", "", 1, ErrUnauthorized},
		{"no bearer prefix", tokA, 1, ErrUnauthorized},
		{"lowercase scheme", "bearer " + tokA, 1, ErrUnauthorized},
		{"empty token", "Bearer ", 1, ErrUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", 1, ErrUnauthorized},
		{"expired token", "Bearer " + oldTok, 1, ErrUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", 1, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := guard.Authorize(tt.header, tt.owner)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, claims.Subject)
		})
	}
}

func TestGuard_Authenticate(t *testing.T) {
	tokens := NewTokenService(StaticSecret([]byte("guard-secret")))
	guard := NewGuard(tokens)

	tok, err := tokens.Issue(99)
	require.NoError(t, err)

	claims, err := guard.Authenticate("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, int64(99), claims.Subject)

	_, err = guard.Authenticate("Bearer")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
