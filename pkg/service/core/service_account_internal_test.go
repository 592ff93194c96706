package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	sign := func(exp time.Time) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("not-our-key"))
		require.NoError(t, err)

		return token
	}

	testCases := []struct {
		name   string
		token  string
		expect time.Time
	}{
		{
			name:   "exp claim",
			token:  sign(now.Add(30 * time.Minute)),
			expect: now.Add(30 * time.Minute),
		},
		{
			name:   "already expired",
			token:  sign(now.Add(-time.Minute)),
			expect: now.Add(DefaultSessionLifetime),
		},
		{
			name:   "opaque token",
			token:  "not-a-jwt",
			expect: now.Add(DefaultSessionLifetime),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.expect.Equal(tokenExpiry(tc.token, now)))
		})
	}
}
