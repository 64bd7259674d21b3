package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	now := time.Now()
	issued, err := IssueToken(secret, Claims{Sub: "admin", Role: RoleAdmin, JTI: "jti-1", Exp: now.Add(time.Hour).Unix()})
	require.NoError(t, err)

	claims, err := ParseToken(secret, issued, now)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Sub)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	now := time.Now()
	issued, err := IssueToken(secret, Claims{Sub: "admin", JTI: "jti-1", Exp: now.Add(-time.Minute).Unix()})
	require.NoError(t, err)

	_, err = ParseToken(secret, issued, now)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	now := time.Now()
	issued, err := IssueToken(secret, Claims{Sub: "admin", JTI: "jti-1", Exp: now.Add(time.Hour).Unix()})
	require.NoError(t, err)

	_, err = ParseToken([]byte("other"), issued, now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	payload, signature, _ := strings.Cut(issued, ".")
	_, err = ParseToken(secret, payload+"x."+signature, now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, bad := range []string{"", "abc", "a.b.c"} {
		_, err = ParseToken(secret, bad, now)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	token, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer  "} {
		_, ok = BearerToken(header)
		assert.False(t, ok, header)
	}
}
