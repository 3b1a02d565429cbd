package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safewalk/safewalk/internal/auth"
)

const testKey = "test-secret-key-for-testing-only"

func TestVerifier_SignAndVerify(t *testing.T) {
	v := auth.NewVerifier(auth.Config{
		SigningKey: testKey,
		Issuer:     "https://auth.safewalk.test/auth/v1",
		Audience:   "authenticated",
	})

	token, err := v.Sign("user-123", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, "https://auth.safewalk.test/auth/v1", claims.Issuer)
}

func TestVerifier_IssuerAndAudienceOptional(t *testing.T) {
	v := auth.NewVerifier(auth.Config{SigningKey: testKey})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"iss": "anyone",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID())
}

func TestVerifier_InvalidToken(t *testing.T) {
	v := auth.NewVerifier(auth.Config{SigningKey: testKey, Audience: "authenticated"})
	other := auth.NewVerifier(auth.Config{SigningKey: "a-different-key", Audience: "authenticated"})
	wrongAudience := auth.NewVerifier(auth.Config{SigningKey: testKey, Audience: "service_role"})

	foreign, err := other.Sign("user-1", time.Hour)
	require.NoError(t, err)
	misaddressed, err := wrongAudience.Sign("user-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
		{"wrong key", foreign},
		{"wrong audience", misaddressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestVerifier_ExpiredToken(t *testing.T) {
	v := auth.NewVerifier(auth.Config{SigningKey: testKey, Leeway: time.Second})

	token, err := v.Sign("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	v := auth.NewVerifier(auth.Config{SigningKey: testKey})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestVerifier_RequiresSubject(t *testing.T) {
	v := auth.NewVerifier(auth.Config{SigningKey: testKey})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}
