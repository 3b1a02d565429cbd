// Package auth verifies bearer access tokens.
//
// Tokens are HS256 JWTs issued by the identity provider (Supabase-style
// access tokens). The user ID is the "sub" claim. Issuer and audience are
// checked only when configured.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSubject     = errors.New("access token has no subject")
)

// Claims are the claims read from access tokens.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Config holds configuration for the verifier.
type Config struct {
	// SigningKey is the shared HS256 secret.
	SigningKey string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must be in the aud claim.
	Audience string

	// Leeway tolerates clock skew on exp and nbf (default: 30s).
	Leeway time.Duration
}

// Verifier validates access tokens.
type Verifier struct {
	signingKey []byte
	parser     *jwt.Parser
	issuer     string
	audience   string
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) *Verifier {
	leeway := cfg.Leeway
	if leeway == 0 {
		leeway = 30 * time.Second
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		signingKey: []byte(cfg.SigningKey),
		parser:     jwt.NewParser(opts...),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// Verify validates tokenString and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

// Sign issues a token for userID valid for ttl with the verifier's issuer
// and audience. Used by local tooling and tests; production tokens come
// from the identity provider.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: "authenticated",
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return token, nil
}
