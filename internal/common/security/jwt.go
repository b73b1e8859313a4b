package security

import (
	"fmt"
	"time"

	"tasklane/internal/common"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer issues and verifies the HS256 bearer tokens used on every
// protected route. It is built once from configuration at startup and
// injected where needed; the signing key never lives in a package global.
type TokenIssuer struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
	}
}

// JWTAuth exposes the underlying verifier for the jwtauth router middleware.
func (t *TokenIssuer) JWTAuth() *jwtauth.JWTAuth {
	return t.auth
}

// Issue signs a token whose subject is the username. Validity is purely
// signature plus expiry; there is no revocation list.
func (t *TokenIssuer) Issue(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"exp": now.Add(t.ttl).Unix(),
		"iat": now.Unix(),
	}
	_, tokenString, err := t.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return tokenString, nil
}

// Verify checks signature and strict wall-clock expiry and returns the
// subject claim. All failure modes collapse to ErrUnauthorized.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwtauth.VerifyToken(t.auth, tokenString)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
	}
	sub := token.Subject()
	if sub == "" {
		return "", fmt.Errorf("sub claim is missing: %w", common.ErrUnauthorized)
	}
	return sub, nil
}

// SubjectFromClaims extracts the username from middleware-provided claims.
func SubjectFromClaims(claims map[string]interface{}) (string, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("sub claim is missing or not a string: %w", common.ErrUnauthorized)
	}
	return sub, nil
}
