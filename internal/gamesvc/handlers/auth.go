package handlers

import (
	"time"

	"github.com/go-chi/jwtauth"
)

// NewTokenAuth verifies HS256 tokens signed with secret.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token identifying player.
func IssueToken(tokenAuth *jwtauth.JWTAuth, player string, ttl time.Duration) (string, error) {
	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{
		PlayerClaim: player,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}
