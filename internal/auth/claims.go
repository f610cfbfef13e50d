package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Subject is the volunteer id; every volunteer has the same capabilities.
type Claims struct {
	jwt.RegisteredClaims

	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// Identity is the volunteer a token was issued to.
type Identity struct {
	VolunteerID string
	Email       string
	Name        string
}
