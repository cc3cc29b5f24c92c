package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	// TokenTypeAccess is a short-lived operator token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeService is a long-lived token for the external scheduler
	// that triggers dispatch.
	TokenTypeService TokenType = "service"
)

// Claims are the only supported JWT claims shape for this service.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
