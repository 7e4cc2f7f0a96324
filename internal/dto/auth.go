package dto

import "github.com/golang-jwt/jwt/v5"

// AuthRequest is a wallet-signature login. Message must be the exact nonce
// challenge previously issued by the nonce endpoint.
type AuthRequest struct {
	UserAddress string `json:"user_address" binding:"required"`
	Message     string `json:"message" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// AuthResponse carries the session token on success.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// JWTClaims is the user session token payload.
type JWTClaims struct {
	UserAddress string `json:"user_address"`
	jwt.RegisteredClaims
}
