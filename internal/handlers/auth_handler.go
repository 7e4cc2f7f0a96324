package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"bridge-backend/internal/dto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

func userJWTSecret() []byte {
	if s := os.Getenv("USER_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("bridge-user-jwt-secret-change-me")
}

// AuthHandler authenticates wallets: the client fetches a nonce challenge,
// signs it with its key (EIP-191 personal_sign) and trades the signature for
// a session JWT. Relayers authenticate the same way; their address then has
// to hold the relayer role (or carry a validator proof) at the bridge layer.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// GenerateNonceHandler issues a fresh login challenge.
// GET /api/auth/nonce
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "failed to generate nonce",
		})
		return
	}

	nonceStr := hex.EncodeToString(nonce)
	timestamp := time.Now().Unix()
	message := fmt.Sprintf("Bridge Authentication\nNonce: %s\nTimestamp: %d", nonceStr, timestamp)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"nonce":     nonceStr,
		"message":   message,
		"timestamp": timestamp,
	})
}

// AuthenticateHandler verifies the wallet signature and issues a session JWT.
// POST /api/auth/login
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	if !common.IsHexAddress(req.UserAddress) {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: "user_address must be a hex address",
		})
		return
	}

	if !verifyPersonalSignature(req.UserAddress, req.Message, req.Signature) {
		logrus.WithField("user", req.UserAddress).Warn("wallet signature verification failed")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "signature verification failed",
		})
		return
	}

	address := strings.ToLower(req.UserAddress)
	token, err := generateUserJWTToken(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "failed to generate token",
		})
		return
	}

	logrus.WithField("user", address).Info("✅ Wallet authenticated")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "authenticated",
	})
}

// verifyPersonalSignature checks an EIP-191 personal_sign signature over
// message against the claimed address.
func verifyPersonalSignature(address, message, signature string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}

func generateUserJWTToken(address string) (string, error) {
	claims := dto.JWTClaims{
		UserAddress: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "bridge-backend",
			Subject:   address,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(userJWTSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWTToken parses and validates a user session token.
func ValidateJWTToken(tokenString string) (*dto.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return userJWTSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims, ok := token.Claims.(*dto.JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
