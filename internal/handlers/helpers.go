package handlers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// parseAmount parses a decimal amount string. The zero/negative check is left
// to the endpoint so every path reports the same error code.
func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer, got %q", s)
	}
	return amount, nil
}

// parseTransferID parses a 0x-prefixed 32-byte transfer identifier.
func parseTransferID(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != 64 {
		return common.Hash{}, fmt.Errorf("transfer_id must be 32 bytes hex, got %q", s)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return common.Hash{}, fmt.Errorf("transfer_id is not valid hex: %w", err)
	}
	return common.HexToHash(raw), nil
}

// parseProof decodes an optional hex signature proof.
func parseProof(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	proof, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("proof is not valid hex: %w", err)
	}
	return proof, nil
}

// httpStatus maps bridge errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, bridge.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrPaused),
		errors.Is(err, bridge.ErrWrongSide),
		errors.Is(err, bridge.ErrInsufficientCustody),
		errors.Is(err, bridge.ErrReentrantCall):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondBridgeError writes the uniform error envelope for a failed operation.
func respondBridgeError(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    bridge.ErrorCode(err),
	})
}
