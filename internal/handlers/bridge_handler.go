package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BridgeHandler exposes the four transfer operations over HTTP. Lock and burn
// act for the authenticated wallet; unlock and mint are the relayed half and
// go through the endpoint's access policy.
type BridgeHandler struct {
	endpoint *bridge.Endpoint
	logger   *logrus.Logger
}

func NewBridgeHandler(endpoint *bridge.Endpoint, logger *logrus.Logger) *BridgeHandler {
	return &BridgeHandler{endpoint: endpoint, logger: logger}
}

// LockHandler starts an outbound transfer on the custody side.
// POST /api/bridge/lock
func (h *BridgeHandler) LockHandler(c *gin.Context) {
	var req dto.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBadRequest(c, "lock", err)
		return
	}
	h.initiate(c, "lock", req.Amount, h.endpoint.Lock)
}

// BurnHandler starts an inbound transfer on the issuance side.
// POST /api/bridge/burn
func (h *BridgeHandler) BurnHandler(c *gin.Context) {
	var req dto.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBadRequest(c, "burn", err)
		return
	}
	h.initiate(c, "burn", req.Amount, h.endpoint.Burn)
}

func (h *BridgeHandler) rejectBadRequest(c *gin.Context, operation string, err error) {
	metrics.RecordOperation(operation, "bad_request")
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    "BAD_REQUEST",
	})
}

func (h *BridgeHandler) initiate(c *gin.Context, operation, amountStr string, call func(ctx context.Context, caller string, amount *big.Int) (*bridge.Event, error)) {
	started := time.Now()

	caller := c.GetString("user_address")
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "authentication required",
			"code":    "UNAUTHENTICATED",
		})
		return
	}

	amount, err := parseAmount(amountStr)
	if err != nil {
		h.rejectBadRequest(c, operation, err)
		return
	}

	event, err := call(c.Request.Context(), caller, amount)
	metrics.BridgeOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.RecordOperation(operation, "error")
		h.logger.WithFields(logrus.Fields{
			"operation": operation,
			"caller":    caller,
			"error":     err.Error(),
		}).Warn("bridge operation rejected")
		respondBridgeError(c, err)
		return
	}

	metrics.RecordOperation(operation, "success")
	h.refreshLockedGauge(c.Request.Context())
	c.JSON(http.StatusOK, dto.TransferResponse{
		Success:    true,
		TransferID: event.TransferID.Hex(),
		Nonce:      event.Nonce,
	})
}

func (h *BridgeHandler) refreshLockedGauge(ctx context.Context) {
	if !h.endpoint.Config().IsSource {
		return
	}
	if locked, err := h.endpoint.LockedBalance(ctx); err == nil {
		f, _ := new(big.Float).SetInt(locked).Float64()
		metrics.LockedBalance.Set(f)
	}
}

// UnlockHandler completes a relayed transfer on the custody side.
// POST /api/bridge/unlock
func (h *BridgeHandler) UnlockHandler(c *gin.Context) {
	h.release(c, "unlock", h.endpoint.Unlock)
}

// MintHandler completes a relayed transfer on the issuance side.
// POST /api/bridge/mint
func (h *BridgeHandler) MintHandler(c *gin.Context) {
	h.release(c, "mint", h.endpoint.Mint)
}

func (h *BridgeHandler) release(c *gin.Context, operation string, call func(ctx context.Context, claim bridge.Claim, user string, amount *big.Int, nonce uint64, originID common.Hash) (*bridge.Event, error)) {
	started := time.Now()

	caller := c.GetString("user_address")
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "authentication required",
			"code":    "UNAUTHENTICATED",
		})
		return
	}

	var req dto.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBadRequest(c, operation, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.rejectBadRequest(c, operation, err)
		return
	}
	originID, err := parseTransferID(req.TransferID)
	if err != nil {
		h.rejectBadRequest(c, operation, err)
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		h.rejectBadRequest(c, operation, err)
		return
	}

	claim := bridge.Claim{Caller: caller, Proof: proof}
	event, err := call(c.Request.Context(), claim, req.Recipient, amount, req.Nonce, originID)
	metrics.BridgeOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, bridge.ErrAlreadyProcessed) {
			metrics.ReplayRejectionsTotal.Inc()
		}
		metrics.RecordOperation(operation, "error")
		h.logger.WithFields(logrus.Fields{
			"operation":   operation,
			"caller":      caller,
			"recipient":   req.Recipient,
			"transfer_id": originID.Hex(),
			"error":       err.Error(),
		}).Warn("bridge operation rejected")
		respondBridgeError(c, err)
		return
	}

	metrics.RecordOperation(operation, "success")
	metrics.ProcessedTransfersTotal.Inc()
	h.refreshLockedGauge(c.Request.Context())
	c.JSON(http.StatusOK, dto.TransferResponse{
		Success:    true,
		TransferID: event.TransferID.Hex(),
		Nonce:      event.Nonce,
	})
}
