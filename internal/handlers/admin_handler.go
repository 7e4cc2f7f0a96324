package handlers

import (
	"net/http"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes the privileged endpoint operations. Routes are behind
// the admin JWT middleware; at the bridge layer the authenticated operator
// acts as the configured admin principal.
type AdminHandler struct {
	endpoint *bridge.Endpoint
	// sigPolicy is non-nil only in signature access mode.
	sigPolicy *bridge.SignaturePolicy
	// adminPrincipal is the principal admin claims are issued for: the
	// deployer in roles mode, the configured admin in signature mode.
	adminPrincipal string
	logger         *logrus.Logger
}

func NewAdminHandler(endpoint *bridge.Endpoint, sigPolicy *bridge.SignaturePolicy, adminPrincipal string, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		endpoint:       endpoint,
		sigPolicy:      sigPolicy,
		adminPrincipal: adminPrincipal,
		logger:         logger,
	}
}

func (h *AdminHandler) claim() bridge.Claim {
	return bridge.Claim{Caller: h.adminPrincipal}
}

// PauseHandler halts lock/unlock/burn/mint.
// POST /api/admin/bridge/pause
func (h *AdminHandler) PauseHandler(c *gin.Context) {
	if err := h.endpoint.Pause(c.Request.Context(), h.claim()); err != nil {
		metrics.RecordOperation("pause", "error")
		respondBridgeError(c, err)
		return
	}
	metrics.RecordOperation("pause", "success")
	metrics.PausedStatus.Set(1)
	h.logger.WithField("admin", c.GetString("admin_username")).Warn("bridge paused")
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": true})
}

// UnpauseHandler resumes normal operation.
// POST /api/admin/bridge/unpause
func (h *AdminHandler) UnpauseHandler(c *gin.Context) {
	if err := h.endpoint.Unpause(c.Request.Context(), h.claim()); err != nil {
		metrics.RecordOperation("unpause", "error")
		respondBridgeError(c, err)
		return
	}
	metrics.RecordOperation("unpause", "success")
	metrics.PausedStatus.Set(0)
	h.logger.WithField("admin", c.GetString("admin_username")).Info("bridge unpaused")
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": false})
}

// AddRelayerHandler grants the relayer role to a principal.
// POST /api/admin/bridge/relayers
func (h *AdminHandler) AddRelayerHandler(c *gin.Context) {
	var req dto.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	if err := h.endpoint.AddRelayer(c.Request.Context(), h.claim(), req.Principal); err != nil {
		respondBridgeError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"admin":     c.GetString("admin_username"),
		"principal": req.Principal,
	}).Info("relayer role granted")
	c.JSON(http.StatusOK, gin.H{"success": true, "principal": req.Principal})
}

// RemoveRelayerHandler revokes the relayer role from a principal.
// DELETE /api/admin/bridge/relayers
func (h *AdminHandler) RemoveRelayerHandler(c *gin.Context) {
	var req dto.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	if err := h.endpoint.RemoveRelayer(c.Request.Context(), h.claim(), req.Principal); err != nil {
		respondBridgeError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"admin":     c.GetString("admin_username"),
		"principal": req.Principal,
	}).Info("relayer role revoked")
	c.JSON(http.StatusOK, gin.H{"success": true, "principal": req.Principal})
}

// EmergencyWithdrawHandler drains custodied funds to a recovery account. Works
// while paused; bypasses locked balance accounting.
// POST /api/admin/bridge/emergency-withdraw
func (h *AdminHandler) EmergencyWithdrawHandler(c *gin.Context) {
	var req dto.EmergencyWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}

	asset := req.Asset
	if asset == "" {
		asset = h.endpoint.Config().LocalAsset
	}
	if err := h.endpoint.EmergencyWithdraw(c.Request.Context(), h.claim(), asset, req.Recipient, amount); err != nil {
		metrics.RecordOperation("emergency_withdraw", "error")
		respondBridgeError(c, err)
		return
	}
	metrics.RecordOperation("emergency_withdraw", "success")
	h.logger.WithFields(logrus.Fields{
		"admin":     c.GetString("admin_username"),
		"asset":     asset,
		"recipient": req.Recipient,
		"amount":    amount.String(),
	}).Warn("emergency withdrawal executed")
	c.JSON(http.StatusOK, gin.H{"success": true, "asset": asset, "recipient": req.Recipient, "amount": amount.String()})
}

// RotateValidatorHandler replaces the release-proof signer. Signature access
// mode only.
// POST /api/admin/bridge/rotate-validator
func (h *AdminHandler) RotateValidatorHandler(c *gin.Context) {
	if h.sigPolicy == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "validator rotation requires signature access mode",
			"code":    "WRONG_ACCESS_MODE",
		})
		return
	}

	var req dto.RotateValidatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	if !common.IsHexAddress(req.Validator) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validator must be a hex address", "code": "BAD_REQUEST"})
		return
	}

	next := common.HexToAddress(req.Validator)
	if err := h.sigPolicy.Rotate(c.Request.Context(), h.claim(), next); err != nil {
		respondBridgeError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"admin":     c.GetString("admin_username"),
		"validator": next.Hex(),
	}).Warn("validator key rotated")
	c.JSON(http.StatusOK, gin.H{"success": true, "validator": next.Hex()})
}
