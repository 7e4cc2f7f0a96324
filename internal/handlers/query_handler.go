package handlers

import (
	"net/http"
	"strconv"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/repository"

	"github.com/gin-gonic/gin"
)

// QueryHandler serves the read-only bridge surface: endpoint status, nonces,
// processed transfer identifiers and transfer history.
type QueryHandler struct {
	endpoint  *bridge.Endpoint
	transfers *repository.TransferRepository
}

// NewQueryHandler creates the query handler. transfers may be nil when the
// endpoint runs on in-memory stores; history queries then return 503.
func NewQueryHandler(endpoint *bridge.Endpoint, transfers *repository.TransferRepository) *QueryHandler {
	return &QueryHandler{endpoint: endpoint, transfers: transfers}
}

// StatusHandler returns the endpoint parameterization and live state.
// GET /api/bridge/status
func (h *QueryHandler) StatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	cfg := h.endpoint.Config()

	paused, err := h.endpoint.Paused(ctx)
	if err != nil {
		respondBridgeError(c, err)
		return
	}

	resp := gin.H{
		"success":               true,
		"side":                  "destination",
		"local_asset":           cfg.LocalAsset,
		"counterpart_asset_ref": cfg.CounterpartAssetRef,
		"local_chain_id":        cfg.LocalChainID,
		"counterpart_chain_id":  cfg.CounterpartChainID,
		"paused":                paused,
	}
	if cfg.IsSource {
		resp["side"] = "source"
		locked, err := h.endpoint.LockedBalance(ctx)
		if err != nil {
			respondBridgeError(c, err)
			return
		}
		resp["locked_balance"] = locked.String()
	}
	c.JSON(http.StatusOK, resp)
}

// NonceHandler returns the current transfer counter for an address.
// GET /api/bridge/nonce/:address
func (h *QueryHandler) NonceHandler(c *gin.Context) {
	address := c.Param("address")
	nonce, err := h.endpoint.UserNonce(c.Request.Context(), address)
	if err != nil {
		respondBridgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": address,
		"nonce":   nonce,
	})
}

// ProcessedHandler reports whether a transfer identifier has been consumed.
// GET /api/bridge/processed/:id
func (h *QueryHandler) ProcessedHandler(c *gin.Context) {
	id, err := parseTransferID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	processed, err := h.endpoint.IsProcessed(c.Request.Context(), id)
	if err != nil {
		respondBridgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transfer_id": id.Hex(),
		"processed":   processed,
	})
}

// TransfersHandler lists the transfer history, newest first.
// GET /api/bridge/transfers?page=1&page_size=20
func (h *QueryHandler) TransfersHandler(c *gin.Context) {
	if h.transfers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "transfer history requires database mode",
			"code":    "HISTORY_UNAVAILABLE",
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, total, err := h.transfers.List(c.Request.Context(), page, pageSize)
	if err != nil {
		respondBridgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"transfers": records,
	})
}

// TransferByIDHandler returns the history rows for one transfer identifier.
// GET /api/bridge/transfers/:id
func (h *QueryHandler) TransferByIDHandler(c *gin.Context) {
	if h.transfers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "transfer history requires database mode",
			"code":    "HISTORY_UNAVAILABLE",
		})
		return
	}

	id, err := parseTransferID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "code": "BAD_REQUEST"})
		return
	}
	records, err := h.transfers.FindByTxID(c.Request.Context(), id.Hex())
	if err != nil {
		respondBridgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"transfers": records,
	})
}
