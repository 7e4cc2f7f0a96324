package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeployer = "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
	testUser     = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

func newTestRouter(t *testing.T, isSource bool) (*gin.Engine, *bridge.Endpoint, *ledger.MemoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	roles := bridge.NewMemoryRoleStore()
	policy, err := bridge.NewRolePolicy(ctx, roles, testDeployer)
	require.NoError(t, err)

	accounts := ledger.NewMemoryLedger()
	cfg := bridge.Config{
		LocalAsset:         "USDT",
		LocalChainID:       56,
		CounterpartChainID: 714,
		IsSource:           true,
		EndpointAccount:    "0x000000000000000000000000000000000000b41d",
	}
	opts := []bridge.EndpointOption{bridge.WithRoleManager(policy.Store())}
	if isSource {
		opts = append(opts, bridge.WithCustodyLedger(&ledger.Custody{
			Ledger: accounts, Asset: cfg.LocalAsset, EndpointAccount: cfg.EndpointAccount,
		}))
	} else {
		cfg.IsSource = false
		cfg.LocalAsset = "wUSDT"
		cfg.LocalChainID = 714
		cfg.CounterpartChainID = 56
		opts = append(opts, bridge.WithIssuanceLedger(&ledger.Issuance{
			Ledger: accounts, Asset: cfg.LocalAsset,
		}))
	}
	endpoint := bridge.NewEndpoint(cfg, bridge.NewMemoryState(), bridge.NewMemoryReplayGuard(),
		bridge.NewMemoryNonceLedger(), policy, opts...)

	logger := logrus.New()
	h := NewBridgeHandler(endpoint, logger)
	q := NewQueryHandler(endpoint, nil)

	r := gin.New()
	api := r.Group("/api/bridge")
	api.GET("/status", q.StatusHandler)
	api.GET("/nonce/:address", q.NonceHandler)
	authed := api.Group("")
	authed.Use(testAuth())
	authed.POST("/lock", h.LockHandler)
	authed.POST("/burn", h.BurnHandler)
	authed.POST("/unlock", h.UnlockHandler)
	authed.POST("/mint", h.MintHandler)
	return r, endpoint, accounts
}

// testAuth mirrors the user-auth middleware without importing it (the
// middleware package depends on this one).
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= len("Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": "MISSING_AUTH_HEADER"})
			c.Abort()
			return
		}
		claims, err := ValidateJWTToken(header[len("Bearer "):])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": "INVALID_TOKEN"})
			c.Abort()
			return
		}
		c.Set("user_address", claims.UserAddress)
		c.Next()
	}
}

func authToken(t *testing.T, address string) string {
	t.Helper()
	token, err := generateUserJWTToken(address)
	require.NoError(t, err)
	return token
}

func postJSON(r *gin.Engine, path, token string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLockEndpoint(t *testing.T) {
	r, _, accounts := newTestRouter(t, true)
	require.NoError(t, accounts.Mint(context.Background(), "USDT", testUser, big.NewInt(1000)))

	w := postJSON(r, "/api/bridge/lock", authToken(t, testUser), map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success    bool   `json:"success"`
		TransferID string `json:"transfer_id"`
		Nonce      uint64 `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(1), resp.Nonce)
	assert.Len(t, resp.TransferID, 66)
}

func TestBurnEndpoint(t *testing.T) {
	r, _, accounts := newTestRouter(t, false)
	require.NoError(t, accounts.Mint(context.Background(), "wUSDT", testUser, big.NewInt(100)))

	w := postJSON(r, "/api/bridge/burn", authToken(t, testUser), map[string]string{"amount": "60"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool   `json:"success"`
		Nonce   uint64 `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(1), resp.Nonce)

	balance, err := accounts.BalanceOf(context.Background(), "wUSDT", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Int64())

	// Missing amount is rejected at binding.
	w = postJSON(r, "/api/bridge/burn", authToken(t, testUser), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockEndpointRequiresAuth(t *testing.T) {
	r, _, _ := newTestRouter(t, true)
	w := postJSON(r, "/api/bridge/lock", "", map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLockEndpointRejectsBadAmount(t *testing.T) {
	r, _, _ := newTestRouter(t, true)
	w := postJSON(r, "/api/bridge/lock", authToken(t, testUser), map[string]string{"amount": "not-a-number"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnlockEndpointMapsBridgeErrors(t *testing.T) {
	r, _, accounts := newTestRouter(t, true)
	require.NoError(t, accounts.Mint(context.Background(), "USDT", testUser, big.NewInt(1000)))

	// Lock so custody has funds.
	w := postJSON(r, "/api/bridge/lock", authToken(t, testUser), map[string]string{"amount": "500"})
	require.Equal(t, http.StatusOK, w.Code)

	originID := bridge.ComputeTransferID(testUser, big.NewInt(100), 7, 1700000000, 714)
	body := map[string]any{
		"recipient":   testUser,
		"amount":      "100",
		"nonce":       7,
		"transfer_id": originID.Hex(),
	}

	// A caller without the relayer role is rejected.
	w = postJSON(r, "/api/bridge/unlock", authToken(t, testUser), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)

	// The deployer (seeded relayer) succeeds, echoing the origin nonce.
	w = postJSON(r, "/api/bridge/unlock", authToken(t, testDeployer), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var okResp struct {
		Nonce uint64 `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &okResp))
	assert.Equal(t, uint64(7), okResp.Nonce)

	// A replay of the same identifier hits replay protection.
	w = postJSON(r, "/api/bridge/unlock", authToken(t, testDeployer), body)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "ALREADY_PROCESSED", errResp.Code)
}

func TestStatusAndNonceEndpoints(t *testing.T) {
	r, _, accounts := newTestRouter(t, true)
	require.NoError(t, accounts.Mint(context.Background(), "USDT", testUser, big.NewInt(1000)))

	w := postJSON(r, "/api/bridge/lock", authToken(t, testUser), map[string]string{"amount": "250"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/bridge/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Side          string `json:"side"`
		LockedBalance string `json:"locked_balance"`
		Paused        bool   `json:"paused"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "source", status.Side)
	assert.Equal(t, "250", status.LockedBalance)
	assert.False(t, status.Paused)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/bridge/nonce/%s", testUser), nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var nonceResp struct {
		Nonce uint64 `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nonceResp))
	assert.Equal(t, uint64(1), nonceResp.Nonce)
}
