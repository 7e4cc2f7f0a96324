package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpointAccount = "0x000000000000000000000000000000000000b41d"

func newAdminTestRouter(t *testing.T) (*gin.Engine, *ledger.MemoryLedger) {
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
		EndpointAccount:    testEndpointAccount,
	}
	endpoint := bridge.NewEndpoint(cfg, bridge.NewMemoryState(), bridge.NewMemoryReplayGuard(),
		bridge.NewMemoryNonceLedger(), policy,
		bridge.WithRoleManager(policy.Store()),
		bridge.WithCustodyLedger(&ledger.Custody{Ledger: accounts, Asset: cfg.LocalAsset, EndpointAccount: cfg.EndpointAccount}),
		bridge.WithEmergencyVault(&ledger.Vault{Ledger: accounts, EndpointAccount: cfg.EndpointAccount}),
	)

	h := NewAdminHandler(endpoint, nil, testDeployer, logrus.New())
	r := gin.New()
	r.POST("/api/admin/bridge/emergency-withdraw", h.EmergencyWithdrawHandler)
	return r, accounts
}

func TestEmergencyWithdrawDefaultsToLocalAsset(t *testing.T) {
	r, accounts := newAdminTestRouter(t)
	ctx := context.Background()
	require.NoError(t, accounts.Mint(ctx, "USDT", testEndpointAccount, big.NewInt(100)))

	w := postJSON(r, "/api/admin/bridge/emergency-withdraw", "", map[string]string{
		"recipient": testUser,
		"amount":    "100",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Asset string `json:"asset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "USDT", resp.Asset)

	balance, err := accounts.BalanceOf(ctx, "USDT", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Int64())
}

func TestEmergencyWithdrawSweepsRequestedAsset(t *testing.T) {
	r, accounts := newAdminTestRouter(t)
	ctx := context.Background()

	// A foreign asset stranded on the endpoint account is recoverable too.
	require.NoError(t, accounts.Mint(ctx, "wUSDT", testEndpointAccount, big.NewInt(40)))

	w := postJSON(r, "/api/admin/bridge/emergency-withdraw", "", map[string]string{
		"recipient": testUser,
		"amount":    "40",
		"asset":     "wUSDT",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	balance, err := accounts.BalanceOf(ctx, "wUSDT", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Int64())
}
