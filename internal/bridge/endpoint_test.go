package bridge_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deployer        = "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
	alice           = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
	bob             = "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"
	endpointAccount = "0x000000000000000000000000000000000000b41d"
)

type fixture struct {
	endpoint *bridge.Endpoint
	accounts *ledger.MemoryLedger
	roles    bridge.RoleManager
	state    *bridge.MemoryState
	replay   *bridge.MemoryReplayGuard
}

func sourceConfig() bridge.Config {
	return bridge.Config{
		LocalAsset:          "USDT",
		CounterpartAssetRef: "wUSDT",
		LocalChainID:        56,
		CounterpartChainID:  714,
		IsSource:            true,
		EndpointAccount:     endpointAccount,
	}
}

func destConfig() bridge.Config {
	cfg := sourceConfig()
	cfg.IsSource = false
	cfg.LocalAsset = "wUSDT"
	cfg.CounterpartAssetRef = "USDT"
	cfg.LocalChainID = 714
	cfg.CounterpartChainID = 56
	return cfg
}

func newFixture(t *testing.T, cfg bridge.Config) *fixture {
	t.Helper()
	ctx := context.Background()

	roles := bridge.NewMemoryRoleStore()
	policy, err := bridge.NewRolePolicy(ctx, roles, deployer)
	require.NoError(t, err)

	accounts := ledger.NewMemoryLedger()
	state := bridge.NewMemoryState()
	replay := bridge.NewMemoryReplayGuard()

	opts := []bridge.EndpointOption{
		bridge.WithRoleManager(policy.Store()),
		bridge.WithEmergencyVault(&ledger.Vault{Ledger: accounts, EndpointAccount: cfg.EndpointAccount}),
	}
	if cfg.IsSource {
		opts = append(opts, bridge.WithCustodyLedger(&ledger.Custody{
			Ledger:          accounts,
			Asset:           cfg.LocalAsset,
			EndpointAccount: cfg.EndpointAccount,
		}))
	} else {
		opts = append(opts, bridge.WithIssuanceLedger(&ledger.Issuance{
			Ledger: accounts,
			Asset:  cfg.LocalAsset,
		}))
	}

	endpoint := bridge.NewEndpoint(cfg, state, replay, bridge.NewMemoryNonceLedger(), policy, opts...)
	return &fixture{endpoint: endpoint, accounts: accounts, roles: roles, state: state, replay: replay}
}

func fund(t *testing.T, f *fixture, asset, account string, amount int64) {
	t.Helper()
	require.NoError(t, f.accounts.Mint(context.Background(), asset, account, big.NewInt(amount)))
}

func balance(t *testing.T, f *fixture, asset, account string) *big.Int {
	t.Helper()
	b, err := f.accounts.BalanceOf(context.Background(), asset, account)
	require.NoError(t, err)
	return b
}

func adminClaim() bridge.Claim {
	return bridge.Claim{Caller: deployer}
}

func TestLockMovesFundsAndEmitsIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	event, err := f.endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, bridge.EventLocked, event.Type)
	assert.Equal(t, alice, event.User)
	assert.Equal(t, uint64(1), event.Nonce)
	assert.Equal(t, uint64(714), event.ChainID)
	assert.NotEqual(t, common.Hash{}, event.TransferID)

	assert.Equal(t, int64(900), balance(t, f, "USDT", alice).Int64())
	assert.Equal(t, int64(100), balance(t, f, "USDT", endpointAccount).Int64())

	locked, err := f.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), locked.Int64())
}

func TestLockRejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(0))
	assert.ErrorIs(t, err, bridge.ErrInvalidAmount)

	_, err = f.endpoint.Lock(ctx, alice, big.NewInt(-5))
	assert.ErrorIs(t, err, bridge.ErrInvalidAmount)

	_, err = f.endpoint.Lock(ctx, alice, nil)
	assert.ErrorIs(t, err, bridge.ErrInvalidAmount)

	locked, err := f.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, locked.Sign())
}

func TestLockOnDestinationSideFails(t *testing.T) {
	f := newFixture(t, destConfig())
	_, err := f.endpoint.Lock(context.Background(), alice, big.NewInt(10))
	assert.ErrorIs(t, err, bridge.ErrWrongSide)
}

func TestBurnOnSourceSideFails(t *testing.T) {
	f := newFixture(t, sourceConfig())
	_, err := f.endpoint.Burn(context.Background(), alice, big.NewInt(10))
	assert.ErrorIs(t, err, bridge.ErrWrongSide)
}

func TestLockFailsWhenCallerUnderfunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 50)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(100))
	assert.ErrorIs(t, err, bridge.ErrLedgerTransfer)

	// Nothing mutated on failure.
	nonce, err := f.endpoint.UserNonce(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, nonce)
	locked, err := f.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, locked.Sign())
}

func TestUnlockReleasesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(300))
	require.NoError(t, err)

	// Identifier derived on the counterpart side from a Burned intent.
	originID := bridge.ComputeTransferID(bob, big.NewInt(300), 1, time.Now().Unix(), 714)

	claim := bridge.Claim{Caller: deployer}
	event, err := f.endpoint.Unlock(ctx, claim, bob, big.NewInt(300), 1, originID)
	require.NoError(t, err)
	assert.Equal(t, bridge.EventUnlocked, event.Type)
	assert.Equal(t, originID, event.TransferID)

	assert.Equal(t, int64(300), balance(t, f, "USDT", bob).Int64())
	locked, err := f.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, locked.Sign())

	processed, err := f.endpoint.IsProcessed(ctx, originID)
	require.NoError(t, err)
	assert.True(t, processed)

	// Replay of the same identifier changes nothing.
	_, err = f.endpoint.Unlock(ctx, claim, bob, big.NewInt(300), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrAlreadyProcessed)
	assert.Equal(t, int64(300), balance(t, f, "USDT", bob).Int64())
}

func TestUnlockExceedingLockedBalanceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)

	originID := bridge.ComputeTransferID(bob, big.NewInt(200), 1, time.Now().Unix(), 714)
	_, err = f.endpoint.Unlock(ctx, bridge.Claim{Caller: deployer}, bob, big.NewInt(200), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrInsufficientCustody)

	// The identifier stays unconsumed so a corrected call can succeed later.
	processed, err := f.endpoint.IsProcessed(ctx, originID)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestUnlockRequiresRelayerRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)

	originID := bridge.ComputeTransferID(bob, big.NewInt(100), 1, time.Now().Unix(), 714)
	_, err = f.endpoint.Unlock(ctx, bridge.Claim{Caller: bob}, bob, big.NewInt(100), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)
}

func TestMintCreditsRecipientExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, destConfig())

	originID := bridge.ComputeTransferID(alice, big.NewInt(100), 1, time.Now().Unix(), 56)
	claim := bridge.Claim{Caller: deployer}

	event, err := f.endpoint.Mint(ctx, claim, alice, big.NewInt(100), 1, originID)
	require.NoError(t, err)
	assert.Equal(t, bridge.EventMinted, event.Type)
	assert.Equal(t, int64(100), balance(t, f, "wUSDT", alice).Int64())

	_, err = f.endpoint.Mint(ctx, claim, alice, big.NewInt(100), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrAlreadyProcessed)
	assert.Equal(t, int64(100), balance(t, f, "wUSDT", alice).Int64())
}

func TestBurnDebitsCallerAndAdvancesNonce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, destConfig())
	fund(t, f, "wUSDT", alice, 500)

	event, err := f.endpoint.Burn(ctx, alice, big.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, bridge.EventBurned, event.Type)
	assert.Equal(t, uint64(1), event.Nonce)
	assert.Equal(t, int64(300), balance(t, f, "wUSDT", alice).Int64())

	nonce, err := f.endpoint.UserNonce(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestPauseGatesValueMovingOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)

	// Only admins may pause.
	err = f.endpoint.Pause(ctx, bridge.Claim{Caller: alice})
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)

	require.NoError(t, f.endpoint.Pause(ctx, adminClaim()))

	_, err = f.endpoint.Lock(ctx, alice, big.NewInt(100))
	assert.ErrorIs(t, err, bridge.ErrPaused)

	originID := bridge.ComputeTransferID(bob, big.NewInt(50), 1, time.Now().Unix(), 714)
	_, err = f.endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(50), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrPaused)

	// Emergency withdraw works while paused and bypasses locked accounting.
	require.NoError(t, f.endpoint.EmergencyWithdraw(ctx, adminClaim(), "USDT", deployer, big.NewInt(100)))
	assert.Equal(t, int64(100), balance(t, f, "USDT", deployer).Int64())
	locked, err := f.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), locked.Int64())

	require.NoError(t, f.endpoint.Unpause(ctx, adminClaim()))
	_, err = f.endpoint.Lock(ctx, alice, big.NewInt(100))
	assert.NoError(t, err)
}

func TestEmergencyWithdrawRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", endpointAccount, 100)

	err := f.endpoint.EmergencyWithdraw(ctx, bridge.Claim{Caller: alice}, "USDT", alice, big.NewInt(100))
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)
}

func TestRoleManagementTakesImmediateEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, destConfig())

	// Non-admin may not manage roles.
	err := f.endpoint.AddRelayer(ctx, bridge.Claim{Caller: alice}, bob)
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)

	require.NoError(t, f.endpoint.AddRelayer(ctx, adminClaim(), bob))

	originID := bridge.ComputeTransferID(alice, big.NewInt(10), 1, time.Now().Unix(), 56)
	_, err = f.endpoint.Mint(ctx, bridge.Claim{Caller: bob}, alice, big.NewInt(10), 1, originID)
	require.NoError(t, err)

	require.NoError(t, f.endpoint.RemoveRelayer(ctx, adminClaim(), bob))

	otherID := bridge.ComputeTransferID(alice, big.NewInt(10), 2, time.Now().Unix(), 56)
	_, err = f.endpoint.Mint(ctx, bridge.Claim{Caller: bob}, alice, big.NewInt(10), 2, otherID)
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)
}

func TestNoncesAreMonotonicPerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)
	fund(t, f, "USDT", bob, 1000)

	seen := make(map[common.Hash]bool)
	for i := 1; i <= 3; i++ {
		event, err := f.endpoint.Lock(ctx, alice, big.NewInt(10))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), event.Nonce)
		assert.False(t, seen[event.TransferID], "transfer identifiers must be unique")
		seen[event.TransferID] = true
	}

	// Independent counter per user.
	event, err := f.endpoint.Lock(ctx, bob, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), event.Nonce)
}

// reentrantCustody calls back into the endpoint from inside a ledger transfer,
// mimicking a hostile token hook.
type reentrantCustody struct {
	endpoint *bridge.Endpoint
	inner    bridge.CustodyLedger
	attempt  error
}

func (c *reentrantCustody) TransferFrom(ctx context.Context, from, to string, amount *big.Int) error {
	_, c.attempt = c.endpoint.Lock(ctx, from, amount)
	return c.inner.TransferFrom(ctx, from, to, amount)
}

func (c *reentrantCustody) Transfer(ctx context.Context, to string, amount *big.Int) error {
	return c.inner.Transfer(ctx, to, amount)
}

func TestReentrantCallIsRejected(t *testing.T) {
	ctx := context.Background()

	roles := bridge.NewMemoryRoleStore()
	policy, err := bridge.NewRolePolicy(ctx, roles, deployer)
	require.NoError(t, err)

	accounts := ledger.NewMemoryLedger()
	require.NoError(t, accounts.Mint(ctx, "USDT", alice, big.NewInt(1000)))

	custody := &reentrantCustody{
		inner: &ledger.Custody{Ledger: accounts, Asset: "USDT", EndpointAccount: endpointAccount},
	}
	endpoint := bridge.NewEndpoint(sourceConfig(), bridge.NewMemoryState(), bridge.NewMemoryReplayGuard(),
		bridge.NewMemoryNonceLedger(), policy, bridge.WithCustodyLedger(custody))
	custody.endpoint = endpoint

	_, err = endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)
	assert.ErrorIs(t, custody.attempt, bridge.ErrReentrantCall)

	// Exactly one lock applied.
	locked, err := endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), locked.Int64())
}

// TestFullTransferRoundTrip drives the two-endpoint scenario end to end:
// lock on the source, mint on the destination, replay rejection, burn on the
// destination, unlock on the source.
func TestFullTransferRoundTrip(t *testing.T) {
	ctx := context.Background()

	source := newFixture(t, sourceConfig())
	dest := newFixture(t, destConfig())
	fund(t, source, "USDT", alice, 1000)

	// 1. Alice locks 100 on the source side.
	lockEvent, err := source.endpoint.Lock(ctx, alice, big.NewInt(100))
	require.NoError(t, err)
	locked, err := source.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), locked.Int64())

	// 2. The relayer delivers the intent to the destination; 100 wUSDT minted.
	relayer := adminClaim()
	_, err = dest.endpoint.Mint(ctx, relayer, alice, lockEvent.Amount, lockEvent.Nonce, lockEvent.TransferID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance(t, dest, "wUSDT", alice).Int64())

	// 3. A duplicate delivery is rejected with no state change.
	_, err = dest.endpoint.Mint(ctx, relayer, alice, lockEvent.Amount, lockEvent.Nonce, lockEvent.TransferID)
	assert.ErrorIs(t, err, bridge.ErrAlreadyProcessed)
	assert.Equal(t, int64(100), balance(t, dest, "wUSDT", alice).Int64())

	// 4. Alice burns 100 wUSDT to move back.
	burnEvent, err := dest.endpoint.Burn(ctx, alice, big.NewInt(100))
	require.NoError(t, err)
	assert.Zero(t, balance(t, dest, "wUSDT", alice).Sign())

	// 5. The relayer delivers the burn intent; the source unlocks 100 USDT.
	_, err = source.endpoint.Unlock(ctx, relayer, alice, burnEvent.Amount, burnEvent.Nonce, burnEvent.TransferID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance(t, source, "USDT", alice).Int64())
	locked, err = source.endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, locked.Sign())
}

// flakyReplayGuard models a transient store outage: the first MarkProcessed
// calls fail, later ones go through.
type flakyReplayGuard struct {
	*bridge.MemoryReplayGuard
	failures int
}

func (g *flakyReplayGuard) MarkProcessed(ctx context.Context, id common.Hash) error {
	if g.failures > 0 {
		g.failures--
		return errors.New("store unavailable")
	}
	return g.MemoryReplayGuard.MarkProcessed(ctx, id)
}

func TestUnlockPaysNothingWhenIdentifierCannotBeConsumed(t *testing.T) {
	ctx := context.Background()

	roles := bridge.NewMemoryRoleStore()
	policy, err := bridge.NewRolePolicy(ctx, roles, deployer)
	require.NoError(t, err)

	accounts := ledger.NewMemoryLedger()
	guard := &flakyReplayGuard{MemoryReplayGuard: bridge.NewMemoryReplayGuard(), failures: 1}
	endpoint := bridge.NewEndpoint(sourceConfig(), bridge.NewMemoryState(), guard,
		bridge.NewMemoryNonceLedger(), policy,
		bridge.WithCustodyLedger(&ledger.Custody{Ledger: accounts, Asset: "USDT", EndpointAccount: endpointAccount}),
	)

	require.NoError(t, accounts.Mint(ctx, "USDT", alice, big.NewInt(1000)))
	_, err = endpoint.Lock(ctx, alice, big.NewInt(500))
	require.NoError(t, err)

	originID := bridge.ComputeTransferID(bob, big.NewInt(100), 1, time.Now().Unix(), 714)

	// The store outage aborts the unlock before any value moves.
	_, err = endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(100), 1, originID)
	require.Error(t, err)
	balance, err := accounts.BalanceOf(ctx, "USDT", bob)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign(), "no payout may happen when the identifier is not consumed")
	locked, err := endpoint.LockedBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), locked.Int64())

	// The retry applies the transfer exactly once.
	_, err = endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(100), 1, originID)
	require.NoError(t, err)
	balance, err = accounts.BalanceOf(ctx, "USDT", bob)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Int64(), "identifier must pay out exactly once across retries")
}

// failingCustody rejects the next payout, modeling an external ledger outage
// after the identifier has been consumed.
type failingCustody struct {
	inner    bridge.CustodyLedger
	failNext bool
}

func (c *failingCustody) TransferFrom(ctx context.Context, from, to string, amount *big.Int) error {
	return c.inner.TransferFrom(ctx, from, to, amount)
}

func (c *failingCustody) Transfer(ctx context.Context, to string, amount *big.Int) error {
	if c.failNext {
		c.failNext = false
		return errors.New("ledger offline")
	}
	return c.inner.Transfer(ctx, to, amount)
}

func TestUnlockPayoutFailureLeavesIdentifierConsumed(t *testing.T) {
	ctx := context.Background()

	roles := bridge.NewMemoryRoleStore()
	policy, err := bridge.NewRolePolicy(ctx, roles, deployer)
	require.NoError(t, err)

	accounts := ledger.NewMemoryLedger()
	custody := &failingCustody{
		inner:    &ledger.Custody{Ledger: accounts, Asset: "USDT", EndpointAccount: endpointAccount},
		failNext: true,
	}
	endpoint := bridge.NewEndpoint(sourceConfig(), bridge.NewMemoryState(), bridge.NewMemoryReplayGuard(),
		bridge.NewMemoryNonceLedger(), policy, bridge.WithCustodyLedger(custody))

	require.NoError(t, accounts.Mint(ctx, "USDT", alice, big.NewInt(1000)))
	_, err = endpoint.Lock(ctx, alice, big.NewInt(500))
	require.NoError(t, err)

	originID := bridge.ComputeTransferID(bob, big.NewInt(100), 1, time.Now().Unix(), 714)
	_, err = endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(100), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrLedgerTransfer)

	// The identifier is burned: a retry cannot turn the failed payout into a
	// double payment, the operator releases the funds manually instead.
	processed, err := endpoint.IsProcessed(ctx, originID)
	require.NoError(t, err)
	assert.True(t, processed)
	_, err = endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(100), 1, originID)
	assert.ErrorIs(t, err, bridge.ErrAlreadyProcessed)
	balance, err := accounts.BalanceOf(ctx, "USDT", bob)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
}

func TestConcurrentUnlocksOfSameIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sourceConfig())
	fund(t, f, "USDT", alice, 1000)

	_, err := f.endpoint.Lock(ctx, alice, big.NewInt(500))
	require.NoError(t, err)

	originID := bridge.ComputeTransferID(bob, big.NewInt(100), 1, time.Now().Unix(), 714)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.endpoint.Unlock(ctx, adminClaim(), bob, big.NewInt(100), 1, originID)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, bridge.ErrAlreadyProcessed):
			// lost the race after the winner committed
		case errors.Is(err, bridge.ErrReentrantCall):
			// arrived while the winner's ledger call was in flight
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one unlock may win")
	assert.Equal(t, int64(100), balance(t, f, "USDT", bob).Int64())
}
