package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Endpoint is one side of the bridge pair. Every operation runs to completion
// under the endpoint mutex; the in-flight marker additionally rejects calls
// re-entering the endpoint from inside an external ledger transfer.
type Endpoint struct {
	cfg Config

	mu       sync.Mutex
	inFlight atomic.Bool

	state    StateStore
	replay   ReplayGuard
	nonces   NonceLedger
	custody  CustodyLedger
	issuance IssuanceLedger
	vault    EmergencyVault
	access   AccessPolicy
	roles    RoleManager
	events   Publisher
	recorder TransferRecorder

	logger *logrus.Logger
	now    func() time.Time
}

// EndpointOption customizes an Endpoint at construction.
type EndpointOption func(*Endpoint)

// WithCustodyLedger attaches the local-asset ledger (source side).
func WithCustodyLedger(l CustodyLedger) EndpointOption {
	return func(e *Endpoint) { e.custody = l }
}

// WithIssuanceLedger attaches the pegged-asset ledger (destination side).
func WithIssuanceLedger(l IssuanceLedger) EndpointOption {
	return func(e *Endpoint) { e.issuance = l }
}

// WithEmergencyVault enables emergencyWithdraw.
func WithEmergencyVault(v EmergencyVault) EndpointOption {
	return func(e *Endpoint) { e.vault = v }
}

// WithRoleManager attaches role administration (role-based policy only).
func WithRoleManager(r RoleManager) EndpointOption {
	return func(e *Endpoint) { e.roles = r }
}

// WithPublisher attaches the relayer-facing event publisher.
func WithPublisher(p Publisher) EndpointOption {
	return func(e *Endpoint) { e.events = p }
}

// WithRecorder attaches the transfer history recorder.
func WithRecorder(r TransferRecorder) EndpointOption {
	return func(e *Endpoint) { e.recorder = r }
}

// WithLogger overrides the default logger.
func WithLogger(l *logrus.Logger) EndpointOption {
	return func(e *Endpoint) { e.logger = l }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) EndpointOption {
	return func(e *Endpoint) { e.now = now }
}

// NewEndpoint builds an endpoint over its collaborators. State, replay guard,
// nonce ledger and access policy are mandatory; ledgers are side-specific.
func NewEndpoint(cfg Config, state StateStore, replay ReplayGuard, nonces NonceLedger, access AccessPolicy, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		cfg:    cfg,
		state:  state,
		replay: replay,
		nonces: nonces,
		access: access,
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the immutable endpoint configuration.
func (e *Endpoint) Config() Config { return e.cfg }

// Lock pulls amount of the local asset from caller into custody and emits a
// Locked intent for the relayer. Source side only.
func (e *Endpoint) Lock(ctx context.Context, caller string, amount *big.Int) (*Event, error) {
	if e.inFlight.Load() {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.IsSource {
		return nil, ErrWrongSide
	}
	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	// Pull the asset first; if the pull fails nothing has been mutated.
	if err := e.guardedCall(func() error {
		return e.custody.TransferFrom(ctx, caller, e.cfg.EndpointAccount, amount)
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerTransfer, err)
	}

	nonce, err := e.nonces.Next(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("advance nonce: %w", err)
	}

	emittedAt := e.now()
	txID := ComputeTransferID(caller, amount, nonce, emittedAt.Unix(), e.cfg.LocalChainID)

	locked, err := e.state.LockedBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("read locked balance: %w", err)
	}
	if err := e.state.SetLockedBalance(ctx, new(big.Int).Add(locked, amount)); err != nil {
		return nil, fmt.Errorf("update locked balance: %w", err)
	}

	event := Event{
		Type:       EventLocked,
		User:       caller,
		Amount:     new(big.Int).Set(amount),
		Nonce:      nonce,
		ChainID:    e.cfg.CounterpartChainID,
		TransferID: txID,
		EmittedAt:  emittedAt,
	}
	e.emit(ctx, event)
	return &event, nil
}

// Unlock releases previously locked funds to user against a transfer
// identifier emitted on the counterpart side. Source side only; requires
// relayer authorization (or a validator signature proof).
func (e *Endpoint) Unlock(ctx context.Context, claim Claim, user string, amount *big.Int, nonce uint64, originID common.Hash) (*Event, error) {
	if e.inFlight.Load() {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.IsSource {
		return nil, ErrWrongSide
	}
	claim.Op = OpUnlock
	claim.Recipient = user
	claim.Amount = amount
	claim.TransferID = originID
	if err := e.access.Authorize(ctx, claim); err != nil {
		return nil, err
	}
	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkNotPaused(ctx); err != nil {
		return nil, err
	}
	if processed, err := e.replay.IsProcessed(ctx, originID); err != nil {
		return nil, fmt.Errorf("replay check: %w", err)
	} else if processed {
		return nil, ErrAlreadyProcessed
	}

	locked, err := e.state.LockedBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("read locked balance: %w", err)
	}
	if locked.Cmp(amount) < 0 {
		return nil, ErrInsufficientCustody
	}

	// Consume the identifier before paying out. If the insert fails nothing
	// has moved and the relayer's retry is safe; if the payout fails after
	// the insert the identifier stays consumed and the operator releases the
	// funds manually from the history row. The inverse order would let a
	// failed insert after a successful payout create value on retry.
	if err := e.replay.MarkProcessed(ctx, originID); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	if err := e.state.SetLockedBalance(ctx, new(big.Int).Sub(locked, amount)); err != nil {
		return nil, fmt.Errorf("update locked balance: %w", err)
	}
	if err := e.guardedCall(func() error {
		return e.custody.Transfer(ctx, user, amount)
	}); err != nil {
		e.logger.WithFields(logrus.Fields{
			"transfer_id": originID.Hex(),
			"user":        user,
			"error":       err.Error(),
		}).Error("unlock: identifier consumed but payout failed, manual release required")
		return nil, fmt.Errorf("%w: %v", ErrLedgerTransfer, err)
	}

	event := Event{
		Type:       EventUnlocked,
		User:       user,
		Amount:     new(big.Int).Set(amount),
		Nonce:      nonce,
		ChainID:    e.cfg.CounterpartChainID,
		TransferID: originID,
		EmittedAt:  e.now(),
	}
	e.emit(ctx, event)
	return &event, nil
}

// Burn destroys amount of the pegged asset from the caller's balance and emits
// a Burned intent. Destination side only.
func (e *Endpoint) Burn(ctx context.Context, caller string, amount *big.Int) (*Event, error) {
	if e.inFlight.Load() {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.IsSource {
		return nil, ErrWrongSide
	}
	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	if err := e.guardedCall(func() error {
		return e.issuance.Burn(ctx, caller, amount)
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerTransfer, err)
	}

	nonce, err := e.nonces.Next(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("advance nonce: %w", err)
	}

	emittedAt := e.now()
	txID := ComputeTransferID(caller, amount, nonce, emittedAt.Unix(), e.cfg.LocalChainID)

	event := Event{
		Type:       EventBurned,
		User:       caller,
		Amount:     new(big.Int).Set(amount),
		Nonce:      nonce,
		ChainID:    e.cfg.CounterpartChainID,
		TransferID: txID,
		EmittedAt:  emittedAt,
	}
	e.emit(ctx, event)
	return &event, nil
}

// Mint credits amount of the pegged asset to user against a transfer
// identifier emitted on the counterpart side. Destination side only; requires
// relayer authorization (or a validator signature proof).
func (e *Endpoint) Mint(ctx context.Context, claim Claim, user string, amount *big.Int, nonce uint64, originID common.Hash) (*Event, error) {
	if e.inFlight.Load() {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.IsSource {
		return nil, ErrWrongSide
	}
	claim.Op = OpMint
	claim.Recipient = user
	claim.Amount = amount
	claim.TransferID = originID
	if err := e.access.Authorize(ctx, claim); err != nil {
		return nil, err
	}
	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkNotPaused(ctx); err != nil {
		return nil, err
	}
	if processed, err := e.replay.IsProcessed(ctx, originID); err != nil {
		return nil, fmt.Errorf("replay check: %w", err)
	} else if processed {
		return nil, ErrAlreadyProcessed
	}

	// Same ordering as Unlock: consume the identifier first so a failed
	// issuance can never be replayed into a double credit.
	if err := e.replay.MarkProcessed(ctx, originID); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	if err := e.guardedCall(func() error {
		return e.issuance.Mint(ctx, user, amount)
	}); err != nil {
		e.logger.WithFields(logrus.Fields{
			"transfer_id": originID.Hex(),
			"user":        user,
			"error":       err.Error(),
		}).Error("mint: identifier consumed but issuance failed, manual mint required")
		return nil, fmt.Errorf("%w: %v", ErrLedgerTransfer, err)
	}

	event := Event{
		Type:       EventMinted,
		User:       user,
		Amount:     new(big.Int).Set(amount),
		Nonce:      nonce,
		ChainID:    e.cfg.CounterpartChainID,
		TransferID: originID,
		EmittedAt:  e.now(),
	}
	e.emit(ctx, event)
	return &event, nil
}

// Pause blocks all value-moving operations. Admin only.
func (e *Endpoint) Pause(ctx context.Context, claim Claim) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim.Op = OpPause
	if err := e.access.Authorize(ctx, claim); err != nil {
		return err
	}
	return e.state.SetPaused(ctx, true)
}

// Unpause re-enables value-moving operations. Admin only.
func (e *Endpoint) Unpause(ctx context.Context, claim Claim) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim.Op = OpUnpause
	if err := e.access.Authorize(ctx, claim); err != nil {
		return err
	}
	return e.state.SetPaused(ctx, false)
}

// EmergencyWithdraw sweeps amount of assetRef from the endpoint account to the
// recipient. Admin only, available while paused, and bypasses locked balance
// accounting: the operator must reconcile afterwards.
func (e *Endpoint) EmergencyWithdraw(ctx context.Context, claim Claim, assetRef, to string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim.Op = OpEmergencyWithdraw
	if err := e.access.Authorize(ctx, claim); err != nil {
		return err
	}
	if err := e.checkAmount(amount); err != nil {
		return err
	}
	if e.vault == nil {
		return fmt.Errorf("%w: no emergency vault configured", ErrLedgerTransfer)
	}
	if err := e.guardedCall(func() error {
		return e.vault.Withdraw(ctx, assetRef, to, amount)
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerTransfer, err)
	}
	e.logger.WithFields(logrus.Fields{
		"asset":  assetRef,
		"to":     to,
		"amount": amount.String(),
	}).Warn("emergency withdraw executed; locked balance accounting bypassed")
	return nil
}

// AddRelayer grants the RELAYER role. Admin only; no-op policy-wise on
// signature-backed endpoints, which have no role table.
func (e *Endpoint) AddRelayer(ctx context.Context, claim Claim, principal string) error {
	return e.manageRole(ctx, claim, principal, true)
}

// RemoveRelayer revokes the RELAYER role with immediate effect.
func (e *Endpoint) RemoveRelayer(ctx context.Context, claim Claim, principal string) error {
	return e.manageRole(ctx, claim, principal, false)
}

func (e *Endpoint) manageRole(ctx context.Context, claim Claim, principal string, grant bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim.Op = OpManageRoles
	if err := e.access.Authorize(ctx, claim); err != nil {
		return err
	}
	if e.roles == nil {
		return fmt.Errorf("%w: endpoint has no role manager", ErrUnauthorized)
	}
	if grant {
		return e.roles.Grant(ctx, RoleRelayer, principal)
	}
	return e.roles.Revoke(ctx, RoleRelayer, principal)
}

// LockedBalance reports the aggregate custodied amount.
func (e *Endpoint) LockedBalance(ctx context.Context) (*big.Int, error) {
	return e.state.LockedBalance(ctx)
}

// Paused reports the pause flag.
func (e *Endpoint) Paused(ctx context.Context) (bool, error) {
	return e.state.Paused(ctx)
}

// UserNonce reports the current nonce for a user.
func (e *Endpoint) UserNonce(ctx context.Context, user string) (uint64, error) {
	return e.nonces.Current(ctx, user)
}

// IsProcessed reports whether a transfer identifier has been consumed.
func (e *Endpoint) IsProcessed(ctx context.Context, id common.Hash) (bool, error) {
	return e.replay.IsProcessed(ctx, id)
}

func (e *Endpoint) checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Endpoint) checkNotPaused(ctx context.Context) error {
	paused, err := e.state.Paused(ctx)
	if err != nil {
		return fmt.Errorf("read pause flag: %w", err)
	}
	if paused {
		return ErrPaused
	}
	return nil
}

// guardedCall runs an external ledger call with the in-flight marker set. The
// marker is cleared on every exit path, and any call arriving while it is set
// is rejected instead of observing half-updated accounting.
func (e *Endpoint) guardedCall(fn func() error) error {
	e.inFlight.Store(true)
	defer e.inFlight.Store(false)
	return fn()
}

// emit publishes and records an event. Failures are logged and counted but do
// not roll back the completed state transition; the transfer history row lets
// an operator re-publish.
func (e *Endpoint) emit(ctx context.Context, event Event) {
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, event); err != nil {
			e.logger.WithFields(logrus.Fields{
				"event":       string(event.Type),
				"transfer_id": event.TransferID.Hex(),
				"error":       err.Error(),
			}).Error("failed to record bridge transfer")
		}
	}
	if e.events != nil {
		if err := e.events.Publish(ctx, event); err != nil {
			e.logger.WithFields(logrus.Fields{
				"event":       string(event.Type),
				"transfer_id": event.TransferID.Hex(),
				"error":       err.Error(),
			}).Error("failed to publish bridge event")
		}
	}
}
