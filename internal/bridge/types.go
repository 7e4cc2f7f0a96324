// Package bridge implements the cross-ledger bridge endpoint state machine:
// lock/unlock on the custody side, mint/burn on the issuance side, replay
// protection over transfer identifiers, and pluggable access control.
package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Operation identifies a bridge operation for authorization checks.
type Operation string

const (
	OpLock              Operation = "lock"
	OpUnlock            Operation = "unlock"
	OpBurn              Operation = "burn"
	OpMint              Operation = "mint"
	OpPause             Operation = "pause"
	OpUnpause           Operation = "unpause"
	OpManageRoles       Operation = "manage_roles"
	OpEmergencyWithdraw Operation = "emergency_withdraw"
	OpRotateValidator   Operation = "rotate_validator"
)

// Roles understood by the role-based access policy.
const (
	RoleAdmin   = "ADMIN"
	RoleRelayer = "RELAYER"
)

// Config is the immutable endpoint configuration, fixed at construction.
type Config struct {
	// LocalAsset is the asset this endpoint manages on its own ledger.
	LocalAsset string
	// CounterpartAssetRef identifies the paired asset on the other side.
	CounterpartAssetRef string
	LocalChainID        uint64
	CounterpartChainID  uint64
	// IsSource marks the custody side (lock/unlock). The other side is the
	// issuance side (mint/burn).
	IsSource bool
	// EndpointAccount is the ledger account that holds custodied funds.
	EndpointAccount string
}

// EventType names the transfer-intent events consumed by the relayer.
type EventType string

const (
	EventLocked   EventType = "Locked"
	EventUnlocked EventType = "Unlocked"
	EventBurned   EventType = "Burned"
	EventMinted   EventType = "Minted"
)

// Event is a transfer-intent event. For Locked/Burned the TransferID is the
// newly derived identifier and ChainID is the counterpart chain the relayer
// must deliver to. For Unlocked/Minted the TransferID is the origin identifier
// being consumed.
type Event struct {
	Type       EventType   `json:"type"`
	User       string      `json:"user"`
	Amount     *big.Int    `json:"amount"`
	Nonce      uint64      `json:"nonce"`
	ChainID    uint64      `json:"chain_id"`
	TransferID common.Hash `json:"transfer_id"`
	EmittedAt  time.Time   `json:"emitted_at"`
}

// ReplayGuard is the durable set of processed transfer identifiers.
// MarkProcessed must check-and-insert atomically: of two concurrent calls with
// the same identifier exactly one succeeds, the other fails ErrAlreadyProcessed.
// The set only grows; an inserted identifier is permanent.
type ReplayGuard interface {
	IsProcessed(ctx context.Context, id common.Hash) (bool, error)
	MarkProcessed(ctx context.Context, id common.Hash) error
}

// NonceLedger keeps one monotonic counter per user. Next increments the
// counter by exactly one and returns the new value. Counters are never reset.
type NonceLedger interface {
	Next(ctx context.Context, user string) (uint64, error)
	Current(ctx context.Context, user string) (uint64, error)
}

// StateStore persists the endpoint's mutable state: the aggregate locked
// balance (source side) and the pause flag.
type StateStore interface {
	LockedBalance(ctx context.Context) (*big.Int, error)
	SetLockedBalance(ctx context.Context, balance *big.Int) error
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

// CustodyLedger wraps the local asset's balance-transfer primitives. Used only
// by the source-side endpoint. Calls are assumed atomic: they either fully
// apply or fail cleanly.
type CustodyLedger interface {
	// TransferFrom pulls amount from `from` into `to` (the endpoint account).
	TransferFrom(ctx context.Context, from, to string, amount *big.Int) error
	// Transfer pushes amount from the endpoint account to `to`.
	Transfer(ctx context.Context, to string, amount *big.Int) error
}

// IssuanceLedger wraps mint/burn on the pegged asset. Used only by the
// destination-side endpoint.
type IssuanceLedger interface {
	Mint(ctx context.Context, to string, amount *big.Int) error
	Burn(ctx context.Context, from string, amount *big.Int) error
}

// EmergencyVault moves an arbitrary asset held by the endpoint account to a
// recipient. This backs emergencyWithdraw and deliberately bypasses locked
// balance accounting.
type EmergencyVault interface {
	Withdraw(ctx context.Context, assetRef, to string, amount *big.Int) error
}

// Claim carries everything an access policy may need to authorize a call.
// Role-based policies look at Caller only; the signature policy verifies Proof
// over (Recipient, Amount, TransferID).
type Claim struct {
	Op         Operation
	Caller     string
	Recipient  string
	Amount     *big.Int
	TransferID common.Hash
	// Proof is policy-specific, e.g. a 65-byte secp256k1 signature.
	Proof []byte
}

// AccessPolicy gates privileged operations. The endpoint is agnostic to
// whether roles or signatures back it.
type AccessPolicy interface {
	Authorize(ctx context.Context, claim Claim) error
}

// RoleManager mutates role assignments. Implemented by the role-based policy;
// nil on endpoints backed by the signature policy.
type RoleManager interface {
	Grant(ctx context.Context, role, principal string) error
	Revoke(ctx context.Context, role, principal string) error
	Has(ctx context.Context, role, principal string) (bool, error)
}

// Publisher delivers transfer-intent events to the off-band relayer.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// TransferRecorder keeps the bridge transfer history (outbound intents and
// inbound applications) for the query surface. Recording is best-effort and
// never blocks an operation.
type TransferRecorder interface {
	Record(ctx context.Context, event Event) error
}
