package models

import (
	"time"
)

// ProcessedTransfer is one consumed transfer identifier. The primary key on
// tx_id is what makes the replay guard's check-and-insert atomic: a duplicate
// insert fails on the unique constraint.
type ProcessedTransfer struct {
	TxID        string    `json:"tx_id" gorm:"primaryKey;size:66"`
	ProcessedAt time.Time `json:"processed_at" gorm:"not null"`
}

func (ProcessedTransfer) TableName() string {
	return "processed_transfers"
}

// UserNonce is the per-user monotonic counter diversifying transfer
// identifiers. Never reset, never decremented.
type UserNonce struct {
	Address   string    `json:"address" gorm:"primaryKey;size:66"`
	Nonce     uint64    `json:"nonce" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserNonce) TableName() string {
	return "user_nonces"
}

// AssetAccount is one balance cell of the in-process account ledger.
type AssetAccount struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Asset     string    `json:"asset" gorm:"not null;uniqueIndex:idx_asset_account;size:64"`
	Address   string    `json:"address" gorm:"not null;uniqueIndex:idx_asset_account;size:66"`
	Balance   string    `json:"balance" gorm:"not null;default:0"` // decimal string
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssetAccount) TableName() string {
	return "asset_accounts"
}

// RoleAssignment grants a principal a role (ADMIN, RELAYER). Revocation
// deletes the row and takes effect on the next call.
type RoleAssignment struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Role      string    `json:"role" gorm:"not null;uniqueIndex:idx_role_principal;size:32"`
	Principal string    `json:"principal" gorm:"not null;uniqueIndex:idx_role_principal;size:66"`
	GrantedBy string    `json:"granted_by" gorm:"size:66"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// EndpointState is the single-row mutable endpoint state: aggregate locked
// balance and the pause flag.
type EndpointState struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	LockedBalance string    `json:"locked_balance" gorm:"not null;default:0"` // decimal string
	Paused        bool      `json:"paused" gorm:"not null;default:false"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (EndpointState) TableName() string {
	return "endpoint_state"
}

// BridgeTransferDirection distinguishes intents this endpoint emitted from
// relayed events it applied.
type BridgeTransferDirection string

const (
	BridgeTransferOutbound BridgeTransferDirection = "outbound" // lock/burn emitted here
	BridgeTransferInbound  BridgeTransferDirection = "inbound"  // unlock/mint applied here
)

// BridgeTransfer is one row of the transfer history: every emitted intent and
// every consumed identifier, for tracing and operator re-publish.
type BridgeTransfer struct {
	ID        string                  `json:"id" gorm:"primaryKey"` // UUID
	Direction BridgeTransferDirection `json:"direction" gorm:"not null;index"`
	EventType string                  `json:"event_type" gorm:"not null"` // Locked/Unlocked/Burned/Minted
	User      string                  `json:"user" gorm:"not null;index;size:66"`
	Amount    string                  `json:"amount" gorm:"not null"` // decimal string
	Nonce     uint64                  `json:"nonce" gorm:"not null"`
	ChainID   uint64                  `json:"chain_id" gorm:"not null"`
	TxID      string                  `json:"tx_id" gorm:"not null;index;size:66"`
	CreatedAt time.Time               `json:"created_at"`
}

func (BridgeTransfer) TableName() string {
	return "bridge_transfers"
}
