// Package ledger adapts opaque account-balance services to the bridge
// endpoint's custody and issuance interfaces.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

// ErrInsufficientBalance is returned when a transfer or burn exceeds the
// source account's balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// AccountLedger is the opaque balance service the bridge builds on. Each call
// is atomic: it fully applies or fails cleanly.
type AccountLedger interface {
	BalanceOf(ctx context.Context, asset, account string) (*big.Int, error)
	Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error
	Mint(ctx context.Context, asset, to string, amount *big.Int) error
	Burn(ctx context.Context, asset, from string, amount *big.Int) error
}

// Custody binds an AccountLedger to one asset and the endpoint's custody
// account, satisfying the source-side bridge interface.
type Custody struct {
	Ledger          AccountLedger
	Asset           string
	EndpointAccount string
}

func (c *Custody) TransferFrom(ctx context.Context, from, to string, amount *big.Int) error {
	return c.Ledger.Transfer(ctx, c.Asset, from, to, amount)
}

func (c *Custody) Transfer(ctx context.Context, to string, amount *big.Int) error {
	return c.Ledger.Transfer(ctx, c.Asset, c.EndpointAccount, to, amount)
}

// Issuance binds an AccountLedger to the pegged asset, satisfying the
// destination-side bridge interface.
type Issuance struct {
	Ledger AccountLedger
	Asset  string
}

func (i *Issuance) Mint(ctx context.Context, to string, amount *big.Int) error {
	return i.Ledger.Mint(ctx, i.Asset, to, amount)
}

func (i *Issuance) Burn(ctx context.Context, from string, amount *big.Int) error {
	return i.Ledger.Burn(ctx, i.Asset, from, amount)
}

// Vault sweeps any asset out of the endpoint account. Backs the bridge's
// emergency withdraw.
type Vault struct {
	Ledger          AccountLedger
	EndpointAccount string
}

func (v *Vault) Withdraw(ctx context.Context, assetRef, to string, amount *big.Int) error {
	return v.Ledger.Transfer(ctx, assetRef, v.EndpointAccount, to, amount)
}
