package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// MemoryLedger is an in-process AccountLedger keyed by (asset, account).
// Used by tests and database-less deployments.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]map[string]*big.Int)}
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, asset, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(asset, account)), nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.balance(asset, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of %s, need %s", ErrInsufficientBalance, from, src, asset, amount)
	}
	src.Sub(src, amount)
	l.balance(asset, to).Add(l.balance(asset, to), amount)
	return nil
}

func (l *MemoryLedger) Mint(ctx context.Context, asset, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(asset, to).Add(l.balance(asset, to), amount)
	return nil
}

func (l *MemoryLedger) Burn(ctx context.Context, asset, from string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.balance(asset, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of %s, need %s", ErrInsufficientBalance, from, src, asset, amount)
	}
	src.Sub(src, amount)
	return nil
}

// balance returns the live balance cell, creating it on first touch. Callers
// must hold the mutex.
func (l *MemoryLedger) balance(asset, account string) *big.Int {
	account = strings.ToLower(account)
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]*big.Int)
	}
	if l.balances[asset][account] == nil {
		l.balances[asset][account] = new(big.Int)
	}
	return l.balances[asset][account]
}
