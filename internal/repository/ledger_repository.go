package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bridge-backend/internal/ledger"
	"bridge-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is a gorm-backed account-balance ledger. Balance moves run
// inside a database transaction with the touched rows locked, so each call is
// atomic as the bridge requires.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a gorm-backed ledger.AccountLedger.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) BalanceOf(ctx context.Context, asset, account string) (*big.Int, error) {
	var record models.AssetAccount
	err := r.db.WithContext(ctx).
		Where("asset = ? AND address = ?", asset, strings.ToLower(account)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBalance(record.Balance)
}

func (r *LedgerRepository) Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debit(tx, asset, from, amount); err != nil {
			return err
		}
		return credit(tx, asset, to, amount)
	})
}

func (r *LedgerRepository) Mint(ctx context.Context, asset, to string, amount *big.Int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return credit(tx, asset, to, amount)
	})
}

func (r *LedgerRepository) Burn(ctx context.Context, asset, from string, amount *big.Int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return debit(tx, asset, from, amount)
	})
}

func debit(tx *gorm.DB, asset, account string, amount *big.Int) error {
	account = strings.ToLower(account)
	var record models.AssetAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset = ? AND address = ?", asset, account).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s has no %s balance", ledger.ErrInsufficientBalance, account, asset)
	}
	if err != nil {
		return err
	}
	balance, err := parseBalance(record.Balance)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of %s, need %s", ledger.ErrInsufficientBalance, account, balance, asset, amount)
	}
	return tx.Model(&record).Updates(map[string]interface{}{
		"balance":    new(big.Int).Sub(balance, amount).String(),
		"updated_at": time.Now(),
	}).Error
}

func credit(tx *gorm.DB, asset, account string, amount *big.Int) error {
	account = strings.ToLower(account)
	var record models.AssetAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset = ? AND address = ?", asset, account).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.AssetAccount{
			Asset:     asset,
			Address:   account,
			Balance:   amount.String(),
			UpdatedAt: time.Now(),
		}
		return tx.Create(&record).Error
	}
	if err != nil {
		return err
	}
	balance, err := parseBalance(record.Balance)
	if err != nil {
		return err
	}
	return tx.Model(&record).Updates(map[string]interface{}{
		"balance":    new(big.Int).Add(balance, amount).String(),
		"updated_at": time.Now(),
	}).Error
}

func parseBalance(s string) (*big.Int, error) {
	balance, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance %q", s)
	}
	return balance, nil
}
