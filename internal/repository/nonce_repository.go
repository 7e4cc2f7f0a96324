package repository

import (
	"context"
	"errors"
	"strings"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// NonceRepository is the durable per-user nonce ledger.
type NonceRepository struct {
	db *gorm.DB
}

// NewNonceRepository creates a gorm-backed bridge.NonceLedger.
func NewNonceRepository(db *gorm.DB) *NonceRepository {
	return &NonceRepository{db: db}
}

// Next atomically increments and returns the user's nonce. The upsert runs as
// a single statement so concurrent callers can never be assigned the same
// value.
func (r *NonceRepository) Next(ctx context.Context, user string) (uint64, error) {
	var nonce uint64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO user_nonces (address, nonce, updated_at)
		VALUES (?, 1, NOW())
		ON CONFLICT (address)
		DO UPDATE SET nonce = user_nonces.nonce + 1, updated_at = NOW()
		RETURNING nonce
	`, strings.ToLower(user)).Scan(&nonce).Error
	if err != nil {
		return 0, err
	}
	return nonce, nil
}

func (r *NonceRepository) Current(ctx context.Context, user string) (uint64, error) {
	var record models.UserNonce
	err := r.db.WithContext(ctx).
		Where("address = ?", strings.ToLower(user)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Nonce, nil
}
