// Package repository provides gorm-backed implementations of the bridge
// endpoint's storage interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// ReplayGuardRepository is the durable processed-identifier set. The primary
// key on tx_id makes MarkProcessed an atomic check-and-insert: of two
// concurrent inserts exactly one commits, the other hits the unique
// constraint and is reported as AlreadyProcessed.
type ReplayGuardRepository struct {
	db *gorm.DB
}

// NewReplayGuardRepository creates a gorm-backed bridge.ReplayGuard.
// Requires the db opened with TranslateError so duplicate-key violations
// surface as gorm.ErrDuplicatedKey.
func NewReplayGuardRepository(db *gorm.DB) *ReplayGuardRepository {
	return &ReplayGuardRepository{db: db}
}

func (r *ReplayGuardRepository) IsProcessed(ctx context.Context, id common.Hash) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedTransfer{}).
		Where("tx_id = ?", id.Hex()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ReplayGuardRepository) MarkProcessed(ctx context.Context, id common.Hash) error {
	record := models.ProcessedTransfer{
		TxID:        id.Hex(),
		ProcessedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return bridge.ErrAlreadyProcessed
	}
	return err
}
