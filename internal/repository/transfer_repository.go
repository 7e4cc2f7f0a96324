package repository

import (
	"context"
	"strings"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransferRepository keeps the bridge transfer history for the query surface.
type TransferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a gorm-backed bridge.TransferRecorder.
func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Record stores one emitted or applied bridge event.
func (r *TransferRepository) Record(ctx context.Context, event bridge.Event) error {
	direction := models.BridgeTransferOutbound
	if event.Type == bridge.EventUnlocked || event.Type == bridge.EventMinted {
		direction = models.BridgeTransferInbound
	}
	record := models.BridgeTransfer{
		ID:        uuid.NewString(),
		Direction: direction,
		EventType: string(event.Type),
		User:      strings.ToLower(event.User),
		Amount:    event.Amount.String(),
		Nonce:     event.Nonce,
		ChainID:   event.ChainID,
		TxID:      event.TransferID.Hex(),
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

// List returns transfers newest first, paginated.
func (r *TransferRepository) List(ctx context.Context, page, pageSize int) ([]*models.BridgeTransfer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BridgeTransfer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transfers []*models.BridgeTransfer
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transfers).Error
	return transfers, total, err
}

// FindByTxID returns all history rows carrying a transfer identifier (at most
// one outbound and one inbound).
func (r *TransferRepository) FindByTxID(ctx context.Context, txID string) ([]*models.BridgeTransfer, error) {
	var transfers []*models.BridgeTransfer
	err := r.db.WithContext(ctx).
		Where("tx_id = ?", txID).
		Order("created_at ASC").
		Find(&transfers).Error
	return transfers, err
}
