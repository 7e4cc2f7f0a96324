package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// endpointStateID is the fixed primary key of the single endpoint_state row.
const endpointStateID = 1

// StateRepository persists the endpoint's locked balance and pause flag.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a gorm-backed bridge.StateStore, seeding the
// state row if it does not exist yet.
func NewStateRepository(db *gorm.DB) (*StateRepository, error) {
	r := &StateRepository{db: db}
	var state models.EndpointState
	err := db.Where("id = ?", endpointStateID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.EndpointState{ID: endpointStateID, LockedBalance: "0", UpdatedAt: time.Now()}
		if err := db.Create(&state).Error; err != nil {
			return nil, fmt.Errorf("seed endpoint state: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *StateRepository) LockedBalance(ctx context.Context) (*big.Int, error) {
	state, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(state.LockedBalance, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt locked balance %q", state.LockedBalance)
	}
	return balance, nil
}

func (r *StateRepository) SetLockedBalance(ctx context.Context, balance *big.Int) error {
	return r.db.WithContext(ctx).
		Model(&models.EndpointState{}).
		Where("id = ?", endpointStateID).
		Updates(map[string]interface{}{
			"locked_balance": balance.String(),
			"updated_at":     time.Now(),
		}).Error
}

func (r *StateRepository) Paused(ctx context.Context) (bool, error) {
	state, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

func (r *StateRepository) SetPaused(ctx context.Context, paused bool) error {
	return r.db.WithContext(ctx).
		Model(&models.EndpointState{}).
		Where("id = ?", endpointStateID).
		Updates(map[string]interface{}{
			"paused":     paused,
			"updated_at": time.Now(),
		}).Error
}

func (r *StateRepository) load(ctx context.Context) (*models.EndpointState, error) {
	var state models.EndpointState
	err := r.db.WithContext(ctx).Where("id = ?", endpointStateID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}
