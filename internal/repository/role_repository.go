package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// RoleRepository is the durable role-assignment store backing the role-based
// access policy.
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a gorm-backed bridge.RoleManager.
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Grant(ctx context.Context, role, principal string) error {
	record := models.RoleAssignment{
		Role:      role,
		Principal: strings.ToLower(principal),
		CreatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Granting an already-held role is a no-op.
		return nil
	}
	return err
}

func (r *RoleRepository) Revoke(ctx context.Context, role, principal string) error {
	return r.db.WithContext(ctx).
		Where("role = ? AND principal = ?", role, strings.ToLower(principal)).
		Delete(&models.RoleAssignment{}).Error
}

func (r *RoleRepository) Has(ctx context.Context, role, principal string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("role = ? AND principal = ?", role, strings.ToLower(principal)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns all principals holding a role.
func (r *RoleRepository) List(ctx context.Context, role string) ([]string, error) {
	var principals []string
	err := r.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("role = ?", role).
		Pluck("principal", &principals).Error
	return principals, err
}
