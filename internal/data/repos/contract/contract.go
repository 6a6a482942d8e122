package contract

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type ContractRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contracts []*types.Contract) ([]*types.Contract, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contract, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Contract, error)
	CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, allowed []types.Status, updates map[string]any) (bool, error)
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	repoLog := baseLog.With("repo", "ContractRepo")
	return &contractRepo{db: db, log: repoLog}
}

func (cr *contractRepo) Create(ctx context.Context, tx *gorm.DB, contracts []*types.Contract) ([]*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	if len(contracts) == 0 {
		return []*types.Contract{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (cr *contractRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Contract
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *contractRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Contract, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Contract
	if err := transaction.WithContext(ctx).
		Where("code = ?", code).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *contractRepo) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Contract{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatusGuarded applies updates only while the row still holds one of
// the allowed statuses. RowsAffected == 0 means the guard lost, and the
// caller treats that as a rejected transition.
func (cr *contractRepo) UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, allowed []types.Status, updates map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	if len(allowed) == 0 {
		return false, nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
