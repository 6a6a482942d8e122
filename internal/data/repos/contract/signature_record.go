package contract

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type SignatureRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.SignatureRecord) (*types.SignatureRecord, error)
	GetByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.SignatureRecord, error)
	GetBySlot(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, role types.Role) (*types.SignatureRecord, error)
	CountByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (int64, error)
}

type signatureRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignatureRecordRepo(db *gorm.DB, baseLog *logger.Logger) SignatureRecordRepo {
	repoLog := baseLog.With("repo", "SignatureRecordRepo")
	return &signatureRecordRepo{db: db, log: repoLog}
}

func (rr *signatureRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.SignatureRecord) (*types.SignatureRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (rr *signatureRecordRepo) GetByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.SignatureRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.SignatureRecord
	if err := transaction.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *signatureRecordRepo) GetBySlot(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, role types.Role) (*types.SignatureRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.SignatureRecord
	if err := transaction.WithContext(ctx).
		Where("contract_id = ? AND role = ?", contractID, role).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *signatureRecordRepo) CountByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SignatureRecord{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
