package contract

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	Create(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error)
	GetByHash(ctx context.Context, tx *gorm.DB, contractCode, hash string) (*types.Artifact, error)
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.Artifact, error)
	DeleteByHash(ctx context.Context, tx *gorm.DB, contractCode, hash string) (int64, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	repoLog := baseLog.With("repo", "ArtifactRepo")
	return &artifactRepo{db: db, log: repoLog}
}

func (ar *artifactRepo) Create(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	if err := transaction.WithContext(ctx).Create(artifact).Error; err != nil {
		return nil, err
	}
	return artifact, nil
}

func (ar *artifactRepo) GetByHash(ctx context.Context, tx *gorm.DB, contractCode, hash string) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var result types.Artifact
	if err := transaction.WithContext(ctx).
		Where("contract_code = ? AND hash = ?", contractCode, hash).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *artifactRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.Artifact
	if err := transaction.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("stored_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteByHash is a hard delete. Callers run it inside the same transaction
// as the audit entry that records the reason.
func (ar *artifactRepo) DeleteByHash(ctx context.Context, tx *gorm.DB, contractCode, hash string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	res := transaction.WithContext(ctx).
		Unscoped().
		Where("contract_code = ? AND hash = ?", contractCode, hash).
		Delete(&types.Artifact{})
	return res.RowsAffected, res.Error
}
