package contract

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

// AuditEntryRepo only appends and reads. There is intentionally no update
// or delete method on this interface.
type AuditEntryRepo interface {
	Append(ctx context.Context, tx *gorm.DB, entry *types.AuditEntry) (*types.AuditEntry, error)
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.AuditEntry, error)
}

type auditEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditEntryRepo(db *gorm.DB, baseLog *logger.Logger) AuditEntryRepo {
	repoLog := baseLog.With("repo", "AuditEntryRepo")
	return &auditEntryRepo{db: db, log: repoLog}
}

func (ar *auditEntryRepo) Append(ctx context.Context, tx *gorm.DB, entry *types.AuditEntry) (*types.AuditEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (ar *auditEntryRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.AuditEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.AuditEntry
	if err := transaction.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
