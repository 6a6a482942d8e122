package contract

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type SigningSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.SigningSession) (*types.SigningSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SigningSession, error)
	GetPendingByPair(ctx context.Context, tx *gorm.DB, contractID, signerID uuid.UUID) (*types.SigningSession, error)
	SupersedePending(ctx context.Context, tx *gorm.DB, contractID, signerID uuid.UUID) (int64, error)
	IncrementAttempt(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SessionState, updates map[string]any) (bool, error)
	RecordDispatch(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time, dispatchErr string) error
}

type signingSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSigningSessionRepo(db *gorm.DB, baseLog *logger.Logger) SigningSessionRepo {
	repoLog := baseLog.With("repo", "SigningSessionRepo")
	return &signingSessionRepo{db: db, log: repoLog}
}

func (sr *signingSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.SigningSession) (*types.SigningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (sr *signingSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SigningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.SigningSession
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (sr *signingSessionRepo) GetPendingByPair(ctx context.Context, tx *gorm.DB, contractID, signerID uuid.UUID) (*types.SigningSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.SigningSession
	if err := transaction.WithContext(ctx).
		Where("contract_id = ? AND signer_id = ? AND state = ?", contractID, signerID, types.SessionPending).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// SupersedePending retires every pending session for the pair. Runs inside
// the same transaction as the insert of the replacement so two live codes
// never coexist.
func (sr *signingSessionRepo) SupersedePending(ctx context.Context, tx *gorm.DB, contractID, signerID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.SigningSession{}).
		Where("contract_id = ? AND signer_id = ? AND state = ?", contractID, signerID, types.SessionPending).
		Update("state", types.SessionSuperseded)
	return res.RowsAffected, res.Error
}

// IncrementAttempt bumps the attempt counter while the session is still
// pending and under budget. RowsAffected == 0 means the session is terminal
// or out of attempts; the caller inspects the row to tell which.
func (sr *signingSessionRepo) IncrementAttempt(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.SigningSession{}).
		Where("id = ? AND state = ? AND attempts < max_attempts", id, types.SessionPending).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionState is the compare-and-set that moves a session out of
// pending. Exactly one concurrent caller can win any given from -> to edge.
func (sr *signingSessionRepo) TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SessionState, updates map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	merged := map[string]any{"state": to}
	for k, v := range updates {
		merged[k] = v
	}

	res := transaction.WithContext(ctx).
		Model(&types.SigningSession{}).
		Where("id = ? AND state = ?", id, from).
		Updates(merged)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (sr *signingSessionRepo) RecordDispatch(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time, dispatchErr string) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	updates := map[string]any{"dispatched_at": at}
	if dispatchErr != "" {
		updates["dispatch_error"] = dispatchErr
	}
	return transaction.WithContext(ctx).
		Model(&types.SigningSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
