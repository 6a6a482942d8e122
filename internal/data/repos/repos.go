package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/data/repos/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type ContractRepo = contract.ContractRepo
type SigningSessionRepo = contract.SigningSessionRepo
type SignatureRecordRepo = contract.SignatureRecordRepo
type ArtifactRepo = contract.ArtifactRepo
type AuditEntryRepo = contract.AuditEntryRepo

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return contract.NewContractRepo(db, baseLog)
}

func NewSigningSessionRepo(db *gorm.DB, baseLog *logger.Logger) SigningSessionRepo {
	return contract.NewSigningSessionRepo(db, baseLog)
}

func NewSignatureRecordRepo(db *gorm.DB, baseLog *logger.Logger) SignatureRecordRepo {
	return contract.NewSignatureRecordRepo(db, baseLog)
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return contract.NewArtifactRepo(db, baseLog)
}

func NewAuditEntryRepo(db *gorm.DB, baseLog *logger.Logger) AuditEntryRepo {
	return contract.NewAuditEntryRepo(db, baseLog)
}
