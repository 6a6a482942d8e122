package contract

import (
	"time"

	"github.com/google/uuid"
)

// RetentionPeriod is the statutory minimum a stored contract document must
// remain recoverable. Signed-URL TTLs are a separate, short access-expiry
// concept and never touch this.
const RetentionPeriod = 10 * 365 * 24 * time.Hour

// Artifact is the persisted record of one rendered contract document. Keyed
// by content: one row per distinct artifact hash per contract.
type Artifact struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID   uuid.UUID `gorm:"type:uuid;not null;column:contract_id;index" json:"contract_id"`
	ContractCode string    `gorm:"not null;column:contract_code;uniqueIndex:idx_artifact_hash" json:"contract_code"`
	StorageKey   string    `gorm:"not null;column:storage_key" json:"storage_key"`

	// Hash is the artifact fingerprint (SHA-256 of the exact rendered
	// bytes); ContentHash is the stable fingerprint of the canonical
	// document content. They serve different integrity purposes and are
	// never interchangeable.
	Hash        string `gorm:"not null;column:hash;uniqueIndex:idx_artifact_hash" json:"hash"`
	ContentHash string `gorm:"not null;column:content_hash" json:"content_hash"`

	SizeBytes int64 `gorm:"not null;column:size_bytes" json:"size_bytes"`
	PageCount int   `gorm:"not null;column:page_count" json:"page_count"`
	Encrypted bool  `gorm:"not null;column:encrypted;default:false" json:"encrypted"`
	Mirrored  bool  `gorm:"not null;column:mirrored;default:false" json:"mirrored"`

	StoredAt           time.Time `gorm:"not null;column:stored_at" json:"stored_at"`
	RetentionExpiresAt time.Time `gorm:"not null;column:retention_expires_at" json:"retention_expires_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Artifact) TableName() string { return "artifact" }
