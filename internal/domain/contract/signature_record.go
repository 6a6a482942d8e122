package contract

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SignatureRecord is the permanent legal record of one party signing.
// Exactly one record exists per (contract, role), enforced by a unique
// index, and a row is never updated after creation.
type SignatureRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;column:contract_id;uniqueIndex:idx_signature_slot" json:"contract_id"`
	SignerID   uuid.UUID `gorm:"type:uuid;not null;column:signer_id;index" json:"signer_id"`
	Role       Role      `gorm:"not null;column:role;uniqueIndex:idx_signature_slot" json:"role"`
	SessionID  uuid.UUID `gorm:"type:uuid;not null;column:session_id" json:"session_id"`

	// ImageKey points at the stored canvas capture; ImageHash is its
	// SHA-256. ContentHash fingerprints the canonical contract content at
	// signing time.
	ImageKey    string `gorm:"not null;column:image_key" json:"image_key"`
	ImageHash   string `gorm:"not null;column:image_hash" json:"image_hash"`
	ContentHash string `gorm:"not null;column:content_hash" json:"content_hash"`

	// Evidence is the full legal evidence bundle as built at signing time.
	Evidence datatypes.JSON `gorm:"column:evidence" json:"evidence"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SignatureRecord) TableName() string { return "signature_record" }
