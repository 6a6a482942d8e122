package contract

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinancialTerms is the snapshot of the money side of the agreement taken
// when the contract is drafted. It is stored as JSONB and never recomputed
// from live listing data.
type FinancialTerms struct {
	MonthlyRent   float64 `json:"monthly_rent"`
	DepositAmount float64 `json:"deposit_amount"`
	Currency      string  `json:"currency"`
	PaymentDay    int     `json:"payment_day"`
}

type Contract struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Status      Status    `gorm:"not null;column:status;default:draft;index" json:"status"`
	LandlordID  uuid.UUID `gorm:"type:uuid;not null;column:landlord_id;index" json:"landlord_id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;column:tenant_id;index" json:"tenant_id"`
	PropertyRef string    `gorm:"not null;column:property_ref" json:"property_ref"`

	FinancialTerms datatypes.JSONType[FinancialTerms] `gorm:"column:financial_terms" json:"financial_terms"`

	StartDate time.Time  `gorm:"not null;column:start_date" json:"start_date"`
	EndDate   time.Time  `gorm:"not null;column:end_date" json:"end_date"`
	SignedAt  *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Contract) TableName() string { return "contract" }

// SignerRole resolves which signature slot a signer occupies on this
// contract, or false when the signer is not a party.
func (c *Contract) SignerRole(signerID uuid.UUID) (Role, bool) {
	switch signerID {
	case c.LandlordID:
		return RoleLandlord, true
	case c.TenantID:
		return RoleTenant, true
	default:
		return "", false
	}
}
