package contract

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions recorded by the signing core.
const (
	AuditContractCreated    = "contract.created"
	AuditSessionCreated     = "signing.session_created"
	AuditSessionDispatched  = "signing.code_dispatched"
	AuditSessionDispatchErr = "signing.code_dispatch_failed"
	AuditSessionConsumed    = "signing.session_consumed"
	AuditSessionFailed      = "signing.session_failed"
	AuditSessionExpired     = "signing.session_expired"
	AuditSessionSuperseded  = "signing.session_superseded"
	AuditSignatureRecorded  = "signing.signature_recorded"
	AuditContractTransition = "contract.status_transition"
	AuditComplianceFailed   = "compliance.validation_failed"
	AuditArtifactStored     = "artifact.stored"
	AuditArtifactVerified   = "artifact.integrity_verified"
	AuditArtifactMismatch   = "artifact.integrity_mismatch"
	AuditArtifactDeleted    = "artifact.deleted"
	AuditSignedURLIssued    = "artifact.signed_url_issued"
)

// AuditEntry is append-only. Rows are never updated; the only delete allowed
// anywhere in the subsystem (artifact hard-delete) writes its own entry in
// the same transaction.
type AuditEntry struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;column:contract_id;index" json:"contract_id"`
	ActorID    uuid.UUID      `gorm:"type:uuid;column:actor_id" json:"actor_id"`
	Action     string         `gorm:"not null;column:action;index" json:"action"`
	Details    datatypes.JSON `gorm:"column:details" json:"details,omitempty"`

	RequestID string `gorm:"column:request_id" json:"request_id,omitempty"`
	IP        string `gorm:"column:ip" json:"ip,omitempty"`
	UserAgent string `gorm:"column:user_agent" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_entry" }
