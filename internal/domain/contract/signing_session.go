package contract

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the signing-session lifecycle. A session leaves pending
// exactly once, via a compare-and-set on state, which is what makes code
// consumption exactly-once under concurrent verification.
type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionConsumed   SessionState = "consumed"
	SessionFailed     SessionState = "failed"
	SessionSuperseded SessionState = "superseded"
	SessionExpired    SessionState = "expired"
)

func (s SessionState) Terminal() bool { return s != SessionPending }

// Channel is the side channel the one-time code is dispatched over.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool { return c == ChannelSMS || c == ChannelEmail }

const (
	// SessionTTL is how long an issued code stays verifiable.
	SessionTTL = 5 * time.Minute
	// SessionMaxAttempts is the verification budget per session.
	SessionMaxAttempts = 5
	// CodeLength is the number of digits in an issued code.
	CodeLength = 6
)

// SigningSession binds a (contract, signer) pair to one outstanding OTP
// challenge. Only the bcrypt hash of the code is stored. At most one pending
// row exists per pair: creating a new session supersedes the previous one in
// the same transaction.
type SigningSession struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID    uuid.UUID    `gorm:"type:uuid;not null;column:contract_id;index:idx_session_pair" json:"contract_id"`
	SignerID      uuid.UUID    `gorm:"type:uuid;not null;column:signer_id;index:idx_session_pair" json:"signer_id"`
	Channel       Channel      `gorm:"not null;column:channel" json:"channel"`
	ChannelTarget string       `gorm:"not null;column:channel_target" json:"-"`
	CodeHash      string       `gorm:"not null;column:code_hash" json:"-"`
	State         SessionState `gorm:"not null;column:state;default:pending;index" json:"state"`
	Attempts      int          `gorm:"not null;column:attempts;default:0" json:"attempts"`
	MaxAttempts   int          `gorm:"not null;column:max_attempts;default:5" json:"max_attempts"`

	ExpiresAt     time.Time  `gorm:"not null;column:expires_at" json:"expires_at"`
	ConsumedAt    *time.Time `gorm:"column:consumed_at" json:"consumed_at,omitempty"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at" json:"dispatched_at,omitempty"`
	DispatchError string     `gorm:"column:dispatch_error" json:"dispatch_error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SigningSession) TableName() string { return "signing_session" }

func (s *SigningSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RemainingAttempts never reports below zero.
func (s *SigningSession) RemainingAttempts() int {
	left := s.MaxAttempts - s.Attempts
	if left < 0 {
		return 0
	}
	return left
}
