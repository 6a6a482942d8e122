package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

var SigningAggregateContract = Contract{
	Name:             "Contract.SigningAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns atomic session lifecycle, signature slot, and contract status writes for the signing flow.",
}

// ActorMeta carries the request attribution every audit entry records.
type ActorMeta struct {
	ActorID   uuid.UUID
	RequestID string
	IP        string
	UserAgent string
}

// SigningAggregate owns the multi-row atomic units of the signing flow.
// Single-statement updates (attempt increments, dispatch bookkeeping) stay on
// the table repos; everything here spans at least two rows and must commit or
// roll back together.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type SigningAggregate interface {
	Aggregate

	// OpenSession supersedes any pending session for the contract+signer pair,
	// inserts the replacement, and moves a draft contract to pending_signature.
	OpenSession(ctx context.Context, in OpenSessionInput) (OpenSessionResult, error)

	// ExpireSession moves a pending session to expired and records it.
	ExpireSession(ctx context.Context, in CloseSessionInput) (CloseSessionResult, error)

	// FailSession moves a pending session to failed once the attempt budget is
	// exhausted and records it.
	FailSession(ctx context.Context, in CloseSessionInput) (CloseSessionResult, error)

	// CompleteSigning consumes the session, inserts the signature record, and
	// advances the contract status in one transaction. Exactly one concurrent
	// caller can win the pending -> consumed edge.
	CompleteSigning(ctx context.Context, in CompleteSigningInput) (CompleteSigningResult, error)
}

type OpenSessionInput struct {
	ContractID    uuid.UUID
	SignerID      uuid.UUID
	Role          types.Role
	Channel       types.Channel
	ChannelTarget string
	CodeHash      string
	ExpiresAt     time.Time
	Actor         ActorMeta
}

type OpenSessionResult struct {
	SessionID      uuid.UUID
	Superseded     int64
	ContractStatus types.Status
	ExpiresAt      time.Time
}

type CloseSessionInput struct {
	SessionID  uuid.UUID
	ContractID uuid.UUID
	Reason     string
	Actor      ActorMeta
}

type CloseSessionResult struct {
	SessionID uuid.UUID
	State     types.SessionState
}

type CompleteSigningInput struct {
	SessionID  uuid.UUID
	ContractID uuid.UUID
	SignerID   uuid.UUID
	Role       types.Role

	ImageKey    string
	ImageHash   string
	ContentHash string
	Evidence    []byte
	SignedAt    time.Time
	Actor       ActorMeta
}

type CompleteSigningResult struct {
	SignatureID    uuid.UUID
	ContractStatus types.Status
	FullySigned    bool
	ConsumedAt     time.Time
}
