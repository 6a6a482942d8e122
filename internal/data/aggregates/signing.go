package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rentline-backend/internal/data/repos"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/dbctx"
)

type SigningAggregateDeps struct {
	Base BaseDeps

	Contracts  repos.ContractRepo
	Sessions   repos.SigningSessionRepo
	Signatures repos.SignatureRecordRepo
	Audit      repos.AuditEntryRepo
}

type signingAggregate struct {
	deps SigningAggregateDeps
}

func NewSigningAggregate(deps SigningAggregateDeps) domainagg.SigningAggregate {
	deps.Base = deps.Base.withDefaults()
	return &signingAggregate{deps: deps}
}

func (a *signingAggregate) Contract() domainagg.Contract {
	return domainagg.SigningAggregateContract
}

func (a *signingAggregate) OpenSession(ctx context.Context, in domainagg.OpenSessionInput) (domainagg.OpenSessionResult, error) {
	const op = "Contract.Signing.OpenSession"
	var out domainagg.OpenSessionResult

	if in.ContractID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing contract_id", nil)
	}
	if in.SignerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing signer_id", nil)
	}
	if !in.Role.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid role %q", in.Role), nil)
	}
	if !in.Channel.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid channel %q", in.Channel), nil)
	}
	if strings.TrimSpace(in.CodeHash) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing code_hash", nil)
	}
	if strings.TrimSpace(in.ChannelTarget) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing channel_target", nil)
	}
	if in.ExpiresAt.IsZero() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing expires_at", nil)
	}
	if err := a.requireRepos(op); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		c, err := a.deps.Contracts.GetByID(dbc.Ctx, dbc.Tx, in.ContractID)
		if err != nil {
			return err
		}
		if !c.Status.Signable() {
			return InvariantError(fmt.Sprintf("cannot open signing session in status %q", c.Status))
		}

		superseded, err := a.deps.Sessions.SupersedePending(dbc.Ctx, dbc.Tx, in.ContractID, in.SignerID)
		if err != nil {
			return err
		}

		session := &types.SigningSession{
			ContractID:    in.ContractID,
			SignerID:      in.SignerID,
			Channel:       in.Channel,
			ChannelTarget: in.ChannelTarget,
			CodeHash:      in.CodeHash,
			State:         types.SessionPending,
			MaxAttempts:   types.SessionMaxAttempts,
			ExpiresAt:     in.ExpiresAt.UTC(),
		}
		if _, err := a.deps.Sessions.Create(dbc.Ctx, dbc.Tx, session); err != nil {
			return err
		}

		status := c.Status
		if status == types.StatusDraft {
			ok, err := a.deps.Contracts.UpdateStatusGuarded(dbc.Ctx, dbc.Tx, c.ID,
				[]types.Status{types.StatusDraft},
				map[string]any{"status": types.StatusPendingSignature})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "contract left draft during session open"); err != nil {
				return err
			}
			status = types.StatusPendingSignature
			if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditContractTransition, map[string]any{
				"from": types.StatusDraft,
				"to":   types.StatusPendingSignature,
			}); err != nil {
				return err
			}
		}

		if superseded > 0 {
			if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditSessionSuperseded, map[string]any{
				"signer_id": in.SignerID,
				"count":     superseded,
			}); err != nil {
				return err
			}
		}
		if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditSessionCreated, map[string]any{
			"session_id": session.ID,
			"signer_id":  in.SignerID,
			"role":       in.Role,
			"channel":    in.Channel,
			"expires_at": session.ExpiresAt,
		}); err != nil {
			return err
		}

		out = domainagg.OpenSessionResult{
			SessionID:      session.ID,
			Superseded:     superseded,
			ContractStatus: status,
			ExpiresAt:      session.ExpiresAt,
		}
		return nil
	})
	return out, err
}

func (a *signingAggregate) ExpireSession(ctx context.Context, in domainagg.CloseSessionInput) (domainagg.CloseSessionResult, error) {
	return a.closeSession(ctx, "Contract.Signing.ExpireSession", in, types.SessionExpired, types.AuditSessionExpired)
}

func (a *signingAggregate) FailSession(ctx context.Context, in domainagg.CloseSessionInput) (domainagg.CloseSessionResult, error) {
	return a.closeSession(ctx, "Contract.Signing.FailSession", in, types.SessionFailed, types.AuditSessionFailed)
}

func (a *signingAggregate) closeSession(ctx context.Context, op string, in domainagg.CloseSessionInput, to types.SessionState, action string) (domainagg.CloseSessionResult, error) {
	var out domainagg.CloseSessionResult

	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if in.ContractID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing contract_id", nil)
	}
	if err := a.requireRepos(op); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.Sessions.TransitionState(dbc.Ctx, dbc.Tx, in.SessionID, types.SessionPending, to, nil)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "session is no longer pending"); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, in.ContractID, in.Actor, action, map[string]any{
			"session_id": in.SessionID,
			"reason":     strings.TrimSpace(in.Reason),
		}); err != nil {
			return err
		}
		out = domainagg.CloseSessionResult{SessionID: in.SessionID, State: to}
		return nil
	})
	return out, err
}

// CompleteSigning is the atomic unit behind code verification: the session
// leaves pending, the signature slot fills, and the contract advances, or
// none of it happens. The pending -> consumed compare-and-set is the
// exactly-once gate; the unique (contract_id, role) index backstops the slot.
func (a *signingAggregate) CompleteSigning(ctx context.Context, in domainagg.CompleteSigningInput) (domainagg.CompleteSigningResult, error) {
	const op = "Contract.Signing.CompleteSigning"
	var out domainagg.CompleteSigningResult

	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if in.ContractID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing contract_id", nil)
	}
	if in.SignerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing signer_id", nil)
	}
	if !in.Role.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid role %q", in.Role), nil)
	}
	if strings.TrimSpace(in.ImageKey) == "" || strings.TrimSpace(in.ImageHash) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing signature image", nil)
	}
	if strings.TrimSpace(in.ContentHash) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing content_hash", nil)
	}
	if err := a.requireRepos(op); err != nil {
		return out, err
	}

	signedAt := in.SignedAt.UTC()
	if signedAt.IsZero() {
		signedAt = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.Sessions.TransitionState(dbc.Ctx, dbc.Tx, in.SessionID,
			types.SessionPending, types.SessionConsumed,
			map[string]any{"consumed_at": signedAt})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "session already consumed"); err != nil {
			return err
		}

		c, err := a.deps.Contracts.GetByID(dbc.Ctx, dbc.Tx, in.ContractID)
		if err != nil {
			return err
		}

		record := &types.SignatureRecord{
			ContractID:  in.ContractID,
			SignerID:    in.SignerID,
			Role:        in.Role,
			SessionID:   in.SessionID,
			ImageKey:    in.ImageKey,
			ImageHash:   in.ImageHash,
			ContentHash: in.ContentHash,
			Evidence:    datatypes.JSON(in.Evidence),
		}
		if _, err := a.deps.Signatures.Create(dbc.Ctx, dbc.Tx, record); err != nil {
			return err
		}

		count, err := a.deps.Signatures.CountByContract(dbc.Ctx, dbc.Tx, in.ContractID)
		if err != nil {
			return err
		}
		fully := count >= int64(len(types.RequiredRoles()))

		target := types.StatusPartiallySigned
		if fully {
			target = types.StatusActive
		}
		if !types.CanTransition(c.Status, target) {
			return InvariantError(fmt.Sprintf("cannot transition %q -> %q", c.Status, target))
		}

		updates := map[string]any{"status": target}
		if fully {
			updates["signed_at"] = signedAt
		}
		ok, err = a.deps.Contracts.UpdateStatusGuarded(dbc.Ctx, dbc.Tx, c.ID, []types.Status{c.Status}, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "contract status changed concurrently"); err != nil {
			return err
		}

		if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditSessionConsumed, map[string]any{
			"session_id": in.SessionID,
			"signer_id":  in.SignerID,
		}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditSignatureRecorded, map[string]any{
			"signature_id": record.ID,
			"role":         in.Role,
			"image_hash":   in.ImageHash,
			"content_hash": in.ContentHash,
		}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, c.ID, in.Actor, types.AuditContractTransition, map[string]any{
			"from": c.Status,
			"to":   target,
		}); err != nil {
			return err
		}

		out = domainagg.CompleteSigningResult{
			SignatureID:    record.ID,
			ContractStatus: target,
			FullySigned:    fully,
			ConsumedAt:     signedAt,
		}
		return nil
	})
	return out, err
}

func (a *signingAggregate) requireRepos(op string) error {
	if a.deps.Contracts == nil || a.deps.Sessions == nil || a.deps.Signatures == nil || a.deps.Audit == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "signing aggregate repos not configured", nil)
	}
	return nil
}

func (a *signingAggregate) appendAudit(dbc dbctx.Context, contractID uuid.UUID, actor domainagg.ActorMeta, action string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = a.deps.Audit.Append(dbc.Ctx, dbc.Tx, &types.AuditEntry{
		ContractID: contractID,
		ActorID:    actor.ActorID,
		Action:     action,
		Details:    datatypes.JSON(payload),
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	})
	return err
}
