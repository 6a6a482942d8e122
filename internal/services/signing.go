package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/artifacts"
	"github.com/yungbote/rentline-backend/internal/compliance"
	"github.com/yungbote/rentline-backend/internal/config"
	"github.com/yungbote/rentline-backend/internal/data/aggregates"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/evidence"
	"github.com/yungbote/rentline-backend/internal/messaging"
	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/dbctx"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/render"
)

// ErrSignatureRequirements rejects a verified code whose resulting evidence
// bundle does not satisfy the electronic-signature conditions. The session is
// consumed only on success, so the signer can retry with a fresh session.
var ErrSignatureRequirements = errors.New("electronic signature requirements not satisfied")

// SigningService runs the OTP signing flow: session creation with code
// dispatch, and verification that ends in an atomically recorded signature.
type SigningService struct {
	log        *logger.Logger
	cfg        config.SigningConfig
	contracts  repos.ContractRepo
	sessions   repos.SigningSessionRepo
	signatures repos.SignatureRecordRepo
	audit      repos.AuditEntryRepo
	runner     aggregates.TxRunner
	agg        domainagg.SigningAggregate
	sender     messaging.CodeSender
	directory  PartyDirectory
	captures   *artifacts.LocalStore
	announcer  AuditAnnouncer
	metrics    *observability.Metrics
}

type SigningServiceDeps struct {
	Log        *logger.Logger
	Cfg        config.SigningConfig
	Contracts  repos.ContractRepo
	Sessions   repos.SigningSessionRepo
	Signatures repos.SignatureRecordRepo
	Audit      repos.AuditEntryRepo
	Runner     aggregates.TxRunner
	Aggregate  domainagg.SigningAggregate
	Sender     messaging.CodeSender
	Directory  PartyDirectory
	Captures   *artifacts.LocalStore
	Announcer  AuditAnnouncer
	Metrics    *observability.Metrics
}

func NewSigningService(deps SigningServiceDeps) (*SigningService, error) {
	if deps.Contracts == nil || deps.Sessions == nil || deps.Signatures == nil || deps.Audit == nil {
		return nil, fmt.Errorf("signing service repos are required")
	}
	if deps.Aggregate == nil || deps.Runner == nil {
		return nil, fmt.Errorf("signing aggregate and tx runner are required")
	}
	if deps.Sender == nil || deps.Directory == nil || deps.Captures == nil {
		return nil, fmt.Errorf("signing service collaborators are required")
	}
	cfg := deps.Cfg
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = types.SessionTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = types.SessionMaxAttempts
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = types.CodeLength
	}
	return &SigningService{
		log:        deps.Log.With("service", "SigningService"),
		cfg:        cfg,
		contracts:  deps.Contracts,
		sessions:   deps.Sessions,
		signatures: deps.Signatures,
		audit:      deps.Audit,
		runner:     deps.Runner,
		agg:        deps.Aggregate,
		sender:     deps.Sender,
		directory:  deps.Directory,
		captures:   deps.Captures,
		announcer:  deps.Announcer,
		metrics:    deps.Metrics,
	}, nil
}

type CreateSessionInput struct {
	ContractCode string
	SignerID     uuid.UUID
	Channel      types.Channel
	Actor        domainagg.ActorMeta
}

type CreateSessionResult struct {
	SessionID      uuid.UUID     `json:"session_id"`
	ContractStatus types.Status  `json:"contract_status"`
	Channel        types.Channel `json:"channel"`
	MaskedTarget   string        `json:"masked_target"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Superseded     int64         `json:"superseded"`
	Dispatched     bool          `json:"dispatched"`
}

// CreateSession opens one signing session for a contract party: any previous
// pending session for the pair is superseded in the same transaction, and the
// code is dispatched after commit. Dispatch failure does not void the
// session; it is recorded on the row and audited.
func (s *SigningService) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResult, error) {
	if !in.Channel.Valid() {
		return nil, fmt.Errorf("invalid channel %q", in.Channel)
	}

	c, err := s.contracts.GetByCode(ctx, nil, in.ContractCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}

	role, ok := c.SignerRole(in.SignerID)
	if !ok {
		return nil, types.ErrNotAParty
	}
	if !c.Status.Signable() {
		return nil, types.ErrInvalidStateTransition
	}
	if _, err := s.signatures.GetBySlot(ctx, nil, c.ID, role); err == nil {
		return nil, types.ErrAlreadySigned
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile, err := s.directory.GetParty(ctx, in.SignerID)
	if err != nil {
		return nil, fmt.Errorf("resolve signer: %w", err)
	}
	target := profile.ChannelTargetFor(string(in.Channel))
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("signer has no %s target on file", in.Channel)
	}

	code, err := generateOTP(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash signing code: %w", err)
	}

	opened, err := s.agg.OpenSession(ctx, domainagg.OpenSessionInput{
		ContractID:    c.ID,
		SignerID:      in.SignerID,
		Role:          role,
		Channel:       in.Channel,
		ChannelTarget: target,
		CodeHash:      string(hash),
		ExpiresAt:     time.Now().UTC().Add(s.cfg.SessionTTL),
		Actor:         in.Actor,
	})
	if err != nil {
		return nil, mapAggregateError(err)
	}
	if s.metrics != nil {
		s.metrics.IncSessionOpened(string(in.Channel))
	}
	announce(s.announcer, ctx, c, in.Actor, types.AuditSessionCreated)

	dispatched := s.dispatchCode(ctx, c, opened.SessionID, in.Channel, target, code, in.Actor)

	s.log.Info("signing session opened",
		"contract_code", c.Code, "session_id", opened.SessionID,
		"role", role, "channel", in.Channel,
		"target", evidence.MaskTarget(target), "superseded", opened.Superseded)

	return &CreateSessionResult{
		SessionID:      opened.SessionID,
		ContractStatus: opened.ContractStatus,
		Channel:        in.Channel,
		MaskedTarget:   evidence.MaskTarget(target),
		ExpiresAt:      opened.ExpiresAt,
		Superseded:     opened.Superseded,
		Dispatched:     dispatched,
	}, nil
}

// dispatchCode delivers the code best-effort after the session committed.
// The code itself never reaches a log line or an audit entry.
func (s *SigningService) dispatchCode(ctx context.Context, c *types.Contract, sessionID uuid.UUID, channel types.Channel, target, code string, actor domainagg.ActorMeta) bool {
	sendErr := s.sender.SendCode(ctx, channel, target, messaging.CodeMessage{
		ContractCode:  c.Code,
		ContractTitle: c.Title,
		Code:          code,
		TTLMinutes:    int(s.cfg.SessionTTL.Minutes()),
	})

	now := time.Now().UTC()
	errStr := ""
	action := types.AuditSessionDispatched
	status := "sent"
	if sendErr != nil {
		errStr = sendErr.Error()
		action = types.AuditSessionDispatchErr
		status = "failed"
	}
	if err := s.sessions.RecordDispatch(ctx, nil, sessionID, now, errStr); err != nil {
		s.log.Warn("failed to record dispatch outcome", "session_id", sessionID, "error", err)
	}
	if err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		return s.appendAudit(dbc, c.ID, actor, action, map[string]any{
			"session_id": sessionID,
			"channel":    channel,
			"target":     evidence.MaskTarget(target),
			"error":      errStr,
		})
	}); err != nil {
		s.log.Warn("failed to audit dispatch outcome", "session_id", sessionID, "error", err)
	}
	announce(s.announcer, ctx, c, actor, action)
	if s.metrics != nil {
		s.metrics.IncCodeDispatch(string(channel), status)
	}
	if sendErr != nil {
		s.log.Warn("code dispatch failed; session stands",
			"session_id", sessionID, "channel", channel,
			"target", evidence.MaskTarget(target), "error", sendErr)
		return false
	}
	return true
}

type CaptureInput struct {
	ImagePNG    []byte
	StrokeCount int
	DurationMs  int
	Width       int
	Height      int
}

type VerifyInput struct {
	SessionID uuid.UUID
	SignerID  uuid.UUID
	Code      string
	Capture   CaptureInput
	Request   evidence.RequestFacts
	Actor     domainagg.ActorMeta
}

type VerifyResult struct {
	SignatureID       uuid.UUID    `json:"signature_id"`
	ContractStatus    types.Status `json:"contract_status"`
	FullySigned       bool         `json:"fully_signed"`
	SignedAt          time.Time    `json:"signed_at"`
	RiskScore         int          `json:"risk_score"`
	RemainingAttempts int          `json:"remaining_attempts"`
}

// VerifyAndSign checks one code attempt and, on a match, records the
// signature atomically. The attempt increment is guarded in SQL so a burst of
// wrong codes can never overrun the budget, and session consumption is a
// compare-and-set so exactly one concurrent correct attempt wins.
func (s *SigningService) VerifyAndSign(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	ctx, span := otel.Tracer("rentline/signing").Start(ctx, "signing.verify_and_sign")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", in.SessionID.String()))

	res, err := s.verifyAndSign(ctx, in)
	if s.metrics != nil {
		s.metrics.IncVerifyOutcome(verifyOutcome(err))
	}
	return res, err
}

func (s *SigningService) verifyAndSign(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	session, err := s.sessions.GetByID(ctx, nil, in.SessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.SignerID != in.SignerID {
		return nil, types.ErrNotAParty
	}
	if session.State.Terminal() {
		return nil, terminalStateError(session.State)
	}

	now := time.Now().UTC()
	if session.ExpiredAt(now) {
		if _, err := s.agg.ExpireSession(ctx, domainagg.CloseSessionInput{
			SessionID:  session.ID,
			ContractID: session.ContractID,
			Reason:     "code expired before verification",
			Actor:      in.Actor,
		}); err != nil && !domainagg.IsCode(err, domainagg.CodeConflict) {
			s.log.Warn("failed to expire session", "session_id", session.ID, "error", err)
		}
		return nil, types.ErrSessionExpired
	}

	ok, err := s.sessions.IncrementAttempt(ctx, nil, session.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The guard lost: the session went terminal or ran out of attempts
		// under us. Re-read to tell which.
		fresh, err := s.sessions.GetByID(ctx, nil, session.ID)
		if err != nil {
			return nil, err
		}
		if fresh.State.Terminal() {
			return nil, terminalStateError(fresh.State)
		}
		if _, err := s.agg.FailSession(ctx, domainagg.CloseSessionInput{
			SessionID:  session.ID,
			ContractID: session.ContractID,
			Reason:     "attempt budget exhausted",
			Actor:      in.Actor,
		}); err != nil && !domainagg.IsCode(err, domainagg.CodeConflict) {
			s.log.Warn("failed to close exhausted session", "session_id", session.ID, "error", err)
		}
		return nil, types.ErrMaxAttemptsExceeded
	}
	attemptsUsed := session.Attempts + 1

	if bcrypt.CompareHashAndPassword([]byte(session.CodeHash), []byte(in.Code)) != nil {
		if attemptsUsed >= session.MaxAttempts {
			if _, err := s.agg.FailSession(ctx, domainagg.CloseSessionInput{
				SessionID:  session.ID,
				ContractID: session.ContractID,
				Reason:     "attempt budget exhausted",
				Actor:      in.Actor,
			}); err != nil && !domainagg.IsCode(err, domainagg.CodeConflict) {
				s.log.Warn("failed to close exhausted session", "session_id", session.ID, "error", err)
			}
			return nil, types.ErrMaxAttemptsExceeded
		}
		return nil, fmt.Errorf("%w: %d attempts remaining", types.ErrInvalidCode, session.MaxAttempts-attemptsUsed)
	}

	return s.recordSignature(ctx, session, in, attemptsUsed, now)
}

// recordSignature runs once per session: the code matched, so build the
// evidence bundle, gate it through the signature requirements, persist the
// capture, and complete the signing transaction.
func (s *SigningService) recordSignature(ctx context.Context, session *types.SigningSession, in VerifyInput, attemptsUsed int, verifiedAt time.Time) (*VerifyResult, error) {
	c, err := s.contracts.GetByID(ctx, nil, session.ContractID)
	if err != nil {
		return nil, err
	}
	role, ok := c.SignerRole(session.SignerID)
	if !ok {
		return nil, types.ErrNotAParty
	}

	landlord, err := s.directory.GetParty(ctx, c.LandlordID)
	if err != nil {
		return nil, fmt.Errorf("resolve landlord: %w", err)
	}
	tenant, err := s.directory.GetParty(ctx, c.TenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	property, err := s.directory.GetProperty(ctx, c.PropertyRef)
	if err != nil {
		return nil, fmt.Errorf("resolve property: %w", err)
	}
	signer := landlord
	if role == types.RoleTenant {
		signer = tenant
	}

	// Party records are mutable between draft and signing, so the statutory
	// conditions are re-checked here: a contract can never reach active on a
	// stale draft-time validation. The session is not consumed on rejection.
	if report := legalReport(c, landlord, tenant, property); !report.IsValid {
		incComplianceFlags(s.metrics, report)
		if err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
			return s.appendAudit(dbc, c.ID, in.Actor, types.AuditComplianceFailed, map[string]any{
				"session_id": session.ID,
				"reason":     "statutory conditions failed at signing",
				"errors":     report.Errors,
			})
		}); err != nil {
			s.log.Warn("failed to audit compliance rejection", "session_id", session.ID, "error", err)
		}
		announce(s.announcer, ctx, c, in.Actor, types.AuditComplianceFailed)
		s.log.Warn("signing rejected by statutory validation",
			"contract_code", c.Code, "session_id", session.ID, "errors", report.Errors)
		return nil, &ComplianceError{Report: report}
	}

	// The content hash binds the signature to the contract terms as they
	// stood at signing time, independent of signature order.
	contentHash, err := render.ContentHash(render.BuildContent(buildRenderInput(c, landlord, tenant, property)))
	if err != nil {
		return nil, err
	}

	codeSentAt := session.CreatedAt
	if session.DispatchedAt != nil {
		codeSentAt = *session.DispatchedAt
	}
	bundle, auth, err := evidence.Build(evidence.BuildInput{
		Signer: signer.SignerIdentity(),
		Session: evidence.SessionFacts{
			Channel:       string(session.Channel),
			ChannelTarget: session.ChannelTarget,
			CreatedAt:     session.CreatedAt,
			CodeSentAt:    codeSentAt,
			VerifiedAt:    verifiedAt,
			AttemptsUsed:  attemptsUsed,
			MaxAttempts:   session.MaxAttempts,
		},
		Request: in.Request,
		Capture: evidence.CaptureFacts{
			ImageBytes:  in.Capture.ImagePNG,
			StrokeCount: in.Capture.StrokeCount,
			DurationMs:  in.Capture.DurationMs,
			Width:       in.Capture.Width,
			Height:      in.Capture.Height,
		},
		ContentHash: contentHash,
		SignedAt:    verifiedAt,
	})
	if err != nil {
		return nil, err
	}

	if !compliance.ValidateElectronicSignature(bundle) {
		return nil, s.rejectBundle(ctx, c, session, in.Actor, "electronic signature conditions failed", nil)
	}
	if missing := compliance.ValidateMetadata(bundle); len(missing) > 0 {
		return nil, s.rejectBundle(ctx, c, session, in.Actor, "evidence metadata incomplete", missing)
	}

	imageKey := fmt.Sprintf("captures/%s/%s.png", c.Code, bundle.Integrity.ImageHash)
	if err := s.captures.Write(imageKey, in.Capture.ImagePNG); err != nil {
		return nil, fmt.Errorf("persist signature capture: %w", err)
	}

	payload, err := json.Marshal(struct {
		evidence.Bundle
		Authentication evidence.AuthenticationData `json:"authentication_data"`
	}{Bundle: bundle, Authentication: auth})
	if err != nil {
		return nil, err
	}

	done, err := s.agg.CompleteSigning(ctx, domainagg.CompleteSigningInput{
		SessionID:   session.ID,
		ContractID:  c.ID,
		SignerID:    session.SignerID,
		Role:        role,
		ImageKey:    imageKey,
		ImageHash:   bundle.Integrity.ImageHash,
		ContentHash: contentHash,
		Evidence:    payload,
		SignedAt:    verifiedAt,
		Actor:       in.Actor,
	})
	if err != nil {
		// A CAS loss here usually means a concurrent attempt with the same
		// code already consumed the session; report that precisely.
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			if fresh, rerr := s.sessions.GetByID(ctx, nil, session.ID); rerr == nil && fresh.State == types.SessionConsumed {
				return nil, types.ErrSessionConsumed
			}
		}
		return nil, mapAggregateError(err)
	}
	announce(s.announcer, ctx, c, in.Actor, types.AuditSignatureRecorded)
	if done.FullySigned {
		announce(s.announcer, ctx, c, in.Actor, types.AuditContractTransition)
	}

	s.log.Info("signature recorded",
		"contract_code", c.Code, "session_id", session.ID, "role", role,
		"fully_signed", done.FullySigned, "risk_score", auth.RiskScore)

	return &VerifyResult{
		SignatureID:       done.SignatureID,
		ContractStatus:    done.ContractStatus,
		FullySigned:       done.FullySigned,
		SignedAt:          done.ConsumedAt,
		RiskScore:         auth.RiskScore,
		RemainingAttempts: session.MaxAttempts - attemptsUsed,
	}, nil
}

// rejectBundle audits a compliance rejection without consuming the session.
func (s *SigningService) rejectBundle(ctx context.Context, c *types.Contract, session *types.SigningSession, actor domainagg.ActorMeta, reason string, missing []string) error {
	if s.metrics != nil {
		s.metrics.IncComplianceFailure("electronic_signature")
	}
	if err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		return s.appendAudit(dbc, c.ID, actor, types.AuditComplianceFailed, map[string]any{
			"session_id": session.ID,
			"reason":     reason,
			"missing":    missing,
		})
	}); err != nil {
		s.log.Warn("failed to audit compliance rejection", "session_id", session.ID, "error", err)
	}
	announce(s.announcer, ctx, c, actor, types.AuditComplianceFailed)
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSignatureRequirements, strings.Join(missing, ", "))
	}
	return ErrSignatureRequirements
}

func (s *SigningService) appendAudit(dbc dbctx.Context, contractID uuid.UUID, actor domainagg.ActorMeta, action string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = s.audit.Append(dbc.Ctx, dbc.Tx, &types.AuditEntry{
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

func terminalStateError(state types.SessionState) error {
	switch state {
	case types.SessionConsumed:
		return types.ErrSessionConsumed
	case types.SessionFailed:
		return types.ErrMaxAttemptsExceeded
	default:
		return types.ErrSessionExpired
	}
}

// mapAggregateError translates aggregate failure codes into the domain
// errors the transport layer understands.
func mapAggregateError(err error) error {
	if err == nil {
		return nil
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeNotFound:
		return types.ErrContractNotFound
	case domainagg.CodeConflict:
		return fmt.Errorf("%w: %v", types.ErrConcurrencyConflict, err)
	case domainagg.CodeInvariantViolation:
		return fmt.Errorf("%w: %v", types.ErrInvalidStateTransition, err)
	default:
		return err
	}
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "signed"
	case errors.Is(err, types.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, types.ErrSessionExpired):
		return "expired"
	case errors.Is(err, types.ErrSessionConsumed):
		return "consumed"
	case errors.Is(err, types.ErrMaxAttemptsExceeded):
		return "max_attempts"
	default:
		return "error"
	}
}

// generateOTP draws a numeric code of the given length from crypto/rand.
func generateOTP(length int) (string, error) {
	if length <= 0 {
		length = types.CodeLength
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate signing code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
