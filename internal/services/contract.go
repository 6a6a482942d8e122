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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/compliance"
	"github.com/yungbote/rentline-backend/internal/data/aggregates"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/dbctx"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/render"
)

// ComplianceError carries a failed statutory report to the transport layer.
// The report itself is returned, never persisted.
type ComplianceError struct {
	Report compliance.Report
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("contract fails statutory validation: %s", strings.Join(e.Report.Errors, "; "))
}

// ContractService owns the contract lifecycle outside of signing: draft
// creation with statutory validation, lookup, and the explicit status
// transitions (suspend, terminate, renewal, and the rest).
type ContractService struct {
	log       *logger.Logger
	contracts repos.ContractRepo
	audit     repos.AuditEntryRepo
	runner    aggregates.TxRunner
	directory PartyDirectory
	announcer AuditAnnouncer
	metrics   *observability.Metrics
}

func NewContractService(
	log *logger.Logger,
	contracts repos.ContractRepo,
	audit repos.AuditEntryRepo,
	runner aggregates.TxRunner,
	directory PartyDirectory,
	announcer AuditAnnouncer,
	metrics *observability.Metrics,
) *ContractService {
	return &ContractService{
		log:       log.With("service", "ContractService"),
		contracts: contracts,
		audit:     audit,
		runner:    runner,
		directory: directory,
		announcer: announcer,
		metrics:   metrics,
	}
}

type CreateDraftInput struct {
	Title       string
	LandlordID  uuid.UUID
	TenantID    uuid.UUID
	PropertyRef string

	Terms     types.FinancialTerms
	StartDate time.Time
	EndDate   time.Time

	Actor domainagg.ActorMeta
}

// CreateDraft validates the statutory conditions against the resolved party
// identities and persists the draft. An invalid draft is rejected with the
// full compliance report; nothing is written.
func (s *ContractService) CreateDraft(ctx context.Context, in CreateDraftInput) (*types.Contract, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.LandlordID == uuid.Nil || in.TenantID == uuid.Nil {
		return nil, fmt.Errorf("both parties are required")
	}
	if in.LandlordID == in.TenantID {
		return nil, fmt.Errorf("landlord and tenant must be distinct")
	}
	if strings.TrimSpace(in.PropertyRef) == "" {
		return nil, fmt.Errorf("property reference is required")
	}

	landlord, tenant, property, err := s.resolveParties(ctx, in.LandlordID, in.TenantID, in.PropertyRef)
	if err != nil {
		return nil, err
	}

	report := compliance.ValidateLegalRequirements(compliance.ContractData{
		Title:         in.Title,
		PropertyRef:   in.PropertyRef,
		Purpose:       property.Purpose,
		Landlord:      landlord.ComplianceParty(),
		Tenant:        tenant.ComplianceParty(),
		MonthlyRent:   in.Terms.MonthlyRent,
		DepositAmount: in.Terms.DepositAmount,
		Currency:      in.Terms.Currency,
		PaymentDay:    in.Terms.PaymentDay,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
	})
	if !report.IsValid {
		s.recordComplianceFailure(report)
		s.log.Warn("draft rejected by statutory validation", "property_ref", in.PropertyRef, "errors", report.Errors)
		return nil, &ComplianceError{Report: report}
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	contract := &types.Contract{
		Code:           code,
		Title:          strings.TrimSpace(in.Title),
		Status:         types.StatusDraft,
		LandlordID:     in.LandlordID,
		TenantID:       in.TenantID,
		PropertyRef:    strings.TrimSpace(in.PropertyRef),
		FinancialTerms: datatypes.NewJSONType(in.Terms),
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
	}

	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.contracts.Create(dbc.Ctx, dbc.Tx, []*types.Contract{contract}); err != nil {
			return err
		}
		return s.appendAudit(dbc, contract.ID, in.Actor, types.AuditContractCreated, map[string]any{
			"code":         contract.Code,
			"property_ref": contract.PropertyRef,
			"warnings":     report.Warnings,
		})
	})
	if err != nil {
		return nil, err
	}
	announce(s.announcer, ctx, contract, in.Actor, types.AuditContractCreated)
	return contract, nil
}

func (s *ContractService) GetByCode(ctx context.Context, code string) (*types.Contract, error) {
	c, err := s.contracts.GetByCode(ctx, nil, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ComplianceReport re-runs the statutory checks against the current contract
// snapshot and resolved identities.
func (s *ContractService) ComplianceReport(ctx context.Context, code string) (*compliance.Report, error) {
	c, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	landlord, tenant, property, err := s.resolveParties(ctx, c.LandlordID, c.TenantID, c.PropertyRef)
	if err != nil {
		return nil, err
	}
	report := legalReport(c, landlord, tenant, property)
	if !report.IsValid {
		s.recordComplianceFailure(report)
	}
	return &report, nil
}

// legalReport runs the statutory checks against a stored contract and its
// freshly resolved identities. Party records are mutable upstream, so every
// gate that depends on them revalidates rather than trusting the draft-time
// result.
func legalReport(c *types.Contract, landlord, tenant *PartyProfile, property *PropertyInfo) compliance.Report {
	terms := c.FinancialTerms.Data()
	return compliance.ValidateLegalRequirements(compliance.ContractData{
		Title:         c.Title,
		PropertyRef:   c.PropertyRef,
		Purpose:       property.Purpose,
		Landlord:      landlord.ComplianceParty(),
		Tenant:        tenant.ComplianceParty(),
		MonthlyRent:   terms.MonthlyRent,
		DepositAmount: terms.DepositAmount,
		Currency:      terms.Currency,
		PaymentDay:    terms.PaymentDay,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
	})
}

// Lifecycle operations. Each is a guarded edge of the transition table; a
// disallowed edge fails without touching the row.

func (s *ContractService) InitiateSigning(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusPendingSignature, "signing initiated", actor)
}

func (s *ContractService) Suspend(ctx context.Context, code, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusSuspended, reason, actor)
}

func (s *ContractService) Resume(ctx context.Context, code, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusActive, reason, actor)
}

func (s *ContractService) Terminate(ctx context.Context, code, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusTerminated, reason, actor)
}

func (s *ContractService) MarkExpired(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusExpired, "term ended", actor)
}

func (s *ContractService) MarkBreached(ctx context.Context, code, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusBreached, reason, actor)
}

func (s *ContractService) RequestRenewal(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusPendingRenewal, "renewal requested", actor)
}

// Renew accepts a pending renewal. The renewed contract returns to active
// via Activate once the new term starts.
func (s *ContractService) Renew(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusRenewed, "renewal accepted", actor)
}

func (s *ContractService) Activate(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Contract, error) {
	return s.transition(ctx, code, types.StatusActive, "renewed term started", actor)
}

// Transition applies an arbitrary target status, used by the generic
// transitions endpoint. The named operations above are the preferred entry
// points.
func (s *ContractService) Transition(ctx context.Context, code string, target types.Status, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	if !target.Valid() {
		return nil, types.ErrInvalidStateTransition
	}
	return s.transition(ctx, code, target, reason, actor)
}

func (s *ContractService) transition(ctx context.Context, code string, target types.Status, reason string, actor domainagg.ActorMeta) (*types.Contract, error) {
	c, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	from := c.Status
	if !types.CanTransition(from, target) {
		return nil, types.ErrInvalidStateTransition
	}

	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		ok, err := s.contracts.UpdateStatusGuarded(dbc.Ctx, dbc.Tx, c.ID,
			[]types.Status{from},
			map[string]any{"status": target})
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrConcurrencyConflict
		}
		return s.appendAudit(dbc, c.ID, actor, types.AuditContractTransition, map[string]any{
			"from":   from,
			"to":     target,
			"reason": strings.TrimSpace(reason),
		})
	})
	if err != nil {
		return nil, err
	}

	c.Status = target
	announce(s.announcer, ctx, c, actor, types.AuditContractTransition)
	s.log.Info("contract transition applied", "code", c.Code, "from", from, "to", target)
	return c, nil
}

func (s *ContractService) resolveParties(ctx context.Context, landlordID, tenantID uuid.UUID, propertyRef string) (*PartyProfile, *PartyProfile, *PropertyInfo, error) {
	landlord, err := s.directory.GetParty(ctx, landlordID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve landlord: %w", err)
	}
	tenant, err := s.directory.GetParty(ctx, tenantID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve tenant: %w", err)
	}
	property, err := s.directory.GetProperty(ctx, propertyRef)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve property: %w", err)
	}
	return landlord, tenant, property, nil
}

func (s *ContractService) recordComplianceFailure(report compliance.Report) {
	incComplianceFlags(s.metrics, report)
}

func incComplianceFlags(m *observability.Metrics, report compliance.Report) {
	if m == nil {
		return
	}
	if !report.Flags.RequiredElements {
		m.IncComplianceFailure("required_elements")
	}
	if !report.Flags.LegalCapacity {
		m.IncComplianceFailure("legal_capacity")
	}
	if !report.Flags.Voluntariness {
		m.IncComplianceFailure("voluntariness")
	}
	if !report.Flags.LawfulPurpose {
		m.IncComplianceFailure("lawful_purpose")
	}
	if !report.Flags.CorrectForm {
		m.IncComplianceFailure("correct_form")
	}
}

// generateCode issues HD-{year}-{6 digits}, retrying on the rare collision.
func (s *ContractService) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return "", fmt.Errorf("generate contract code: %w", err)
		}
		code := fmt.Sprintf("HD-%d-%06d", time.Now().UTC().Year(), n.Int64())
		exists, err := s.contracts.CodeExists(ctx, nil, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique contract code")
}

func (s *ContractService) appendAudit(dbc dbctx.Context, contractID uuid.UUID, actor domainagg.ActorMeta, action string, details map[string]any) error {
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

// buildRenderInput assembles the renderer snapshot for a contract from its
// stored terms plus resolved identities. Signature slots are appended by the
// caller.
func buildRenderInput(c *types.Contract, landlord, tenant *PartyProfile, property *PropertyInfo) render.ContractInput {
	terms := c.FinancialTerms.Data()
	return render.ContractInput{
		Code:             c.Code,
		Title:            c.Title,
		LandlordName:     landlord.FullName,
		LandlordIDNumber: landlord.IDNumber,
		TenantName:       tenant.FullName,
		TenantIDNumber:   tenant.IDNumber,
		PropertyRef:      c.PropertyRef,
		PropertyAddress:  property.Address,
		MonthlyRent:      terms.MonthlyRent,
		DepositAmount:    terms.DepositAmount,
		Currency:         terms.Currency,
		PaymentDay:       terms.PaymentDay,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		HouseRules:       property.HouseRules,
	}
}
