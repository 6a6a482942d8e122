package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/rentline-backend/internal/audit"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/requestdata"
	"github.com/yungbote/rentline-backend/internal/services"
)

type ContractHandler struct {
	contracts *services.ContractService
	trail     *audit.Trail
}

func NewContractHandler(contracts *services.ContractService, trail *audit.Trail) *ContractHandler {
	return &ContractHandler{contracts: contracts, trail: trail}
}

// actorMeta lifts the request context into the audit attribution every write
// records.
func actorMeta(c *gin.Context) domainagg.ActorMeta {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		return domainagg.ActorMeta{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
	}
	return domainagg.ActorMeta{
		ActorID:   rd.ActorID,
		RequestID: rd.RequestID,
		IP:        rd.IP,
		UserAgent: rd.UserAgent,
	}
}

type createContractRequest struct {
	Title       string               `json:"title" binding:"required"`
	LandlordID  uuid.UUID            `json:"landlord_id" binding:"required"`
	TenantID    uuid.UUID            `json:"tenant_id" binding:"required"`
	PropertyRef string               `json:"property_ref" binding:"required"`
	Terms       types.FinancialTerms `json:"financial_terms"`
	StartDate   time.Time            `json:"start_date" binding:"required"`
	EndDate     time.Time            `json:"end_date" binding:"required"`
}

func (ch *ContractHandler) Create(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	contract, err := ch.contracts.CreateDraft(c.Request.Context(), services.CreateDraftInput{
		Title:       req.Title,
		LandlordID:  req.LandlordID,
		TenantID:    req.TenantID,
		PropertyRef: req.PropertyRef,
		Terms:       req.Terms,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Actor:       actorMeta(c),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contract": contract})
}

func (ch *ContractHandler) Get(c *gin.Context) {
	contract, err := ch.contracts.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contract": contract})
}

func (ch *ContractHandler) Compliance(c *gin.Context) {
	report, err := ch.contracts.ComplianceReport(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

type transitionRequest struct {
	Operation string `json:"operation" binding:"required"`
	Reason    string `json:"reason"`
}

// Transition applies one named lifecycle operation. Unknown operations are
// rejected before the contract is even loaded.
func (ch *ContractHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	ctx := c.Request.Context()
	code := c.Param("code")
	actor := actorMeta(c)

	var (
		contract *types.Contract
		err      error
	)
	switch req.Operation {
	case "initiate_signing":
		contract, err = ch.contracts.InitiateSigning(ctx, code, actor)
	case "suspend":
		contract, err = ch.contracts.Suspend(ctx, code, req.Reason, actor)
	case "resume":
		contract, err = ch.contracts.Resume(ctx, code, req.Reason, actor)
	case "terminate":
		contract, err = ch.contracts.Terminate(ctx, code, req.Reason, actor)
	case "mark_expired":
		contract, err = ch.contracts.MarkExpired(ctx, code, actor)
	case "mark_breached":
		contract, err = ch.contracts.MarkBreached(ctx, code, req.Reason, actor)
	case "request_renewal":
		contract, err = ch.contracts.RequestRenewal(ctx, code, actor)
	case "renew":
		contract, err = ch.contracts.Renew(ctx, code, actor)
	case "activate":
		contract, err = ch.contracts.Activate(ctx, code, actor)
	default:
		RespondError(c, http.StatusBadRequest, "unknown_operation", nil)
		return
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contract": contract})
}

func (ch *ContractHandler) AuditTrail(c *gin.Context) {
	entries, err := ch.trail.ListByContractCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}
