package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`

	// Compliance carries the full statutory report when a request was
	// rejected by validation.
	Compliance any `json:"compliance,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the signing domain errors onto HTTP semantics:
// not-found 404, state conflicts 409, bad codes and exhausted budgets 422,
// compliance rejections 422 with the report attached, everything else 500.
func RespondDomainError(c *gin.Context, err error) {
	var ce *services.ComplianceError
	if errors.As(err, &ce) {
		c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{
			Error:      APIError{Message: ce.Error(), Code: "compliance_failed"},
			Compliance: ce.Report,
		})
		return
	}

	switch {
	case errors.Is(err, types.ErrContractNotFound),
		errors.Is(err, types.ErrSessionNotFound),
		errors.Is(err, types.ErrArtifactNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrInvalidStateTransition):
		RespondError(c, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, types.ErrAlreadySigned),
		errors.Is(err, types.ErrSessionConsumed),
		errors.Is(err, types.ErrConcurrencyConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	case errors.Is(err, types.ErrSessionExpired):
		RespondError(c, http.StatusGone, "session_expired", err)
	case errors.Is(err, types.ErrInvalidCode):
		RespondError(c, http.StatusUnprocessableEntity, "invalid_code", err)
	case errors.Is(err, types.ErrMaxAttemptsExceeded):
		RespondError(c, http.StatusUnprocessableEntity, "max_attempts", err)
	case errors.Is(err, types.ErrNotAParty):
		RespondError(c, http.StatusForbidden, "not_a_party", err)
	case errors.Is(err, services.ErrSignatureRequirements):
		RespondError(c, http.StatusUnprocessableEntity, "signature_requirements", err)
	case errors.Is(err, types.ErrIntegrityMismatch):
		RespondError(c, http.StatusConflict, "integrity_mismatch", err)
	case errors.Is(err, types.ErrRenderTimeout):
		RespondError(c, http.StatusGatewayTimeout, "render_timeout", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
