package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/evidence"
	"github.com/yungbote/rentline-backend/internal/requestdata"
	"github.com/yungbote/rentline-backend/internal/services"
)

type SigningHandler struct {
	signing *services.SigningService
}

func NewSigningHandler(signing *services.SigningService) *SigningHandler {
	return &SigningHandler{signing: signing}
}

type createSessionRequest struct {
	SignerID uuid.UUID     `json:"signer_id" binding:"required"`
	Channel  types.Channel `json:"channel" binding:"required"`
}

func (sh *SigningHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := sh.signing.CreateSession(c.Request.Context(), services.CreateSessionInput{
		ContractCode: c.Param("code"),
		SignerID:     req.SignerID,
		Channel:      req.Channel,
		Actor:        actorMeta(c),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": res})
}

type verifyRequest struct {
	SignerID uuid.UUID `json:"signer_id" binding:"required"`
	Code     string    `json:"code" binding:"required"`

	// SignatureImage is the base64 PNG of the signer's canvas capture.
	SignatureImage string `json:"signature_image" binding:"required"`
	StrokeCount    int    `json:"stroke_count"`
	DurationMs     int    `json:"duration_ms"`
	ImageWidth     int    `json:"image_width"`
	ImageHeight    int    `json:"image_height"`

	Timezone     string `json:"timezone"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	NewDevice    bool   `json:"new_device"`
}

func (sh *SigningHandler) Verify(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	imagePNG, err := base64.StdEncoding.DecodeString(req.SignatureImage)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_signature_image", err)
		return
	}

	facts := evidence.RequestFacts{
		IP:           c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Timezone:     req.Timezone,
		ScreenWidth:  req.ScreenWidth,
		ScreenHeight: req.ScreenHeight,
		NewDevice:    req.NewDevice,
	}
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		facts.ApproxLocation = rd.ApproxLocation
	}

	res, err := sh.signing.VerifyAndSign(c.Request.Context(), services.VerifyInput{
		SessionID: sessionID,
		SignerID:  req.SignerID,
		Code:      req.Code,
		Capture: services.CaptureInput{
			ImagePNG:    imagePNG,
			StrokeCount: req.StrokeCount,
			DurationMs:  req.DurationMs,
			Width:       req.ImageWidth,
			Height:      req.ImageHeight,
		},
		Request: facts,
		Actor:   actorMeta(c),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": res})
}
