package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rentline-backend/internal/services"
)

type ArtifactHandler struct {
	documents *services.DocumentService
}

func NewArtifactHandler(documents *services.DocumentService) *ArtifactHandler {
	return &ArtifactHandler{documents: documents}
}

// Document renders the current contract state without storing anything.
func (ah *ArtifactHandler) Document(c *gin.Context) {
	doc, err := ah.documents.Render(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", c.Param("code")))
	c.Header("X-Content-Hash", doc.ContentHash)
	c.Data(http.StatusOK, "application/pdf", doc.Bytes)
}

// Store renders and persists an encrypted artifact.
func (ah *ArtifactHandler) Store(c *gin.Context) {
	artifact, err := ah.documents.StoreDocument(c.Request.Context(), c.Param("code"), actorMeta(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"artifact": artifact})
}

func (ah *ArtifactHandler) Retrieve(c *gin.Context) {
	plain, artifact, err := ah.documents.Retrieve(c.Request.Context(), c.Param("code"), c.Param("hash"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", artifact.Hash))
	c.Header("X-Content-Hash", artifact.ContentHash)
	c.Data(http.StatusOK, "application/pdf", plain)
}

func (ah *ArtifactHandler) Verify(c *gin.Context) {
	ok, err := ah.documents.VerifyIntegrity(c.Request.Context(), c.Param("code"), c.Param("hash"), actorMeta(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"valid": ok})
}

type deleteArtifactRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (ah *ArtifactHandler) Delete(c *gin.Context) {
	var req deleteArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := ah.documents.Delete(c.Request.Context(), c.Param("code"), c.Param("hash"), req.Reason, actorMeta(c)); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (ah *ArtifactHandler) SignedURL(c *gin.Context) {
	u, expiresAt, err := ah.documents.SignedURL(c.Request.Context(), c.Param("code"), c.Param("hash"), actorMeta(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": u, "expires_at": expiresAt})
}
