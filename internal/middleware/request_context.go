package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/rentline-backend/internal/requestdata"
)

// RequestContext populates the per-request caller facts the signing flow
// folds into evidence bundles and audit entries. It must run before any
// signing handler.
//
// Actor identity arrives via the X-Actor-Id header, set by the platform's
// gateway after authentication; this service does not verify tokens itself.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		rd := &requestdata.RequestData{
			RequestID:      requestID,
			IP:             c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			DeviceID:       c.GetHeader("X-Device-Id"),
			ApproxLocation: c.GetHeader("X-Approx-Location"),
		}
		if raw := c.GetHeader("X-Actor-Id"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				rd.ActorID = id
			}
		}

		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}
