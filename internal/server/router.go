package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/rentline-backend/internal/handlers"
	"github.com/yungbote/rentline-backend/internal/middleware"
	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/envutil"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler   *handlers.HealthHandler
	ContractHandler *handlers.ContractHandler
	SigningHandler  *handlers.SigningHandler
	ArtifactHandler *handlers.ArtifactHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id", "X-Actor-Id", "X-Device-Id", "X-Approx-Location"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware("rentline"))
	router.Use(middleware.RequestContext())
	router.Use(middleware.RequestLogger(cfg.Log, cfg.Metrics))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/contracts", cfg.ContractHandler.Create)
		api.GET("/contracts/:code", cfg.ContractHandler.Get)
		api.GET("/contracts/:code/compliance", cfg.ContractHandler.Compliance)
		api.GET("/contracts/:code/audit-trail", cfg.ContractHandler.AuditTrail)
		api.POST("/contracts/:code/transitions", cfg.ContractHandler.Transition)

		api.POST("/contracts/:code/signing-sessions", cfg.SigningHandler.CreateSession)
		api.POST("/signing-sessions/:id/verify", cfg.SigningHandler.Verify)

		api.GET("/contracts/:code/document", cfg.ArtifactHandler.Document)
		api.POST("/contracts/:code/artifacts", cfg.ArtifactHandler.Store)
		api.GET("/contracts/:code/artifacts/:hash", cfg.ArtifactHandler.Retrieve)
		api.POST("/contracts/:code/artifacts/:hash/verify", cfg.ArtifactHandler.Verify)
		api.DELETE("/contracts/:code/artifacts/:hash", cfg.ArtifactHandler.Delete)
		api.POST("/contracts/:code/artifacts/:hash/signed-url", cfg.ArtifactHandler.SignedURL)
	}

	return router
}

func allowedOrigins() []string {
	raw := envutil.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
