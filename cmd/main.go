package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/rentline-backend/internal/artifacts"
	"github.com/yungbote/rentline-backend/internal/audit"
	"github.com/yungbote/rentline-backend/internal/clients/directory"
	"github.com/yungbote/rentline-backend/internal/clients/gcp"
	"github.com/yungbote/rentline-backend/internal/clients/twilio"
	"github.com/yungbote/rentline-backend/internal/config"
	"github.com/yungbote/rentline-backend/internal/data/aggregates"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	"github.com/yungbote/rentline-backend/internal/db"
	"github.com/yungbote/rentline-backend/internal/handlers"
	"github.com/yungbote/rentline-backend/internal/messaging"
	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/platform/sendgrid"
	"github.com/yungbote/rentline-backend/internal/render"
	"github.com/yungbote/rentline-backend/internal/server"
	"github.com/yungbote/rentline-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load("")
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "rentline-backend",
		Environment: cfg.Server.Environment,
	})
	defer func() { _ = shutdownOtel(context.Background()) }()

	// Postgres
	postgresService, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres migration failed", "error", err)
		os.Exit(1)
	}
	gdb := postgresService.DB()

	// Redis is optional: it carries the audit bus and health sampling.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	}

	// Metrics
	var metrics *observability.Metrics
	if observability.Enabled() {
		metrics = observability.Init(log)
		metricsAddr := cfg.Server.MetricsAddr
		if metricsAddr == "" {
			metricsAddr = ":9464"
		}
		metrics.StartServer(ctx, log, metricsAddr)
		metrics.StartRuntimeCollectors(ctx, log, gdb, rdb)
		metrics.StartSLOEvaluator(ctx, log)
	}

	// Repos
	contractRepo := repos.NewContractRepo(gdb, log)
	sessionRepo := repos.NewSigningSessionRepo(gdb, log)
	signatureRepo := repos.NewSignatureRecordRepo(gdb, log)
	artifactRepo := repos.NewArtifactRepo(gdb, log)
	auditRepo := repos.NewAuditEntryRepo(gdb, log)

	runner := aggregates.NewGormTxRunner(gdb)
	signingAggregate := aggregates.NewSigningAggregate(aggregates.SigningAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     gdb,
			Log:    log,
			Runner: runner,
			Hooks:  aggregates.NewObservabilityHooks(metrics),
		},
		Contracts:  contractRepo,
		Sessions:   sessionRepo,
		Signatures: signatureRepo,
		Audit:      auditRepo,
	})

	// Audit trail
	var auditBus audit.Bus = audit.NewNoopBus()
	if cfg.Redis.Addr != "" {
		bus, err := audit.NewRedisBus(log)
		if err != nil {
			log.Warn("Redis audit bus unavailable, continuing without publish", "error", err)
		} else {
			auditBus = bus
			defer auditBus.Close()
		}
	}
	trail := audit.NewTrail(log, contractRepo, auditRepo, auditBus)

	// Party directory
	partyDirectory, err := directory.NewFromEnv(log)
	if err != nil {
		log.Error("Party directory init failed", "error", err)
		os.Exit(1)
	}

	// Code dispatch
	sender := buildCodeSender(log, cfg.Server.Environment)

	// Rendering
	renderer, err := render.NewRenderer(log)
	if err != nil {
		log.Error("Renderer init failed", "error", err)
		os.Exit(1)
	}
	if cfg.Signing.RenderTimeout > 0 {
		renderer = renderer.WithTimeout(cfg.Signing.RenderTimeout)
	}

	// Artifact storage
	localStore, err := artifacts.NewLocalStore(cfg.Storage.LocalDir)
	if err != nil {
		log.Error("Artifact store init failed", "error", err)
		os.Exit(1)
	}
	var mirror gcp.BucketService
	if cfg.Storage.GCSBucket != "" {
		mirror, err = gcp.NewBucketService(log)
		if err != nil {
			log.Warn("Artifact mirror unavailable, local storage only", "error", err)
			mirror = nil
		}
	}
	var urlSigner *artifacts.URLSigner
	if cfg.Signing.URLSecret != "" {
		urlSigner, err = artifacts.NewURLSigner([]byte(cfg.Signing.URLSecret), cfg.Server.BaseURL+"/artifacts/download")
		if err != nil {
			log.Error("URL signer init failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("SIGNED_URL_SECRET not set, signed artifact URLs disabled")
	}
	encryptionKey, err := cfg.Encryption.Key()
	if err != nil {
		log.Error("Invalid artifact encryption key", "error", err)
		os.Exit(1)
	}
	if encryptionKey == nil {
		log.Warn("ARTIFACT_ENCRYPTION_KEY not set, encrypted artifact writes will be refused")
	}
	artifactStore, err := artifacts.NewStore(artifacts.StoreDeps{
		Log:           log,
		Local:         localStore,
		Mirror:        mirror,
		Repo:          artifactRepo,
		Audit:         auditRepo,
		Runner:        runner,
		Signer:        urlSigner,
		EncryptionKey: encryptionKey,
	})
	if err != nil {
		log.Error("Artifact store init failed", "error", err)
		os.Exit(1)
	}

	// Services
	contractService := services.NewContractService(log, contractRepo, auditRepo, runner, partyDirectory, trail, metrics)
	signingService, err := services.NewSigningService(services.SigningServiceDeps{
		Log:        log,
		Cfg:        cfg.Signing,
		Contracts:  contractRepo,
		Sessions:   sessionRepo,
		Signatures: signatureRepo,
		Audit:      auditRepo,
		Runner:     runner,
		Aggregate:  signingAggregate,
		Sender:     sender,
		Directory:  partyDirectory,
		Captures:   localStore,
		Announcer:  trail,
		Metrics:    metrics,
	})
	if err != nil {
		log.Error("Signing service init failed", "error", err)
		os.Exit(1)
	}
	documentService, err := services.NewDocumentService(services.DocumentServiceDeps{
		Log:        log,
		Contracts:  contractRepo,
		Signatures: signatureRepo,
		Directory:  partyDirectory,
		Renderer:   renderer,
		Store:      artifactStore,
		Captures:   localStore,
		Announcer:  trail,
		Metrics:    metrics,
		URLTTL:     cfg.Signing.URLTTL,
	})
	if err != nil {
		log.Error("Document service init failed", "error", err)
		os.Exit(1)
	}

	// Router
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		HealthHandler:   handlers.NewHealthHandler(gdb),
		ContractHandler: handlers.NewContractHandler(contractService, trail),
		SigningHandler:  handlers.NewSigningHandler(signingService),
		ArtifactHandler: handlers.NewArtifactHandler(documentService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Server.Port, "env", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}

// buildCodeSender wires whichever dispatch providers are configured. Outside
// production a missing provider falls back to the log sender so signing stays
// exercisable locally.
func buildCodeSender(log *logger.Logger, environment string) messaging.CodeSender {
	var sms twilio.Client
	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		c, err := twilio.NewFromEnv(log)
		if err != nil {
			log.Warn("Twilio init failed, sms channel disabled", "error", err)
		} else {
			sms = c
		}
	}

	var email sendgrid.Client
	if os.Getenv("SENDGRID_API_KEY") != "" {
		c, err := sendgrid.NewFromEnv(log)
		if err != nil {
			log.Warn("SendGrid init failed, email channel disabled", "error", err)
		} else {
			email = c
		}
	}

	if sms == nil && email == nil {
		if environment == "production" {
			log.Error("No code dispatch channel configured in production")
			os.Exit(1)
		}
		log.Warn("No dispatch provider configured, using log sender")
		return messaging.NewLogSender(log)
	}
	return messaging.New(log, sms, email)
}
