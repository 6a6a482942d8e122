package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/artifacts"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/render"
)

// DocumentService orchestrates rendering a contract document and its
// encrypted storage. Rendering is side-effect free; only StoreDocument
// persists anything.
type DocumentService struct {
	log        *logger.Logger
	contracts  repos.ContractRepo
	signatures repos.SignatureRecordRepo
	directory  PartyDirectory
	renderer   *render.Renderer
	store      *artifacts.Store
	captures   *artifacts.LocalStore
	announcer  AuditAnnouncer
	metrics    *observability.Metrics
	urlTTL     time.Duration
}

type DocumentServiceDeps struct {
	Log        *logger.Logger
	Contracts  repos.ContractRepo
	Signatures repos.SignatureRecordRepo
	Directory  PartyDirectory
	Renderer   *render.Renderer
	Store      *artifacts.Store
	Captures   *artifacts.LocalStore
	Announcer  AuditAnnouncer
	Metrics    *observability.Metrics
	URLTTL     time.Duration
}

func NewDocumentService(deps DocumentServiceDeps) (*DocumentService, error) {
	if deps.Contracts == nil || deps.Signatures == nil {
		return nil, fmt.Errorf("document service repos are required")
	}
	if deps.Renderer == nil || deps.Store == nil || deps.Directory == nil {
		return nil, fmt.Errorf("document service collaborators are required")
	}
	ttl := deps.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocumentService{
		log:        deps.Log.With("service", "DocumentService"),
		contracts:  deps.Contracts,
		signatures: deps.Signatures,
		directory:  deps.Directory,
		renderer:   deps.Renderer,
		store:      deps.Store,
		captures:   deps.Captures,
		announcer:  deps.Announcer,
		metrics:    deps.Metrics,
		urlTTL:     ttl,
	}, nil
}

// Render produces the document for the contract's current state, including
// every recorded signature, without storing anything.
func (s *DocumentService) Render(ctx context.Context, code string) (*render.Document, error) {
	c, input, err := s.snapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.renderer.Render(ctx, *input)
	s.observeRender(err, time.Since(start))
	if err != nil {
		s.log.Error("document render failed", "contract_code", c.Code, "error", err)
		return nil, err
	}
	return doc, nil
}

// StoreDocument renders and persists the document as an encrypted artifact.
// Storing the same logical bytes twice returns the existing artifact row.
func (s *DocumentService) StoreDocument(ctx context.Context, code string, actor domainagg.ActorMeta) (*types.Artifact, error) {
	ctx, span := otel.Tracer("rentline/documents").Start(ctx, "documents.render_and_store")
	defer span.End()
	span.SetAttributes(attribute.String("contract_code", code))

	c, input, err := s.snapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.renderer.Render(ctx, *input)
	s.observeRender(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	artifact, err := s.store.Store(ctx, c, doc, artifacts.StoreOptions{Encrypt: true}, actor)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.IncArtifactOp("store", status)
		if err == nil {
			s.metrics.AddArtifactBytes(artifact.SizeBytes)
		}
	}
	if err != nil {
		return nil, err
	}
	announce(s.announcer, ctx, c, actor, types.AuditArtifactStored)

	s.log.Info("artifact stored",
		"contract_code", c.Code, "hash", artifact.Hash,
		"pages", artifact.PageCount, "size_bytes", artifact.SizeBytes)
	return artifact, nil
}

// Retrieve returns the decrypted artifact bytes and its metadata row.
func (s *DocumentService) Retrieve(ctx context.Context, code, hash string) ([]byte, *types.Artifact, error) {
	plain, artifact, err := s.store.Retrieve(ctx, code, hash)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.IncArtifactOp("retrieve", status)
	}
	return plain, artifact, err
}

// VerifyIntegrity recomputes the stored artifact's hash against the record.
func (s *DocumentService) VerifyIntegrity(ctx context.Context, code, hash string, actor domainagg.ActorMeta) (bool, error) {
	ok, err := s.store.VerifyIntegrity(ctx, code, hash, actor)
	if s.metrics != nil {
		status := "success"
		if err != nil || !ok {
			status = "error"
		}
		s.metrics.IncArtifactOp("verify", status)
	}
	return ok, err
}

// Delete hard-deletes an artifact with a mandatory audited reason.
func (s *DocumentService) Delete(ctx context.Context, code, hash, reason string, actor domainagg.ActorMeta) error {
	err := s.store.Delete(ctx, code, hash, reason, actor)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.IncArtifactOp("delete", status)
	}
	if err != nil {
		return err
	}
	if s.announcer != nil {
		if c, cerr := s.contracts.GetByCode(ctx, nil, code); cerr == nil {
			announce(s.announcer, ctx, c, actor, types.AuditArtifactDeleted)
		}
	}
	return nil
}

// SignedURL issues a time-limited access URL for a stored artifact. The TTL
// bounds access, not retention.
func (s *DocumentService) SignedURL(ctx context.Context, code, hash string, actor domainagg.ActorMeta) (string, time.Time, error) {
	return s.store.SignedURL(ctx, code, hash, s.urlTTL, actor)
}

// snapshot assembles the renderer input for a contract: terms, resolved
// identities, and the recorded signature slots with their stored captures.
func (s *DocumentService) snapshot(ctx context.Context, code string) (*types.Contract, *render.ContractInput, error) {
	c, err := s.contracts.GetByCode(ctx, nil, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, types.ErrContractNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	landlord, err := s.directory.GetParty(ctx, c.LandlordID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve landlord: %w", err)
	}
	tenant, err := s.directory.GetParty(ctx, c.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve tenant: %w", err)
	}
	property, err := s.directory.GetProperty(ctx, c.PropertyRef)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve property: %w", err)
	}

	input := buildRenderInput(c, landlord, tenant, property)

	records, err := s.signatures.GetByContract(ctx, nil, c.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range records {
		name := landlord.FullName
		if rec.Role == types.RoleTenant {
			name = tenant.FullName
		}
		slot := render.SignatureSlot{
			Role:       string(rec.Role),
			SignerName: name,
			SignedAt:   rec.CreatedAt,
			ImageHash:  rec.ImageHash,
		}
		if s.captures != nil {
			if png, found, err := s.captures.Read(rec.ImageKey); err == nil && found {
				slot.ImagePNG = png
			} else if err != nil {
				s.log.Warn("signature capture unreadable", "image_key", rec.ImageKey, "error", err)
			}
		}
		input.Signatures = append(input.Signatures, slot)
	}
	return c, &input, nil
}

func (s *DocumentService) observeRender(err error, dur time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case errors.Is(err, types.ErrRenderTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	s.metrics.ObserveRender(status, dur)
}
