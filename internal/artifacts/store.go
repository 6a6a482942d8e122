// Package artifacts persists rendered contract documents: encrypted local
// storage as primary, an optional remote mirror, integrity verification
// against the recorded artifact hash, and audited hard deletion.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/clients/gcp"
	"github.com/yungbote/rentline-backend/internal/data/aggregates"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
	"github.com/yungbote/rentline-backend/internal/platform/dbctx"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/render"
)

// StoreOptions tunes one store call. Encryption defaults on; turning it off
// is only for test fixtures.
type StoreOptions struct {
	Encrypt bool
}

type Store struct {
	log    *logger.Logger
	local  *LocalStore
	mirror gcp.BucketService
	repo   repos.ArtifactRepo
	audit  repos.AuditEntryRepo
	runner aggregates.TxRunner
	signer *URLSigner

	encryptionKey []byte
}

type StoreDeps struct {
	Log    *logger.Logger
	Local  *LocalStore
	Mirror gcp.BucketService
	Repo   repos.ArtifactRepo
	Audit  repos.AuditEntryRepo
	Runner aggregates.TxRunner
	Signer *URLSigner

	EncryptionKey []byte
}

func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Local == nil {
		return nil, fmt.Errorf("local artifact store is required")
	}
	if deps.Repo == nil || deps.Audit == nil || deps.Runner == nil {
		return nil, fmt.Errorf("artifact store repos are required")
	}
	return &Store{
		log:           deps.Log.With("service", "ArtifactStore"),
		local:         deps.Local,
		mirror:        deps.Mirror,
		repo:          deps.Repo,
		audit:         deps.Audit,
		runner:        deps.Runner,
		signer:        deps.Signer,
		encryptionKey: deps.EncryptionKey,
	}, nil
}

// Key computes the object key for an artifact: {year}/{month}/{code}/{hash}.pdf,
// dated by storage time.
func Key(contractCode, hash string, storedAt time.Time) string {
	return fmt.Sprintf("%04d/%02d/%s/%s.pdf", storedAt.UTC().Year(), int(storedAt.UTC().Month()), contractCode, hash)
}

// Store persists a rendered document. Writes are keyed by content hash, so
// storing the same bytes twice is "create-if-absent, else verify-match",
// never a blind overwrite.
func (s *Store) Store(ctx context.Context, c *types.Contract, doc *render.Document, opts StoreOptions, actor domainagg.ActorMeta) (*types.Artifact, error) {
	if doc == nil || len(doc.Bytes) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	existing, err := s.repo.GetByHash(ctx, nil, c.Code, doc.Hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	storedAt := time.Now().UTC()
	key := Key(c.Code, doc.Hash, storedAt)

	payload := doc.Bytes
	if opts.Encrypt {
		payload, err = Encrypt(s.encryptionKey, doc.Bytes)
		if err != nil {
			return nil, err
		}
	}

	if err := s.local.Write(key, payload); err != nil {
		return nil, err
	}

	mirrored := false
	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, key, bytes.NewReader(payload)); err != nil {
			s.log.Warn("artifact mirror upload failed", "key", key, "error", err)
		} else {
			mirrored = true
		}
	}

	artifact := &types.Artifact{
		ContractID:         c.ID,
		ContractCode:       c.Code,
		StorageKey:         key,
		Hash:               doc.Hash,
		ContentHash:        doc.ContentHash,
		SizeBytes:          int64(doc.SizeBytes),
		PageCount:          doc.PageCount,
		Encrypted:          opts.Encrypt,
		Mirrored:           mirrored,
		StoredAt:           storedAt,
		RetentionExpiresAt: storedAt.Add(types.RetentionPeriod),
	}

	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.repo.Create(dbc.Ctx, dbc.Tx, artifact); err != nil {
			return err
		}
		return s.appendAudit(dbc, artifact, actor, types.AuditArtifactStored, map[string]any{
			"storage_key": key,
			"hash":        doc.Hash,
			"size_bytes":  doc.SizeBytes,
			"encrypted":   opts.Encrypt,
			"mirrored":    mirrored,
		})
	})
	if err != nil {
		// The DB row is the source of truth; a failed insert leaves the
		// orphaned file for the next store call to overwrite.
		return nil, err
	}
	return artifact, nil
}

// Retrieve returns the decrypted document bytes, falling back to the remote
// mirror on a local miss.
func (s *Store) Retrieve(ctx context.Context, contractCode, hash string) ([]byte, *types.Artifact, error) {
	artifact, err := s.repo.GetByHash(ctx, nil, contractCode, hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, types.ErrArtifactNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	raw, found, err := s.local.Read(artifact.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		raw, err = s.readMirror(ctx, artifact.StorageKey)
		if err != nil {
			return nil, nil, err
		}
	}

	plain, err := Decrypt(s.encryptionKey, raw)
	if err != nil {
		return nil, nil, err
	}
	return plain, artifact, nil
}

func (s *Store) readMirror(ctx context.Context, key string) ([]byte, error) {
	if s.mirror == nil {
		return nil, types.ErrArtifactNotFound
	}
	rc, err := s.mirror.Download(ctx, key)
	if err != nil {
		return nil, types.ErrArtifactNotFound
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifyIntegrity recomputes the hash of the stored bytes and compares it to
// the recorded artifact hash. A mismatch is treated as possible tampering:
// it is audited and returned as a fatal error, never retried.
func (s *Store) VerifyIntegrity(ctx context.Context, contractCode, expectedHash string, actor domainagg.ActorMeta) (bool, error) {
	plain, artifact, err := s.Retrieve(ctx, contractCode, expectedHash)
	if err != nil {
		return false, err
	}

	actual := canonhash.HashBytes(plain)
	match := actual == expectedHash

	action := types.AuditArtifactVerified
	if !match {
		action = types.AuditArtifactMismatch
	}
	auditErr := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		return s.appendAudit(dbc, artifact, actor, action, map[string]any{
			"expected_hash": expectedHash,
			"actual_hash":   actual,
		})
	})
	if auditErr != nil {
		return false, auditErr
	}

	if !match {
		s.log.Error("artifact integrity mismatch", "contract_code", contractCode, "expected", expectedHash, "actual", actual)
		return false, types.ErrIntegrityMismatch
	}
	return true, nil
}

// Delete hard-deletes an artifact from both stores. The reason is mandatory
// and lands in the audit trail inside the same transaction that removes the
// row.
func (s *Store) Delete(ctx context.Context, contractCode, hash, reason string, actor domainagg.ActorMeta) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("delete reason is required")
	}

	artifact, err := s.repo.GetByHash(ctx, nil, contractCode, hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrArtifactNotFound
	}
	if err != nil {
		return err
	}

	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.repo.DeleteByHash(dbc.Ctx, dbc.Tx, contractCode, hash)
		if err != nil {
			return err
		}
		if rows == 0 {
			return types.ErrArtifactNotFound
		}
		return s.appendAudit(dbc, artifact, actor, types.AuditArtifactDeleted, map[string]any{
			"storage_key": artifact.StorageKey,
			"hash":        hash,
			"reason":      strings.TrimSpace(reason),
		})
	})
	if err != nil {
		return err
	}

	if err := s.local.Delete(artifact.StorageKey); err != nil {
		s.log.Warn("local artifact delete failed", "key", artifact.StorageKey, "error", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, artifact.StorageKey); err != nil {
			s.log.Warn("mirror artifact delete failed", "key", artifact.StorageKey, "error", err)
		}
	}
	return nil
}

// SignedURL issues a time-limited access URL for a stored artifact.
func (s *Store) SignedURL(ctx context.Context, contractCode, hash string, ttl time.Duration, actor domainagg.ActorMeta) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, fmt.Errorf("url signer not configured")
	}
	artifact, err := s.repo.GetByHash(ctx, nil, contractCode, hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, types.ErrArtifactNotFound
	}
	if err != nil {
		return "", time.Time{}, err
	}

	u, expiresAt, err := s.signer.Sign(artifact.StorageKey, hash, ttl, time.Now())
	if err != nil {
		return "", time.Time{}, err
	}

	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		return s.appendAudit(dbc, artifact, actor, types.AuditSignedURLIssued, map[string]any{
			"storage_key": artifact.StorageKey,
			"expires_at":  expiresAt,
		})
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return u, expiresAt, nil
}

func (s *Store) appendAudit(dbc dbctx.Context, artifact *types.Artifact, actor domainagg.ActorMeta, action string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = s.audit.Append(dbc.Ctx, dbc.Tx, &types.AuditEntry{
		ContractID: artifact.ContractID,
		ActorID:    actor.ActorID,
		Action:     action,
		Details:    datatypes.JSON(payload),
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	})
	return err
}
