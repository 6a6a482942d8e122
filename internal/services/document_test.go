package services

import (
	"context"
	"errors"
	"testing"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
)

// Full path: draft, two OTP signatures, activation, render, encrypted
// storage, retrieval, integrity check.
func TestDraftToSignedArtifactFlow(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	first := f.signParty(t, c.Code, f.tenantID)
	if first.FullySigned || first.ContractStatus != types.StatusPartiallySigned {
		t.Fatalf("first signature: %+v", first)
	}

	second := f.signParty(t, c.Code, f.landlordID)
	if !second.FullySigned || second.ContractStatus != types.StatusActive {
		t.Fatalf("second signature: %+v", second)
	}

	signed, err := f.contractSvc.GetByCode(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if signed.SignedAt == nil {
		t.Fatal("SignedAt not set on full signing")
	}

	artifact, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("store document: %v", err)
	}
	if !artifact.Encrypted {
		t.Fatal("artifact not encrypted")
	}
	if artifact.PageCount < 1 || artifact.SizeBytes == 0 {
		t.Fatalf("artifact metadata: %+v", artifact)
	}

	plain, meta, err := f.documentSvc.Retrieve(context.Background(), c.Code, artifact.Hash)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if meta.Hash != artifact.Hash {
		t.Fatalf("hash mismatch: %q vs %q", meta.Hash, artifact.Hash)
	}
	if canonhash.HashBytes(plain) != artifact.Hash {
		t.Fatal("retrieved bytes do not match recorded hash")
	}

	ok, err := f.documentSvc.VerifyIntegrity(context.Background(), c.Code, artifact.Hash, f.actor(f.landlordID))
	if err != nil || !ok {
		t.Fatalf("integrity: ok=%v err=%v", ok, err)
	}
}

func TestRenderIncludesSignatureSlots(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)

	doc, err := f.documentSvc.Render(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.PageCount < 1 {
		t.Fatalf("page count = %d", doc.PageCount)
	}

	// The content hash must change once a signature lands.
	empty, err := f.documentSvc.Render(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if empty.ContentHash != doc.ContentHash {
		t.Fatal("content hash not stable across re-renders of the same state")
	}

	f.signParty(t, c.Code, f.landlordID)
	both, err := f.documentSvc.Render(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("render after second signature: %v", err)
	}
	if both.ContentHash == doc.ContentHash {
		t.Fatal("content hash unchanged after a new signature")
	}
}

func TestStoreDocumentIsIdempotentPerContent(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)
	f.signParty(t, c.Code, f.landlordID)

	first, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("first store: %v", err)
	}

	// A second render embeds a fresh creation date, so the artifact hash
	// differs while the content hash stays put.
	second, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("second store: %v", err)
	}
	if first.ContentHash != second.ContentHash {
		t.Fatalf("content hash drifted: %q vs %q", first.ContentHash, second.ContentHash)
	}
}

func TestDeleteArtifactRequiresReason(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)
	f.signParty(t, c.Code, f.landlordID)

	artifact, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := f.documentSvc.Delete(context.Background(), c.Code, artifact.Hash, "  ", f.actor(f.landlordID)); err == nil {
		t.Fatal("empty reason accepted")
	}
	if err := f.documentSvc.Delete(context.Background(), c.Code, artifact.Hash, "retention window closed", f.actor(f.landlordID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := f.documentSvc.Retrieve(context.Background(), c.Code, artifact.Hash); !errors.Is(err, types.ErrArtifactNotFound) {
		t.Fatalf("retrieve after delete: err = %v, want ErrArtifactNotFound", err)
	}
}

func TestSignedURLIssued(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)
	f.signParty(t, c.Code, f.landlordID)

	artifact, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	u, expiresAt, err := f.documentSvc.SignedURL(context.Background(), c.Code, artifact.Hash, f.actor(f.landlordID))
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if u == "" || expiresAt.IsZero() {
		t.Fatalf("url = %q, expires = %v", u, expiresAt)
	}
	if expiresAt.Equal(artifact.RetentionExpiresAt) {
		t.Fatal("access expiry must be independent of retention")
	}
}
