package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

func sampleContract() ContractInput {
	return ContractInput{
		Code:             "HD-1001",
		Title:            "Hop dong thue can ho 2PN",
		LandlordName:     "Tran Thi Binh",
		LandlordIDNumber: "079180004321",
		TenantName:       "Nguyen Van An",
		TenantIDNumber:   "079203001234",
		PropertyRef:      "listing-42",
		PropertyAddress:  "12 Nguyen Trai, Quan 1, TP.HCM",
		MonthlyRent:      8500000,
		DepositAmount:    17000000,
		Currency:         "VND",
		PaymentDay:       5,
		StartDate:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		HouseRules:       []string{"Khong nuoi thu cung", "No smoking indoors"},
		Signatures: []SignatureSlot{
			{
				Role:       "tenant",
				SignerName: "Nguyen Van An",
				SignedAt:   time.Date(2025, 3, 14, 9, 0, 45, 0, time.UTC),
				ImageHash:  "1d5c2f295e30362af54b7f27bc2a7b2b2f43e4a3f61d2c9f9a7f1e2d3c4b5a69",
			},
		},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	r, err := NewRenderer(log)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return r
}

func TestContentHashIsStable(t *testing.T) {
	first := BuildContent(sampleContract())
	second := BuildContent(sampleContract())

	h1, err := ContentHash(first)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := ContentHash(second)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("content hashes differ for identical input: %s vs %s", h1, h2)
	}

	changed := sampleContract()
	changed.MonthlyRent = 9000000
	h3, err := ContentHash(BuildContent(changed))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h3 == h1 {
		t.Fatal("content hash did not change with rent")
	}
}

func TestContentHashIgnoresWhitespaceNoise(t *testing.T) {
	noisy := sampleContract()
	noisy.Title = "  Hop dong   thue can ho 2PN "
	noisy.LandlordName = "Tran  Thi   Binh"

	h1, _ := ContentHash(BuildContent(sampleContract()))
	h2, _ := ContentHash(BuildContent(noisy))
	if h1 != h2 {
		t.Fatal("whitespace-only differences changed the content hash")
	}
}

func TestSignatureOrderIsCanonical(t *testing.T) {
	in := sampleContract()
	in.Signatures = []SignatureSlot{
		{Role: "tenant", SignerName: "Nguyen Van An"},
		{Role: "landlord", SignerName: "Tran Thi Binh"},
	}
	reversed := sampleContract()
	reversed.Signatures = []SignatureSlot{
		{Role: "landlord", SignerName: "Tran Thi Binh"},
		{Role: "tenant", SignerName: "Nguyen Van An"},
	}

	h1, _ := ContentHash(BuildContent(in))
	h2, _ := ContentHash(BuildContent(reversed))
	if h1 != h2 {
		t.Fatal("signature ordering changed the content hash")
	}
}

func TestRenderProducesDocument(t *testing.T) {
	r := newTestRenderer(t)

	doc, err := r.Render(context.Background(), sampleContract())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(doc.Bytes, []byte("%PDF-1.4")) {
		t.Fatal("output is not a PDF")
	}
	if doc.PageCount < 1 {
		t.Fatalf("page count = %d", doc.PageCount)
	}
	if doc.SizeBytes != len(doc.Bytes) {
		t.Fatalf("size = %d, len = %d", doc.SizeBytes, len(doc.Bytes))
	}
	if doc.Hash != canonhash.HashBytes(doc.Bytes) {
		t.Fatal("artifact hash does not match rendered bytes")
	}
	if doc.ContentHash == doc.Hash {
		t.Fatal("content hash and artifact hash must be distinct fingerprints")
	}
}

// The artifact hash covers the exact bytes of one render, the content hash
// the logical document. Re-rendering must keep the content hash fixed.
func TestReRenderKeepsContentFingerprint(t *testing.T) {
	r := newTestRenderer(t)

	first, err := r.Render(context.Background(), sampleContract())
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := r.Render(context.Background(), sampleContract())
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if first.ContentHash != second.ContentHash {
		t.Fatal("content fingerprint drifted across renders")
	}
}

func TestRenderTimeout(t *testing.T) {
	r := newTestRenderer(t).WithTimeout(time.Nanosecond)

	_, err := r.Render(context.Background(), sampleContract())
	if !errors.Is(err, types.ErrRenderTimeout) {
		t.Fatalf("err = %v, want render timeout", err)
	}
}
