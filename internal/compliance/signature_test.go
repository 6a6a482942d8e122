package compliance

import (
	"testing"
	"time"

	"github.com/yungbote/rentline-backend/internal/evidence"
)

func validBundle() evidence.Bundle {
	verified := time.Date(2025, 3, 14, 9, 0, 45, 0, time.UTC)
	return evidence.Bundle{
		Signer: evidence.SignerIdentity{
			FullName:  "Nguyen Van An",
			IDNumber:  "079203001234",
			BirthDate: time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		Authentication: evidence.AuthenticationEvidence{
			Method:        evidence.AuthMethodOTP,
			ChannelTarget: "+84******678",
			CodeSentAt:    verified.Add(-43 * time.Second),
			VerifiedAt:    verified,
			AttemptsUsed:  1,
			MaxAttempts:   5,
		},
		Context: evidence.SigningContext{
			Timestamp: verified,
			Timezone:  "Asia/Ho_Chi_Minh",
			Device:    evidence.DeviceInfo{UserAgent: "Mozilla/5.0", Class: "mobile", OS: "ios", Browser: "safari"},
			Network:   evidence.NetworkInfo{IP: "113.161.72.5"},
		},
		Integrity: evidence.IntegritySection{
			ImageHash:   "1d5c2f295e30362af54b7f27bc2a7b2b2f43e4a3f61d2c9f9a7f1e2d3c4b5a69",
			ContentHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		},
	}
}

func TestValidateElectronicSignature(t *testing.T) {
	if !ValidateElectronicSignature(validBundle()) {
		t.Fatal("complete bundle rejected")
	}

	cases := []struct {
		name   string
		mutate func(*evidence.Bundle)
	}{
		{"wrong method", func(b *evidence.Bundle) { b.Authentication.Method = "password" }},
		{"not verified", func(b *evidence.Bundle) { b.Authentication.VerifiedAt = time.Time{} }},
		{"no image hash", func(b *evidence.Bundle) { b.Integrity.ImageHash = "" }},
		{"no content hash", func(b *evidence.Bundle) { b.Integrity.ContentHash = "" }},
		{"no id number", func(b *evidence.Bundle) { b.Signer.IDNumber = "" }},
		{"no timestamp", func(b *evidence.Bundle) { b.Context.Timestamp = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBundle()
			tc.mutate(&b)
			if ValidateElectronicSignature(b) {
				t.Fatal("incomplete bundle accepted")
			}
		})
	}
}

func TestValidateMetadataReportsMissingPaths(t *testing.T) {
	if missing := ValidateMetadata(validBundle()); len(missing) != 0 {
		t.Fatalf("complete bundle missing %v", missing)
	}

	b := validBundle()
	b.Signer.FullName = ""
	b.Context.Network.IP = ""
	missing := ValidateMetadata(b)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want two paths", missing)
	}
	want := map[string]bool{"signer.full_name": true, "context.network.ip": true}
	for _, p := range missing {
		if !want[p] {
			t.Fatalf("unexpected missing path %q", p)
		}
	}
}
