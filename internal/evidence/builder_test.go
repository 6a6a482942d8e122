package evidence

import (
	"strings"
	"testing"
	"time"
)

func sampleInput() BuildInput {
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return BuildInput{
		Signer: SignerIdentity{
			FullName:  "Nguyen Van An",
			IDNumber:  "079203001234",
			BirthDate: time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC),
			Phone:     "+84912345678",
		},
		Session: SessionFacts{
			Channel:       "sms",
			ChannelTarget: "+84912345678",
			CreatedAt:     created,
			CodeSentAt:    created.Add(2 * time.Second),
			VerifiedAt:    created.Add(45 * time.Second),
			AttemptsUsed:  1,
			MaxAttempts:   5,
		},
		Request: RequestFacts{
			IP:        "113.161.72.5",
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Timezone:  "Asia/Ho_Chi_Minh",
		},
		Capture: CaptureFacts{
			ImageBytes:  []byte("png-bytes-placeholder"),
			StrokeCount: 14,
			DurationMs:  3200,
			Width:       400,
			Height:      150,
		},
		ContentHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		SignedAt:    created.Add(45 * time.Second),
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, firstAuth, err := Build(sampleInput())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, secondAuth, err := Build(sampleInput())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	h1, err := first.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := second.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("bundle hashes differ: %s vs %s", h1, h2)
	}
	if firstAuth.Provider != secondAuth.Provider ||
		firstAuth.SessionDuration != secondAuth.SessionDuration ||
		firstAuth.RiskScore != secondAuth.RiskScore {
		t.Fatalf("authentication data differs across identical inputs")
	}
}

func TestBuildMasksChannelTarget(t *testing.T) {
	bundle, _, err := Build(sampleInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	target := bundle.Authentication.ChannelTarget
	if target == "+84912345678" {
		t.Fatal("channel target stored unmasked")
	}
	if !strings.HasPrefix(target, "+84") || !strings.HasSuffix(target, "678") {
		t.Fatalf("masked target %q does not keep first/last 3", target)
	}
	if !strings.Contains(target, "*") {
		t.Fatalf("masked target %q has no masked middle", target)
	}
}

func TestBuildClassifiesProviderAndDevice(t *testing.T) {
	bundle, auth, err := Build(sampleInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if auth.Provider != "vinaphone" {
		t.Fatalf("provider = %q, want vinaphone for 091 prefix", auth.Provider)
	}
	if auth.SessionDuration != 45 {
		t.Fatalf("session duration = %v, want 45s", auth.SessionDuration)
	}
	if bundle.Context.Device.Class != "mobile" || bundle.Context.Device.OS != "ios" {
		t.Fatalf("device parsed as %s/%s, want mobile/ios", bundle.Context.Device.Class, bundle.Context.Device.OS)
	}
}

func TestBuildRejectsIncompleteInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BuildInput)
		want   error
	}{
		{"no signer name", func(in *BuildInput) { in.Signer.FullName = "" }, ErrMissingSigner},
		{"no id number", func(in *BuildInput) { in.Signer.IDNumber = "" }, ErrMissingSigner},
		{"no target", func(in *BuildInput) { in.Session.ChannelTarget = "" }, ErrMissingSession},
		{"not verified", func(in *BuildInput) { in.Session.VerifiedAt = time.Time{} }, ErrUnverifiedSession},
		{"no capture", func(in *BuildInput) { in.Capture.ImageBytes = nil }, ErrMissingCapture},
		{"no content hash", func(in *BuildInput) { in.ContentHash = "" }, ErrMissingContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleInput()
			tc.mutate(&in)
			if _, _, err := Build(in); err != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRiskScoreIsRuleBased(t *testing.T) {
	score, factors := Score(RiskInput{})
	if score != 0 || len(factors) != 0 {
		t.Fatalf("clean input scored %d with factors %v", score, factors)
	}

	score, factors = Score(RiskInput{NewDevice: true, DivergentLocation: true, AttemptsUsed: 5, OffHours: true})
	if score != 100 {
		t.Fatalf("max input scored %d, want capped 100", score)
	}
	if len(factors) != 4 {
		t.Fatalf("factors = %v, want all four", factors)
	}

	score, _ = Score(RiskInput{AttemptsUsed: 3})
	if score != 20 {
		t.Fatalf("two extra attempts scored %d, want 20", score)
	}
}
