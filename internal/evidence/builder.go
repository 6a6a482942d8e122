package evidence

import (
	"errors"
	"strings"
	"time"

	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
)

var (
	ErrMissingSigner     = errors.New("evidence: signer identity incomplete")
	ErrMissingSession    = errors.New("evidence: session facts incomplete")
	ErrMissingCapture    = errors.New("evidence: canvas capture missing")
	ErrMissingContent    = errors.New("evidence: content hash missing")
	ErrUnverifiedSession = errors.New("evidence: session has no verification timestamp")
)

// SessionFacts is the slice of a consumed signing session the builder needs.
type SessionFacts struct {
	Channel       string
	ChannelTarget string
	CreatedAt     time.Time
	CodeSentAt    time.Time
	VerifiedAt    time.Time
	AttemptsUsed  int
	MaxAttempts   int
}

// RequestFacts is the request context captured at verification time.
type RequestFacts struct {
	IP             string
	UserAgent      string
	ApproxLocation string
	Timezone       string
	ScreenWidth    int
	ScreenHeight   int

	NewDevice         bool
	DivergentLocation bool
}

// CaptureFacts describes the raw signature canvas capture.
type CaptureFacts struct {
	ImageBytes  []byte
	StrokeCount int
	DurationMs  int
	Width       int
	Height      int
}

type BuildInput struct {
	Signer      SignerIdentity
	Session     SessionFacts
	Request     RequestFacts
	Capture     CaptureFacts
	ContentHash string
	// SignedAt is the verification instant, passed in explicitly so the
	// bundle hash never depends on when Build happens to run.
	SignedAt time.Time
}

// DefaultTimezone applies when the client does not report one.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Build assembles the evidence bundle and the parallel authentication
// classification. Identical inputs always produce identical bundles and
// therefore identical bundle hashes.
func Build(in BuildInput) (Bundle, AuthenticationData, error) {
	var bundle Bundle
	var auth AuthenticationData

	if strings.TrimSpace(in.Signer.FullName) == "" || strings.TrimSpace(in.Signer.IDNumber) == "" {
		return bundle, auth, ErrMissingSigner
	}
	if strings.TrimSpace(in.Session.ChannelTarget) == "" {
		return bundle, auth, ErrMissingSession
	}
	if in.Session.VerifiedAt.IsZero() {
		return bundle, auth, ErrUnverifiedSession
	}
	if len(in.Capture.ImageBytes) == 0 {
		return bundle, auth, ErrMissingCapture
	}
	if strings.TrimSpace(in.ContentHash) == "" {
		return bundle, auth, ErrMissingContent
	}

	tz := strings.TrimSpace(in.Request.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	signedAt := in.SignedAt.UTC()
	if signedAt.IsZero() {
		signedAt = in.Session.VerifiedAt.UTC()
	}

	class, osName, browser := ParseUserAgent(in.Request.UserAgent)

	bundle = Bundle{
		Signer: in.Signer,
		Authentication: AuthenticationEvidence{
			Method:        AuthMethodOTP,
			ChannelTarget: MaskTarget(in.Session.ChannelTarget),
			CodeSentAt:    in.Session.CodeSentAt.UTC(),
			VerifiedAt:    in.Session.VerifiedAt.UTC(),
			AttemptsUsed:  in.Session.AttemptsUsed,
			MaxAttempts:   in.Session.MaxAttempts,
		},
		Context: SigningContext{
			Timestamp: signedAt,
			Timezone:  tz,
			Device: DeviceInfo{
				UserAgent:    in.Request.UserAgent,
				Class:        class,
				OS:           osName,
				Browser:      browser,
				ScreenWidth:  in.Request.ScreenWidth,
				ScreenHeight: in.Request.ScreenHeight,
			},
			Network: NetworkInfo{
				IP:             in.Request.IP,
				ApproxLocation: in.Request.ApproxLocation,
			},
		},
		Integrity: IntegritySection{
			ImageHash:   canonhash.HashBytes(in.Capture.ImageBytes),
			ContentHash: in.ContentHash,
			StrokeCount: in.Capture.StrokeCount,
			DurationMs:  in.Capture.DurationMs,
			ImageWidth:  in.Capture.Width,
			ImageHeight: in.Capture.Height,
		},
	}

	provider := "email"
	if !strings.Contains(in.Session.ChannelTarget, "@") {
		provider = CarrierForPhone(in.Session.ChannelTarget)
	}

	duration := in.Session.VerifiedAt.Sub(in.Session.CreatedAt).Seconds()
	if duration < 0 {
		duration = 0
	}

	score, factors := Score(RiskInput{
		NewDevice:         in.Request.NewDevice,
		DivergentLocation: in.Request.DivergentLocation,
		AttemptsUsed:      in.Session.AttemptsUsed,
		OffHours:          offHours(signedAt, tz),
	})

	auth = AuthenticationData{
		Provider:        provider,
		SessionDuration: duration,
		RiskScore:       score,
		RiskFactors:     factors,
	}
	return bundle, auth, nil
}

func offHours(at time.Time, tz string) bool {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	hour := at.In(loc).Hour()
	return hour < 6 || hour >= 23
}
