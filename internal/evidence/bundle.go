// Package evidence assembles the legal evidence bundle attached to every
// signature record: who signed, how they were authenticated, under what
// device and network context, and the hashes binding the signature to the
// contract content. Everything here is deterministic — all timestamps come
// in as inputs, never from the wall clock.
package evidence

import (
	"time"

	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
)

// AuthMethodOTP is the only authentication method this subsystem produces.
const AuthMethodOTP = "OTP"

type SignerIdentity struct {
	FullName   string    `json:"full_name"`
	IDNumber   string    `json:"id_number"`
	IDIssuedBy string    `json:"id_issued_by,omitempty"`
	IDIssuedAt time.Time `json:"id_issued_at,omitempty"`
	BirthDate  time.Time `json:"birth_date"`

	PermanentAddress string `json:"permanent_address,omitempty"`
	ContactAddress   string `json:"contact_address,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
}

// AuthenticationEvidence records the OTP challenge outcome. ChannelTarget is
// always stored masked; the unmasked target never leaves the session row.
type AuthenticationEvidence struct {
	Method        string    `json:"method"`
	ChannelTarget string    `json:"channel_target"`
	CodeSentAt    time.Time `json:"code_sent_at"`
	VerifiedAt    time.Time `json:"verified_at"`
	AttemptsUsed  int       `json:"attempts_used"`
	MaxAttempts   int       `json:"max_attempts"`
}

type DeviceInfo struct {
	UserAgent    string `json:"user_agent"`
	Class        string `json:"class"`
	OS           string `json:"os"`
	Browser      string `json:"browser"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
}

type NetworkInfo struct {
	IP             string `json:"ip"`
	ApproxLocation string `json:"approx_location,omitempty"`
}

type SigningContext struct {
	Timestamp time.Time   `json:"timestamp"`
	Timezone  string      `json:"timezone"`
	Device    DeviceInfo  `json:"device"`
	Network   NetworkInfo `json:"network"`
}

// IntegritySection binds the signature to the contract: the hash of the
// canvas capture, the hash of the canonical contract content at signing
// time, and the capture measurements themselves.
type IntegritySection struct {
	ImageHash   string `json:"image_hash"`
	ContentHash string `json:"content_hash"`
	StrokeCount int    `json:"stroke_count,omitempty"`
	DurationMs  int    `json:"duration_ms,omitempty"`
	ImageWidth  int    `json:"image_width,omitempty"`
	ImageHeight int    `json:"image_height,omitempty"`
}

// Bundle is the four-part evidence record stored verbatim on the signature.
type Bundle struct {
	Signer         SignerIdentity         `json:"signer"`
	Authentication AuthenticationEvidence `json:"authentication"`
	Context        SigningContext         `json:"context"`
	Integrity      IntegritySection       `json:"integrity"`
}

// Hash fingerprints the bundle over its canonical JSON form.
func (b Bundle) Hash() (string, error) {
	return canonhash.Hash(b)
}

// AuthenticationData is the parallel classification record: provider
// heuristics, session timing, and the rule-based risk score.
type AuthenticationData struct {
	Provider        string   `json:"provider"`
	SessionDuration float64  `json:"session_duration_seconds"`
	RiskScore       int      `json:"risk_score"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
}
