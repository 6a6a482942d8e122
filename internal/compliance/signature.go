package compliance

import (
	"strings"

	"github.com/yungbote/rentline-backend/internal/evidence"
)

// ValidateElectronicSignature reports whether an evidence bundle satisfies
// the four signature requirements: verified OTP authentication, integrity
// hashes, non-repudiation identity fields, and a signing timestamp.
func ValidateElectronicSignature(bundle evidence.Bundle) bool {
	authenticated := bundle.Authentication.Method == evidence.AuthMethodOTP &&
		!bundle.Authentication.VerifiedAt.IsZero()

	integrity := strings.TrimSpace(bundle.Integrity.ImageHash) != "" &&
		strings.TrimSpace(bundle.Integrity.ContentHash) != ""

	nonRepudiation := strings.TrimSpace(bundle.Signer.IDNumber) != "" &&
		strings.TrimSpace(bundle.Authentication.ChannelTarget) != "" &&
		!bundle.Authentication.VerifiedAt.IsZero()

	timestamped := !bundle.Context.Timestamp.IsZero()

	return authenticated && integrity && nonRepudiation && timestamped
}

// requiredPaths is the fixed metadata checklist. Paths use dotted notation
// matching the bundle's JSON shape.
var requiredPaths = []string{
	"signer.full_name",
	"signer.id_number",
	"signer.birth_date",
	"authentication.method",
	"authentication.channel_target",
	"authentication.verified_at",
	"context.timestamp",
	"context.timezone",
	"context.device.user_agent",
	"context.network.ip",
	"integrity.image_hash",
	"integrity.content_hash",
}

// ValidateMetadata returns the required paths absent from the bundle. An
// empty result means the bundle is fully compliant.
func ValidateMetadata(bundle evidence.Bundle) []string {
	var missing []string
	for _, path := range requiredPaths {
		if !pathPresent(bundle, path) {
			missing = append(missing, path)
		}
	}
	return missing
}

func pathPresent(b evidence.Bundle, path string) bool {
	switch path {
	case "signer.full_name":
		return strings.TrimSpace(b.Signer.FullName) != ""
	case "signer.id_number":
		return strings.TrimSpace(b.Signer.IDNumber) != ""
	case "signer.birth_date":
		return !b.Signer.BirthDate.IsZero()
	case "authentication.method":
		return strings.TrimSpace(b.Authentication.Method) != ""
	case "authentication.channel_target":
		return strings.TrimSpace(b.Authentication.ChannelTarget) != ""
	case "authentication.verified_at":
		return !b.Authentication.VerifiedAt.IsZero()
	case "context.timestamp":
		return !b.Context.Timestamp.IsZero()
	case "context.timezone":
		return strings.TrimSpace(b.Context.Timezone) != ""
	case "context.device.user_agent":
		return strings.TrimSpace(b.Context.Device.UserAgent) != ""
	case "context.network.ip":
		return strings.TrimSpace(b.Context.Network.IP) != ""
	case "integrity.image_hash":
		return strings.TrimSpace(b.Integrity.ImageHash) != ""
	case "integrity.content_hash":
		return strings.TrimSpace(b.Integrity.ContentHash) != ""
	default:
		return false
	}
}
