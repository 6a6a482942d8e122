package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rentline-backend/internal/compliance"
	"github.com/yungbote/rentline-backend/internal/evidence"
)

// PartyProfile is the identity slice of one contract party as the
// surrounding platform knows it. The signing core never stores these fields;
// they are resolved at draft validation and at signing time and snapshotted
// into the compliance report and the evidence bundle.
type PartyProfile struct {
	UserID     uuid.UUID
	FullName   string
	IDNumber   string
	IDIssuedBy string
	IDIssuedAt time.Time
	BirthDate  time.Time

	PermanentAddress string
	ContactAddress   string
	Phone            string
	Email            string

	// ConsentRecorded is the platform's record of the party's declared
	// voluntary consent to electronic contracting.
	ConsentRecorded bool
}

// SignerIdentity projects the profile into the evidence bundle shape.
func (p *PartyProfile) SignerIdentity() evidence.SignerIdentity {
	return evidence.SignerIdentity{
		FullName:         p.FullName,
		IDNumber:         p.IDNumber,
		IDIssuedBy:       p.IDIssuedBy,
		IDIssuedAt:       p.IDIssuedAt,
		BirthDate:        p.BirthDate,
		PermanentAddress: p.PermanentAddress,
		ContactAddress:   p.ContactAddress,
		Phone:            p.Phone,
		Email:            p.Email,
	}
}

// ComplianceParty projects the profile into the statutory check shape.
func (p *PartyProfile) ComplianceParty() compliance.Party {
	return compliance.Party{
		FullName:         p.FullName,
		IDNumber:         p.IDNumber,
		BirthDate:        p.BirthDate,
		VoluntaryConsent: p.ConsentRecorded,
	}
}

// ChannelTargetFor returns the dispatch target for a code channel, empty
// when the profile has none on file.
func (p *PartyProfile) ChannelTargetFor(channel string) string {
	switch channel {
	case "sms":
		return p.Phone
	case "email":
		return p.Email
	default:
		return ""
	}
}

// PropertyInfo is the listing slice the contract document and the statutory
// checks need.
type PropertyInfo struct {
	Ref        string
	Address    string
	Purpose    string
	HouseRules []string
}

// PartyDirectory resolves parties and listed properties from the platform's
// user and listing services. The signing core stores only IDs and references;
// everything displayable comes through here.
type PartyDirectory interface {
	GetParty(ctx context.Context, id uuid.UUID) (*PartyProfile, error)
	GetProperty(ctx context.Context, ref string) (*PropertyInfo, error)
}
