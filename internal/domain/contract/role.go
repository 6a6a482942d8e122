package contract

import "fmt"

// Role is the closed set of signature slots on a rental contract. Handling
// is exhaustive: code switching on Role must cover both values and reject
// anything else via Valid.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleLandlord, RoleTenant:
		return true
	default:
		return false
	}
}

// Counterpart returns the opposite signature slot.
func (r Role) Counterpart() (Role, error) {
	switch r {
	case RoleLandlord:
		return RoleTenant, nil
	case RoleTenant:
		return RoleLandlord, nil
	default:
		return "", fmt.Errorf("unknown signer role %q", string(r))
	}
}

// RequiredRoles lists every slot that must hold a signature before a
// contract can activate.
func RequiredRoles() []Role {
	return []Role{RoleLandlord, RoleTenant}
}
