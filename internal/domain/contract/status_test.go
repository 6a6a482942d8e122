package contract

import (
	"testing"

	"github.com/google/uuid"
)

func TestTransitionTableCoversAllStates(t *testing.T) {
	for _, s := range AllStatuses() {
		if !s.Valid() {
			t.Fatalf("status %q missing from transition table", s)
		}
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, s := range AllStatuses() {
		if s.Terminal() && len(TransitionsFrom(s)) != 0 {
			t.Fatalf("terminal status %q has outgoing edges %v", s, TransitionsFrom(s))
		}
	}
}

func TestCorePath(t *testing.T) {
	path := []Status{StatusDraft, StatusPendingSignature, StatusPartiallySigned, StatusActive}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("core path edge %s -> %s not allowed", path[i], path[i+1])
		}
	}
}

func TestDraftCannotSkipToActive(t *testing.T) {
	if CanTransition(StatusDraft, StatusActive) {
		t.Fatal("draft -> active must not be a direct edge")
	}
	if CanTransition(StatusPendingSignature, StatusActive) {
		t.Fatal("pending_signature -> active must not be a direct edge")
	}
}

func TestRenewalPath(t *testing.T) {
	if !CanTransition(StatusActive, StatusPendingRenewal) {
		t.Fatal("active -> pending_renewal must be allowed")
	}
	if !CanTransition(StatusPendingRenewal, StatusRenewed) {
		t.Fatal("pending_renewal -> renewed must be allowed")
	}
	if !CanTransition(StatusPendingRenewal, StatusExpired) {
		t.Fatal("pending_renewal -> expired must be allowed")
	}
	if CanTransition(StatusPendingRenewal, StatusActive) {
		t.Fatal("pending_renewal -> active must not be allowed")
	}
}

func TestSignerRole(t *testing.T) {
	c := &Contract{LandlordID: uuid.New(), TenantID: uuid.New()}

	role, ok := c.SignerRole(c.LandlordID)
	if !ok || role != RoleLandlord {
		t.Fatalf("landlord lookup = %v, %v", role, ok)
	}
	role, ok = c.SignerRole(c.TenantID)
	if !ok || role != RoleTenant {
		t.Fatalf("tenant lookup = %v, %v", role, ok)
	}
	if _, ok := c.SignerRole(uuid.New()); ok {
		t.Fatal("stranger must not resolve to a role")
	}
}

func TestRoleCounterpart(t *testing.T) {
	got, err := RoleLandlord.Counterpart()
	if err != nil || got != RoleTenant {
		t.Fatalf("landlord counterpart = %v, %v", got, err)
	}
	got, err = RoleTenant.Counterpart()
	if err != nil || got != RoleLandlord {
		t.Fatalf("tenant counterpart = %v, %v", got, err)
	}
	if _, err := Role("witness").Counterpart(); err == nil {
		t.Fatal("unknown role must error")
	}
}
