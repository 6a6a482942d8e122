package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

func TestCreateDraftGeneratesCodeAndAudits(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	if !strings.HasPrefix(c.Code, "HD-") {
		t.Fatalf("code = %q, want HD- prefix", c.Code)
	}
	if c.Status != types.StatusDraft {
		t.Fatalf("status = %q, want draft", c.Status)
	}

	entries, err := f.audit.ListByContract(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != types.AuditContractCreated {
		t.Fatalf("audit entries = %+v", entries)
	}
}

func TestCreateDraftRejectsMinorTenant(t *testing.T) {
	f := newServiceFixture(t)
	f.directory.parties[f.tenantID].BirthDate = time.Now().UTC().AddDate(-16, 0, 0)

	_, err := f.contractSvc.CreateDraft(context.Background(), CreateDraftInput{
		Title:       "Hop dong thue can ho 12A",
		LandlordID:  f.landlordID,
		TenantID:    f.tenantID,
		PropertyRef: "listing-42",
		Terms: types.FinancialTerms{
			MonthlyRent: 12_000_000, DepositAmount: 24_000_000, Currency: "VND", PaymentDay: 5,
		},
		StartDate: time.Now().UTC().AddDate(0, 0, 7),
		EndDate:   time.Now().UTC().AddDate(1, 0, 7),
		Actor:     f.actor(f.landlordID),
	})

	var ce *ComplianceError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ComplianceError", err)
	}
	if ce.Report.Flags.LegalCapacity {
		t.Fatal("legal capacity flag should fail")
	}
}

func TestCreateDraftRejectsProhibitedPurpose(t *testing.T) {
	f := newServiceFixture(t)
	f.directory.property.Purpose = "gambling"

	_, err := f.contractSvc.CreateDraft(context.Background(), CreateDraftInput{
		Title:       "Hop dong thue can ho 12A",
		LandlordID:  f.landlordID,
		TenantID:    f.tenantID,
		PropertyRef: "listing-42",
		Terms: types.FinancialTerms{
			MonthlyRent: 12_000_000, DepositAmount: 24_000_000, Currency: "VND", PaymentDay: 5,
		},
		StartDate: time.Now().UTC().AddDate(0, 0, 7),
		EndDate:   time.Now().UTC().AddDate(1, 0, 7),
		Actor:     f.actor(f.landlordID),
	})

	var ce *ComplianceError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ComplianceError", err)
	}
	if ce.Report.Flags.LawfulPurpose {
		t.Fatal("lawful purpose flag should fail")
	}
}

func TestGetByCodeUnknown(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.contractSvc.GetByCode(context.Background(), "HD-2026-000000"); !errors.Is(err, types.ErrContractNotFound) {
		t.Fatalf("err = %v, want ErrContractNotFound", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)
	f.signParty(t, c.Code, f.landlordID)
	actor := f.actor(f.landlordID)

	steps := []struct {
		name string
		op   func() (*types.Contract, error)
		want types.Status
	}{
		{"suspend", func() (*types.Contract, error) {
			return f.contractSvc.Suspend(context.Background(), c.Code, "unpaid rent", actor)
		}, types.StatusSuspended},
		{"resume", func() (*types.Contract, error) {
			return f.contractSvc.Resume(context.Background(), c.Code, "rent settled", actor)
		}, types.StatusActive},
		{"request renewal", func() (*types.Contract, error) {
			return f.contractSvc.RequestRenewal(context.Background(), c.Code, actor)
		}, types.StatusPendingRenewal},
		{"renew", func() (*types.Contract, error) { return f.contractSvc.Renew(context.Background(), c.Code, actor) }, types.StatusRenewed},
		{"activate", func() (*types.Contract, error) { return f.contractSvc.Activate(context.Background(), c.Code, actor) }, types.StatusActive},
		{"terminate", func() (*types.Contract, error) {
			return f.contractSvc.Terminate(context.Background(), c.Code, "mutual agreement", actor)
		}, types.StatusTerminated},
	}
	for _, step := range steps {
		got, err := step.op()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got.Status != step.want {
			t.Fatalf("%s: status = %q, want %q", step.name, got.Status, step.want)
		}
	}

	// Terminated is terminal.
	if _, err := f.contractSvc.Resume(context.Background(), c.Code, "too late", actor); !errors.Is(err, types.ErrInvalidStateTransition) {
		t.Fatalf("resume after terminate: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestTransitionRejectsDisallowedEdge(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	if _, err := f.contractSvc.Suspend(context.Background(), c.Code, "nope", f.actor(f.landlordID)); !errors.Is(err, types.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want ErrInvalidStateTransition", err)
	}

	got, err := f.contractSvc.GetByCode(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != types.StatusDraft {
		t.Fatalf("status mutated to %q", got.Status)
	}
}

func TestComplianceReportForStoredContract(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	report, err := f.contractSvc.ComplianceReport(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("compliance report: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("report invalid: %+v", report.Errors)
	}
}

func TestCreateDraftValidatesInput(t *testing.T) {
	f := newServiceFixture(t)
	shared := uuid.New()

	_, err := f.contractSvc.CreateDraft(context.Background(), CreateDraftInput{
		Title:       "x",
		LandlordID:  shared,
		TenantID:    shared,
		PropertyRef: "listing-42",
	})
	if err == nil {
		t.Fatal("identical parties accepted")
	}
}
