package compliance

import (
	"testing"
	"time"
)

func validContract() ContractData {
	return ContractData{
		Title:       "Hop dong thue nha / Residential Lease",
		PropertyRef: "listing-42",
		Purpose:     "residential",
		Landlord: Party{
			FullName:         "Tran Thi Binh",
			IDNumber:         "079180004321",
			BirthDate:        time.Date(1980, 2, 11, 0, 0, 0, 0, time.UTC),
			VoluntaryConsent: true,
		},
		Tenant: Party{
			FullName:         "Nguyen Van An",
			IDNumber:         "079203001234",
			BirthDate:        time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC),
			VoluntaryConsent: true,
		},
		MonthlyRent:   8500000,
		DepositAmount: 17000000,
		Currency:      "VND",
		PaymentDay:    5,
		StartDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidContractPassesAllFiveConditions(t *testing.T) {
	report := ValidateLegalRequirements(validContract())
	if !report.IsValid {
		t.Fatalf("valid contract rejected: %v", report.Errors)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	f := report.Flags
	if !f.RequiredElements || !f.LegalCapacity || !f.Voluntariness || !f.LawfulPurpose || !f.CorrectForm {
		t.Fatalf("flags not all set: %+v", f)
	}
}

// Flipping any single condition must flip IsValid and add exactly one error.
func TestEachConditionFailsIndependently(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ContractData)
		flag   func(Flags) bool
	}{
		{"missing title", func(d *ContractData) { d.Title = "" }, func(f Flags) bool { return f.RequiredElements }},
		{"zero rent", func(d *ContractData) { d.MonthlyRent = 0 }, func(f Flags) bool { return f.RequiredElements }},
		{"minor tenant", func(d *ContractData) {
			d.Tenant.BirthDate = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
		}, func(f Flags) bool { return f.LegalCapacity }},
		{"no landlord id", func(d *ContractData) { d.Landlord.IDNumber = "" }, func(f Flags) bool { return f.LegalCapacity }},
		{"no consent", func(d *ContractData) { d.Tenant.VoluntaryConsent = false }, func(f Flags) bool { return f.Voluntariness }},
		{"empty purpose", func(d *ContractData) { d.Purpose = "" }, func(f Flags) bool { return f.LawfulPurpose }},
		{"prohibited purpose", func(d *ContractData) { d.Purpose = "gambling" }, func(f Flags) bool { return f.LawfulPurpose }},
		{"end before start", func(d *ContractData) { d.EndDate = d.StartDate.AddDate(0, 0, -1) }, func(f Flags) bool { return f.CorrectForm }},
		{"payment day out of range", func(d *ContractData) { d.PaymentDay = 32 }, func(f Flags) bool { return f.CorrectForm }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := validContract()
			tc.mutate(&data)
			report := ValidateLegalRequirements(data)
			if report.IsValid {
				t.Fatal("invalid contract accepted")
			}
			if len(report.Errors) != 1 {
				t.Fatalf("errors = %v, want exactly one", report.Errors)
			}
			if tc.flag(report.Flags) {
				t.Fatalf("flag for failing condition still set: %+v", report.Flags)
			}
		})
	}
}

func TestLongTermAndHighDepositWarn(t *testing.T) {
	data := validContract()
	data.EndDate = data.StartDate.AddDate(6, 0, 0)
	data.DepositAmount = 4 * data.MonthlyRent
	report := ValidateLegalRequirements(data)
	if !report.IsValid {
		t.Fatalf("warnings must not fail validation: %v", report.Errors)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("warnings = %v, want notarization and deposit warnings", report.Warnings)
	}
}
