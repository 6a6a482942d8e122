// Package compliance holds the statutory rule checks for rental contracts
// and electronic signatures. Every function is pure: inputs in, report out,
// no storage, no clock.
package compliance

import (
	"strings"
	"time"
)

// Adults sign contracts; capacity is checked against the contract start date
// so the result does not drift with the evaluation clock.
const adultAge = 18

// Duration beyond which local regulation expects notarization; crossing it
// is a warning, not a failure.
const notarizationThreshold = 5 * 365 * 24 * time.Hour

// Party is the identity slice compliance needs about one side.
type Party struct {
	FullName         string
	IDNumber         string
	BirthDate        time.Time
	VoluntaryConsent bool
}

// ContractData is the logical contract snapshot under validation.
type ContractData struct {
	Title       string
	PropertyRef string
	Purpose     string

	Landlord Party
	Tenant   Party

	MonthlyRent   float64
	DepositAmount float64
	Currency      string
	PaymentDay    int

	StartDate time.Time
	EndDate   time.Time
}

// Flags itemizes which of the five statutory conditions held.
type Flags struct {
	RequiredElements bool `json:"required_elements"`
	LegalCapacity    bool `json:"legal_capacity"`
	Voluntariness    bool `json:"voluntariness"`
	LawfulPurpose    bool `json:"lawful_purpose"`
	CorrectForm      bool `json:"correct_form"`
}

// Report is transient: it is returned to the caller and logged on failure,
// never persisted.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Flags    Flags    `json:"flags"`
}

var prohibitedPurposes = map[string]bool{
	"gambling":  true,
	"narcotics": true,
	"weapons":   true,
	"smuggling": true,
}

// ValidateLegalRequirements checks the five statutory conditions. IsValid is
// true iff all five hold; each failing condition contributes exactly one
// error.
func ValidateLegalRequirements(data ContractData) Report {
	report := Report{
		Flags: Flags{
			RequiredElements: true,
			LegalCapacity:    true,
			Voluntariness:    true,
			LawfulPurpose:    true,
			CorrectForm:      true,
		},
	}

	if !hasRequiredElements(data) {
		report.Flags.RequiredElements = false
		report.Errors = append(report.Errors, "required elements missing: title, party names, property reference, positive rent, and start date are mandatory")
	}
	if !hasLegalCapacity(data) {
		report.Flags.LegalCapacity = false
		report.Errors = append(report.Errors, "legal capacity not established: both parties must be identified adults at the start date")
	}
	if !data.Landlord.VoluntaryConsent || !data.Tenant.VoluntaryConsent {
		report.Flags.Voluntariness = false
		report.Errors = append(report.Errors, "voluntariness not declared by both parties")
	}
	if !hasLawfulPurpose(data) {
		report.Flags.LawfulPurpose = false
		report.Errors = append(report.Errors, "purpose of use is missing or prohibited")
	}
	if !hasCorrectForm(data) {
		report.Flags.CorrectForm = false
		report.Errors = append(report.Errors, "contract form invalid: term dates, currency, and payment day must be coherent")
	}

	if !data.EndDate.IsZero() && data.EndDate.Sub(data.StartDate) > notarizationThreshold {
		report.Warnings = append(report.Warnings, "term exceeds five years; notarization recommended")
	}
	if data.DepositAmount > 3*data.MonthlyRent && data.MonthlyRent > 0 {
		report.Warnings = append(report.Warnings, "deposit exceeds three months of rent")
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

func hasRequiredElements(data ContractData) bool {
	return strings.TrimSpace(data.Title) != "" &&
		strings.TrimSpace(data.Landlord.FullName) != "" &&
		strings.TrimSpace(data.Tenant.FullName) != "" &&
		strings.TrimSpace(data.PropertyRef) != "" &&
		data.MonthlyRent > 0 &&
		!data.StartDate.IsZero()
}

func hasLegalCapacity(data ContractData) bool {
	ref := data.StartDate
	if ref.IsZero() {
		return false
	}
	return isAdultAt(data.Landlord, ref) && isAdultAt(data.Tenant, ref)
}

func isAdultAt(p Party, ref time.Time) bool {
	if strings.TrimSpace(p.IDNumber) == "" || p.BirthDate.IsZero() {
		return false
	}
	return !p.BirthDate.AddDate(adultAge, 0, 0).After(ref)
}

func hasLawfulPurpose(data ContractData) bool {
	purpose := strings.ToLower(strings.TrimSpace(data.Purpose))
	if purpose == "" {
		return false
	}
	return !prohibitedPurposes[purpose]
}

func hasCorrectForm(data ContractData) bool {
	if data.StartDate.IsZero() || data.EndDate.IsZero() {
		return false
	}
	if !data.EndDate.After(data.StartDate) {
		return false
	}
	if strings.TrimSpace(data.Currency) == "" {
		return false
	}
	return data.PaymentDay >= 1 && data.PaymentDay <= 31
}
