package models

import (
	"strings"
	"time"

	dErrors "caseverify/pkg/domain-errors"
)

// DateLayout is the ISO-8601 calendar date format used for stored dates.
const DateLayout = "2006-01-02"

// MinimumIssuanceAge is the youngest age at which a number may be issued.
const MinimumIssuanceAge = 18

const maxIndividualNumberLength = 20

// ErrAlreadyIssued is returned by CanIssue when an issued number exists.
// Issuance treats it as an idempotent success, not a failure.
var ErrAlreadyIssued = dErrors.New(dErrors.CodeConflict, "issued number already assigned")

// Case is one registered individual and the state of their file.
//
// Invariants:
//   - IndividualNumber is upper-case, trimmed, non-empty and never changes
//   - IssuedNumber, once set, is never cleared or replaced
//   - ProcessStatus only moves forward (see ProcessStatus.CanTransitionTo)
type Case struct {
	IndividualNumber  string        `json:"individual_number"`
	FamilyGroupNumber string        `json:"family_group_number"`
	FullName          string        `json:"full_name"`
	FamilySize        int           `json:"family_size"`
	Age               int           `json:"age"`
	Gender            string        `json:"gender"`
	CountryOfOrigin   string        `json:"country_of_origin"`
	LocationAddress   string        `json:"location_address"`
	LegalStatus       LegalStatus   `json:"legal_status"`
	ProcessStatus     ProcessStatus `json:"process_status"`
	DateOfBirth       string        `json:"date_of_birth"`
	RegistrationDate  string        `json:"registration_date"`
	IssuedNumber      string        `json:"issued_number,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NormalizeIndividualNumber upper-cases and trims a lookup key.
func NormalizeIndividualNumber(raw string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if n == "" {
		return "", dErrors.New(dErrors.CodeValidation, "individual number is required")
	}
	if len(n) > maxIndividualNumberLength {
		return "", dErrors.New(dErrors.CodeValidation, "individual number must be at most 20 characters")
	}
	return n, nil
}

// Validate checks the structural invariants of a case before it is stored.
func (c *Case) Validate() error {
	n, err := NormalizeIndividualNumber(c.IndividualNumber)
	if err != nil {
		return err
	}
	if n != c.IndividualNumber {
		return dErrors.New(dErrors.CodeInvariantViolation, "individual number must be normalized")
	}
	if c.Age < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "age cannot be negative")
	}
	if c.FamilySize < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "family size cannot be negative")
	}
	if !c.LegalStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid legal status")
	}
	if !c.ProcessStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid process status")
	}
	for _, d := range []string{c.DateOfBirth, c.RegistrationDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "dates must be YYYY-MM-DD")
		}
	}
	return nil
}

func (c *Case) HasIssuedNumber() bool {
	return c.IssuedNumber != ""
}

func (c *Case) IsActive() bool {
	return c.ProcessStatus == ProcessStatusActive
}

func (c *Case) IsMinor() bool {
	return c.Age < MinimumIssuanceAge
}

// CanIssue checks, in order: already issued, not active, not a refugee, minor.
// Use with ApplyIssuance in Execute callbacks.
func (c *Case) CanIssue() error {
	if c.HasIssuedNumber() {
		return ErrAlreadyIssued
	}
	if !c.IsActive() {
		return dErrors.New(dErrors.CodeNotActive, "case is not active")
	}
	if c.LegalStatus != LegalStatusRefugee {
		return dErrors.New(dErrors.CodeWrongLegalStatus, "only recognized refugees can be issued a number")
	}
	if c.IsMinor() {
		return dErrors.New(dErrors.CodeMinor, "individual is below the minimum issuance age")
	}
	return nil
}

// ApplyIssuance assigns the number and closes the case.
// Call CanIssue first to validate the transition.
func (c *Case) ApplyIssuance(number string, now time.Time) {
	c.IssuedNumber = number
	c.ProcessStatus = ProcessStatusClosed
	c.UpdatedAt = now
}

// CanProcessBenefits requires a closed case belonging to someone who holds a
// number or is a refugee.
func (c *Case) CanProcessBenefits() error {
	if c.ProcessStatus != ProcessStatusClosed {
		return dErrors.New(dErrors.CodeNotClosed, "benefits can only be processed for closed cases")
	}
	if !c.HasIssuedNumber() && c.LegalStatus != LegalStatusRefugee {
		return dErrors.New(dErrors.CodeNotEligible, "case is not eligible for benefits processing")
	}
	return nil
}

// ApplyBenefits moves a closed case to BenefitsProcessed.
func (c *Case) ApplyBenefits(now time.Time) {
	c.ProcessStatus = ProcessStatusBenefitsProcessed
	c.UpdatedAt = now
}

// CanReject allows rejection from any non-terminal status.
func (c *Case) CanReject() error {
	if !c.ProcessStatus.CanTransitionTo(ProcessStatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "case is already in a terminal status")
	}
	return nil
}

// ApplyRejection moves the case to Rejected.
func (c *Case) ApplyRejection(now time.Time) {
	c.ProcessStatus = ProcessStatusRejected
	c.UpdatedAt = now
}

// Clone returns a copy safe to hand out of a store.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
