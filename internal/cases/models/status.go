package models

import (
	"strings"

	dErrors "caseverify/pkg/domain-errors"
)

// LegalStatus is the protection category of an individual.
type LegalStatus string

const (
	LegalStatusRefugee      LegalStatus = "Refugee"
	LegalStatusAsylumSeeker LegalStatus = "Asylum Seeker"
)

// ParseLegalStatus parses a stored or user-supplied legal status.
// Matching ignores case, spaces, underscores and hyphens so legacy
// spellings ("asylum seeker", "AsylumSeeker") resolve to one value.
func ParseLegalStatus(s string) (LegalStatus, error) {
	switch fold(s) {
	case "refugee":
		return LegalStatusRefugee, nil
	case "asylumseeker", "asylum":
		return LegalStatusAsylumSeeker, nil
	}
	return "", dErrors.New(dErrors.CodeInvariantViolation, "unknown legal status: "+s)
}

func (s LegalStatus) IsValid() bool {
	return s == LegalStatusRefugee || s == LegalStatusAsylumSeeker
}

func (s LegalStatus) String() string {
	return string(s)
}

// ProcessStatus is the lifecycle position of a case.
type ProcessStatus string

const (
	ProcessStatusActive            ProcessStatus = "Active"
	ProcessStatusClosed            ProcessStatus = "Closed"
	ProcessStatusBenefitsProcessed ProcessStatus = "Benefits Processed"
	ProcessStatusRejected          ProcessStatus = "Rejected"
)

// ParseProcessStatus parses a stored or user-supplied process status using
// the same folding rules as ParseLegalStatus.
func ParseProcessStatus(s string) (ProcessStatus, error) {
	switch fold(s) {
	case "active":
		return ProcessStatusActive, nil
	case "closed":
		return ProcessStatusClosed, nil
	case "benefitsprocessed":
		return ProcessStatusBenefitsProcessed, nil
	case "rejected":
		return ProcessStatusRejected, nil
	}
	return "", dErrors.New(dErrors.CodeInvariantViolation, "unknown process status: "+s)
}

func (s ProcessStatus) IsValid() bool {
	switch s {
	case ProcessStatusActive, ProcessStatusClosed, ProcessStatusBenefitsProcessed, ProcessStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions leave s.
func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessStatusBenefitsProcessed || s == ProcessStatusRejected
}

// CanTransitionTo encodes the forward-only lifecycle:
//
//	Active -> Closed -> BenefitsProcessed
//	Active | Closed -> Rejected
func (s ProcessStatus) CanTransitionTo(target ProcessStatus) bool {
	switch s {
	case ProcessStatusActive:
		return target == ProcessStatusClosed || target == ProcessStatusRejected
	case ProcessStatusClosed:
		return target == ProcessStatusBenefitsProcessed || target == ProcessStatusRejected
	}
	return false
}

func (s ProcessStatus) String() string {
	return string(s)
}

func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
