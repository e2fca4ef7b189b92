// Package eligibility decides what a case qualifies for.
package eligibility

import "caseverify/internal/cases/models"

// Evaluate applies the eligibility rule chain to a case.
// This is pure domain logic - no I/O, no side effects.
//
// Rule priority (first match wins):
//  1. Missing case
//  2. Issued number already assigned
//  3. Active refugee: minor, otherwise eligible for issuance
//  4. Active asylum seeker
//  5. Closed refugee: eligible for benefits
//  6. Anything else is inactive
func Evaluate(c *models.Case) Outcome {
	if c == nil {
		return OutcomeNotFound
	}
	if c.HasIssuedNumber() {
		return OutcomeAlreadyIssued
	}

	switch c.ProcessStatus {
	case models.ProcessStatusActive:
		return evaluateActive(c)
	case models.ProcessStatusClosed:
		if c.LegalStatus == models.LegalStatusRefugee {
			return OutcomeEligibleForBenefits
		}
	}
	return OutcomeInactive
}

func evaluateActive(c *models.Case) Outcome {
	if c.LegalStatus == models.LegalStatusRefugee {
		if c.IsMinor() {
			return OutcomeMinor
		}
		return OutcomeEligibleForIssuance
	}
	return OutcomeNotEligibleAsylumSeeker
}

// Action is an operation a caller can request against a case.
type Action string

const (
	ActionVerify   Action = "verify"
	ActionIssue    Action = "issue"
	ActionBenefits Action = "benefits"
)

// ParseAction accepts the action names used by the verification form.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case "", ActionVerify:
		return ActionVerify, true
	case ActionIssue, "nssf", "process-nssf", "issue_nssf", "issue-nssf":
		return ActionIssue, true
	case ActionBenefits, "process-benefits", "process_benefits":
		return ActionBenefits, true
	}
	return "", false
}

// ShouldReject reports whether requesting action on a case with outcome o
// rejects the case. Verification alone never mutates.
func ShouldReject(action Action, o Outcome) bool {
	if action == ActionVerify {
		return false
	}
	return o.Rejectable()
}
