package eligibility

// Outcome is the result of evaluating a case.
type Outcome string

const (
	OutcomeNotFound                Outcome = "NOT_FOUND"
	OutcomeAlreadyIssued           Outcome = "ALREADY_ISSUED"
	OutcomeMinor                   Outcome = "MINOR"
	OutcomeEligibleForIssuance     Outcome = "ELIGIBLE_FOR_ISSUANCE"
	OutcomeNotEligibleAsylumSeeker Outcome = "NOT_ELIGIBLE_ASYLUM_SEEKER"
	OutcomeEligibleForBenefits     Outcome = "ELIGIBLE_FOR_BENEFITS"
	OutcomeInactive                Outcome = "INACTIVE"
)

func (o Outcome) String() string {
	return string(o)
}

// Eligible reports whether the case qualifies for an issuance or benefits action.
func (o Outcome) Eligible() bool {
	return o == OutcomeEligibleForIssuance || o == OutcomeEligibleForBenefits
}

// Rejectable reports whether acting on a case with this outcome should
// reject it. Minors are not rejected since they will become eligible.
func (o Outcome) Rejectable() bool {
	return o == OutcomeNotEligibleAsylumSeeker || o == OutcomeInactive
}
