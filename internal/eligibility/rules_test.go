package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"caseverify/internal/cases/models"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		c        *models.Case
		expected Outcome
	}{
		{
			name:     "missing case",
			c:        nil,
			expected: OutcomeNotFound,
		},
		{
			name:     "active adult refugee",
			c:        &models.Case{Age: 25, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusActive},
			expected: OutcomeEligibleForIssuance,
		},
		{
			name:     "active refugee aged exactly 18",
			c:        &models.Case{Age: 18, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusActive},
			expected: OutcomeEligibleForIssuance,
		},
		{
			name:     "active minor refugee",
			c:        &models.Case{Age: 12, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusActive},
			expected: OutcomeMinor,
		},
		{
			name:     "issued number beats minor",
			c:        &models.Case{Age: 12, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusActive, IssuedNumber: "NSSF100001"},
			expected: OutcomeAlreadyIssued,
		},
		{
			name:     "issued number on closed case",
			c:        &models.Case{Age: 40, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusClosed, IssuedNumber: "NSSF100002"},
			expected: OutcomeAlreadyIssued,
		},
		{
			name:     "active asylum seeker",
			c:        &models.Case{Age: 30, LegalStatus: models.LegalStatusAsylumSeeker, ProcessStatus: models.ProcessStatusActive},
			expected: OutcomeNotEligibleAsylumSeeker,
		},
		{
			name:     "active minor asylum seeker",
			c:        &models.Case{Age: 9, LegalStatus: models.LegalStatusAsylumSeeker, ProcessStatus: models.ProcessStatusActive},
			expected: OutcomeNotEligibleAsylumSeeker,
		},
		{
			name:     "closed refugee",
			c:        &models.Case{Age: 50, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusClosed},
			expected: OutcomeEligibleForBenefits,
		},
		{
			name:     "closed asylum seeker",
			c:        &models.Case{Age: 50, LegalStatus: models.LegalStatusAsylumSeeker, ProcessStatus: models.ProcessStatusClosed},
			expected: OutcomeInactive,
		},
		{
			name:     "rejected without number",
			c:        &models.Case{Age: 50, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusRejected},
			expected: OutcomeInactive,
		},
		{
			name:     "benefits processed refugee without number",
			c:        &models.Case{Age: 50, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusBenefitsProcessed},
			expected: OutcomeInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.c))
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	c := &models.Case{Age: 30, LegalStatus: models.LegalStatusRefugee, ProcessStatus: models.ProcessStatusActive}
	before := *c
	_ = Evaluate(c)
	_ = Evaluate(c)
	assert.Equal(t, before, *c)
}

func TestShouldReject(t *testing.T) {
	assert.False(t, ShouldReject(ActionVerify, OutcomeNotEligibleAsylumSeeker))
	assert.True(t, ShouldReject(ActionIssue, OutcomeNotEligibleAsylumSeeker))
	assert.True(t, ShouldReject(ActionBenefits, OutcomeInactive))
	assert.False(t, ShouldReject(ActionIssue, OutcomeMinor))
	assert.False(t, ShouldReject(ActionIssue, OutcomeEligibleForIssuance))
	assert.False(t, ShouldReject(ActionBenefits, OutcomeAlreadyIssued))
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"":                 ActionVerify,
		"verify":           ActionVerify,
		"issue":            ActionIssue,
		"issue_nssf":       ActionIssue,
		"process-nssf":     ActionIssue,
		"benefits":         ActionBenefits,
		"process-benefits": ActionBenefits,
	}
	for raw, want := range cases {
		a, ok := ParseAction(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, a, raw)
	}

	_, ok := ParseAction("delete")
	assert.False(t, ok)
}
