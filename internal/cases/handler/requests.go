package handler

import (
	"net/url"
	"strings"

	"caseverify/internal/cases/models"
	"caseverify/internal/eligibility"
	dErrors "caseverify/pkg/domain-errors"
)

// identifierFields are the form field names accepted for the identifier, in
// lookup order.
var identifierFields = []string{"INDIVIDUAL_ID", "individual_id", "individual_number"}

// CaseRequest identifies a case and, for /verify-case, an optional action.
type CaseRequest struct {
	IndividualNumber string `json:"individual_number"`
	Action           string `json:"action,omitempty"`

	action eligibility.Action
}

func (r *CaseRequest) BindForm(values url.Values) {
	for _, field := range identifierFields {
		if v := values.Get(field); v != "" {
			r.IndividualNumber = v
			break
		}
	}
	r.Action = values.Get("action")
}

// Validate normalizes the identifier and parses the action.
func (r *CaseRequest) Validate() error {
	n, err := models.NormalizeIndividualNumber(r.IndividualNumber)
	if err != nil {
		return err
	}
	r.IndividualNumber = n

	action, ok := eligibility.ParseAction(strings.ToLower(strings.TrimSpace(r.Action)))
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "action must be one of verify, issue, benefits")
	}
	r.action = action
	return nil
}
