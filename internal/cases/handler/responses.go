package handler

import (
	"fmt"
	"time"

	"caseverify/internal/cases/models"
	"caseverify/internal/cases/service"
	"caseverify/internal/eligibility"
	dErrors "caseverify/pkg/domain-errors"
)

const issueDateLayout = "2006-01-02 15:04:05"

// CaseView is the public shape of a case.
type CaseView struct {
	IndividualNumber  string `json:"individual_number"`
	FullName          string `json:"full_name"`
	FamilyGroupNumber string `json:"family_group_number"`
	FamilySize        int    `json:"family_size"`
	Age               int    `json:"age"`
	Gender            string `json:"gender"`
	CountryOfOrigin   string `json:"country_of_origin"`
	LegalStatus       string `json:"legal_status"`
	ProcessStatus     string `json:"process_status"`
	LocationAddress   string `json:"location_address"`
	DateOfBirth       string `json:"date_of_birth"`
	RegistrationDate  string `json:"registration_date"`
	NSSFNumber        string `json:"nssf_number,omitempty"`
}

// OutcomeResponse is returned by verification and action endpoints.
// Inactive, AsylumSeeker and Minor mirror the outcome as flags for form
// clients that branch on them.
type OutcomeResponse struct {
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	Eligible      bool      `json:"eligible"`
	Outcome       string    `json:"outcome"`
	Message       string    `json:"message"`
	Details       string    `json:"details,omitempty"`
	Individual    *CaseView `json:"individual,omitempty"`
	NSSFNumber    string    `json:"nssf_number,omitempty"`
	AlreadyIssued bool      `json:"already_issued,omitempty"`
	Rejected      bool      `json:"rejected,omitempty"`
	Inactive      bool      `json:"inactive,omitempty"`
	AsylumSeeker  bool      `json:"asylum_seeker,omitempty"`
	Minor         bool      `json:"minor,omitempty"`
}

// IssueResponse is returned by the issuance endpoints.
type IssueResponse struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	NSSFNumber    string    `json:"nssf_number"`
	AlreadyIssued bool      `json:"already_issued"`
	Individual    *CaseView `json:"individual"`
}

// BenefitsResponse is returned by /process-benefits.
type BenefitsResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Individual *CaseView `json:"individual"`
}

// CaseDetailsResponse is returned by GET /cases/{individualNumber}.
type CaseDetailsResponse struct {
	Success          bool      `json:"success"`
	Outcome          string    `json:"outcome"`
	EligibleNSSF     bool      `json:"eligible_nssf"`
	EligibleBenefits bool      `json:"eligible_benefits"`
	Individual       *CaseView `json:"individual"`
}

// IssuedRecordView is one row of /nssf-records.
type IssuedRecordView struct {
	NSSFNumber       string  `json:"nssf_number"`
	IndividualNumber string  `json:"individual_number"`
	FullName         string  `json:"full_name"`
	Age              int     `json:"age"`
	ProcessStatus    string  `json:"process_status"`
	LegalStatus      string  `json:"legal_status"`
	CountryOfOrigin  string  `json:"country_of_origin"`
	IssueDate        *string `json:"issue_date"`
}

type IssuedRecordsResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Records []IssuedRecordView `json:"records"`
}

func toCaseView(c *models.Case) *CaseView {
	if c == nil {
		return nil
	}
	return &CaseView{
		IndividualNumber:  c.IndividualNumber,
		FullName:          c.FullName,
		FamilyGroupNumber: c.FamilyGroupNumber,
		FamilySize:        c.FamilySize,
		Age:               c.Age,
		Gender:            c.Gender,
		CountryOfOrigin:   c.CountryOfOrigin,
		LegalStatus:       c.LegalStatus.String(),
		ProcessStatus:     c.ProcessStatus.String(),
		LocationAddress:   c.LocationAddress,
		DateOfBirth:       c.DateOfBirth,
		RegistrationDate:  c.RegistrationDate,
		NSSFNumber:        c.IssuedNumber,
	}
}

// toOutcomeResponse describes an evaluated case. Success reports eligibility
// for a further action, not whether the lookup worked.
func toOutcomeResponse(c *models.Case, outcome eligibility.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Success:    outcome.Eligible(),
		Eligible:   outcome.Eligible(),
		Outcome:    outcome.String(),
		Individual: toCaseView(c),
	}
	switch outcome {
	case eligibility.OutcomeEligibleForIssuance:
		resp.Message = "Individual is a Recognized Active Refugee in Uganda"
	case eligibility.OutcomeEligibleForBenefits:
		resp.Message = "Case is closed and eligible for benefits processing"
		resp.Details = fmt.Sprintf("Status: %s, Legal: %s", c.ProcessStatus, c.LegalStatus)
	case eligibility.OutcomeAlreadyIssued:
		resp.Message = "NSSF number already issued"
		resp.NSSFNumber = c.IssuedNumber
	case eligibility.OutcomeMinor:
		resp.Minor = true
		resp.Message = "Individual is a Minor"
		resp.Details = fmt.Sprintf("Age: %d years. Cannot issue NSSF to individuals below %d years.", c.Age, models.MinimumIssuanceAge)
	case eligibility.OutcomeNotEligibleAsylumSeeker:
		resp.AsylumSeeker = true
		resp.Message = "Case found"
		resp.Details = "Individual is not yet eligible for NSSF Number because they are still an Asylum Seeker"
	default:
		resp.Inactive = true
		resp.Message = "Case found but not eligible for NSSF"
		resp.Details = fmt.Sprintf("Status: %s, Legal: %s", c.ProcessStatus, c.LegalStatus)
	}
	return resp
}

func notFoundResponse(individualNumber string) OutcomeResponse {
	return OutcomeResponse{
		Error:   string(dErrors.CodeNotFound),
		Outcome: eligibility.OutcomeNotFound.String(),
		Message: "Individual not found",
		Details: fmt.Sprintf("No case registered under %s", individualNumber),
	}
}

func issueMessage(alreadyIssued bool) string {
	if alreadyIssued {
		return "NSSF number already issued"
	}
	return "NSSF number successfully issued"
}

func toIssueResponse(result *service.IssueResult) IssueResponse {
	return IssueResponse{
		Success:       true,
		Message:       issueMessage(result.AlreadyIssued),
		NSSFNumber:    result.IssuedNumber,
		AlreadyIssued: result.AlreadyIssued,
		Individual:    toCaseView(result.Case),
	}
}

func toActResponse(result *service.ActResult) OutcomeResponse {
	if result.Rejected {
		resp := toOutcomeResponse(result.Case, result.Outcome)
		resp.Rejected = true
		resp.Message = "Case rejected: " + resp.Message
		return resp
	}
	switch {
	case result.Action == eligibility.ActionIssue && result.IssuedNumber != "":
		resp := toOutcomeResponse(result.Case, result.Outcome)
		resp.Success = true
		resp.NSSFNumber = result.IssuedNumber
		resp.AlreadyIssued = result.AlreadyIssued
		resp.Message = issueMessage(result.AlreadyIssued)
		resp.Details = ""
		return resp
	case result.Action == eligibility.ActionBenefits && result.Case.ProcessStatus == models.ProcessStatusBenefitsProcessed:
		resp := toOutcomeResponse(result.Case, result.Outcome)
		resp.Success = true
		resp.Message = "Benefits processed"
		resp.Details = ""
		return resp
	}
	return toOutcomeResponse(result.Case, result.Outcome)
}

func toIssuedRecordsResponse(records []service.IssuedRecord) IssuedRecordsResponse {
	views := make([]IssuedRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, IssuedRecordView{
			NSSFNumber:       r.Case.IssuedNumber,
			IndividualNumber: r.Case.IndividualNumber,
			FullName:         r.Case.FullName,
			Age:              r.Case.Age,
			ProcessStatus:    r.Case.ProcessStatus.String(),
			LegalStatus:      r.Case.LegalStatus.String(),
			CountryOfOrigin:  r.Case.CountryOfOrigin,
			IssueDate:        formatIssueDate(r.IssueDate),
		})
	}
	return IssuedRecordsResponse{Success: true, Count: len(views), Records: views}
}

func formatIssueDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(issueDateLayout)
	return &s
}
