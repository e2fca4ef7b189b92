package audit

import "time"

// ActionIssued is recorded for every committed issuance.
const ActionIssued = "ISSUED"

// TimestampLayout is the layout of the Timestamp column of the issuance log.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is one issuance event. It is a snapshot of the case taken right
// after the issuance committed. Keep it transport-agnostic so sinks can fan out.
type Entry struct {
	EventID          string    `json:"event_id"`
	IssuedNumber     string    `json:"nssf_number"`
	IndividualNumber string    `json:"individual_number"`
	FullName         string    `json:"full_name"`
	Age              int       `json:"age"`
	LegalStatus      string    `json:"legal_status"`
	CountryOfOrigin  string    `json:"country_of_origin"`
	ProcessStatus    string    `json:"process_status"`
	Action           string    `json:"action"`
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id,omitempty"`
}
