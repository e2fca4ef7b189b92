// Package store provides the case store backends: in-memory, SQLite and
// PostgreSQL. All of them normalize legal and process status on read and
// only write lifecycle columns (process status, issued number, updated at)
// from Execute.
package store

import (
	"fmt"

	"caseverify/internal/cases/models"
	"caseverify/pkg/platform/sentinel"
)

func applyStatuses(c *models.Case, legalStatus, processStatus string) error {
	ls, err := models.ParseLegalStatus(legalStatus)
	if err != nil {
		return fmt.Errorf("case %s legal status %q: %w", c.IndividualNumber, legalStatus, sentinel.ErrInvalidState)
	}
	ps, err := models.ParseProcessStatus(processStatus)
	if err != nil {
		return fmt.Errorf("case %s process status %q: %w", c.IndividualNumber, processStatus, sentinel.ErrInvalidState)
	}
	c.LegalStatus = ls
	c.ProcessStatus = ps
	return nil
}

// checkLifecycleWrite guards the invariants a mutate callback must not break.
func checkLifecycleWrite(current, working *models.Case) error {
	if working.IndividualNumber != current.IndividualNumber {
		return fmt.Errorf("individual number is immutable: %w", sentinel.ErrInvalidState)
	}
	if current.HasIssuedNumber() && working.IssuedNumber != current.IssuedNumber {
		return fmt.Errorf("issued number is write-once: %w", sentinel.ErrAlreadyUsed)
	}
	if working.ProcessStatus != current.ProcessStatus && !current.ProcessStatus.CanTransitionTo(working.ProcessStatus) {
		return fmt.Errorf("transition %s -> %s: %w", current.ProcessStatus, working.ProcessStatus, sentinel.ErrInvalidState)
	}
	return nil
}
