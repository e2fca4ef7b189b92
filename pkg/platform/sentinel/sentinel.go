package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: case does not exist in store
// - ErrConflict: a unique value (issued number, individual number) is already taken
// - ErrAlreadyUsed: a write-once field was already set by a concurrent writer
// - ErrInvalidState: stored row cannot be mapped onto a valid case
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
)
