package service

import (
	"context"
	"errors"

	dErrors "caseverify/pkg/domain-errors"
	"caseverify/pkg/platform/sentinel"
	"caseverify/pkg/requestcontext"
)

// translate maps store errors onto domain errors. Domain errors returned by
// validate callbacks pass through unchanged. Storage failures are logged
// here with the cause; the returned error carries a client-safe message.
func (s *Service) translate(ctx context.Context, op, individualNumber string, err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}

	var mapped error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		mapped = dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	case errors.Is(err, sentinel.ErrConflict):
		mapped = dErrors.Wrap(err, dErrors.CodeStorageFailure, "issued number collision, retry the request")
	case errors.Is(err, sentinel.ErrAlreadyUsed), errors.Is(err, sentinel.ErrInvalidState):
		mapped = dErrors.Wrap(err, dErrors.CodeStorageFailure, "stored case is inconsistent")
	default:
		mapped = dErrors.Wrap(err, dErrors.CodeStorageFailure, "storage failure")
	}

	s.logger.ErrorContext(ctx, "case store operation failed",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"individual_number", individualNumber,
		"error", err,
	)
	return mapped
}
