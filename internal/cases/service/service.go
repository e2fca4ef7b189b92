package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"caseverify/internal/audit"
	"caseverify/internal/cases/metrics"
	"caseverify/internal/cases/models"
	"caseverify/internal/eligibility"
	dErrors "caseverify/pkg/domain-errors"
	"caseverify/pkg/requestcontext"
)

// Store is the persistence port for cases.
type Store interface {
	FindByIndividualNumber(ctx context.Context, individualNumber string) (*models.Case, error)
	// Execute validates and mutates one case atomically. Errors returned by
	// validate are passed back unchanged.
	Execute(ctx context.Context, individualNumber string, validate func(*models.Case) error, mutate func(*models.Case)) (*models.Case, error)
	IssuedNumberExists(ctx context.Context, number string) (bool, error)
	ListIssued(ctx context.Context) ([]*models.Case, error)
}

// AuditPublisher records committed issuances.
type AuditPublisher interface {
	Emit(ctx context.Context, e audit.Entry) error
}

// IssueDateSource maps issued numbers to the time they were logged.
type IssueDateSource interface {
	IssueDates(ctx context.Context) (map[string]time.Time, error)
}

// VerifyResult is a read-only evaluation of a case.
type VerifyResult struct {
	Case    *models.Case
	Outcome eligibility.Outcome
}

// IssueResult carries the number held by the case after Issue. AlreadyIssued
// is set when the call found an existing number instead of assigning one.
type IssueResult struct {
	Case          *models.Case
	IssuedNumber  string
	AlreadyIssued bool
}

// ActResult describes what Act did for the requested action.
type ActResult struct {
	Action        eligibility.Action
	Outcome       eligibility.Outcome
	Case          *models.Case
	Rejected      bool
	IssuedNumber  string
	AlreadyIssued bool
}

// IssuedRecord is a case with an issued number and, when the audit log has
// it, the time of issuance.
type IssuedRecord struct {
	Case      *models.Case
	IssueDate *time.Time
}

// Service verifies cases and drives their lifecycle. The number is committed
// with the status change in one store transaction; the audit entry follows
// the commit and is best-effort.
type Service struct {
	store      Store
	audit      AuditPublisher
	issueDates IssueDateSource
	numbers    *numberGenerator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNumberFormat(format NumberFormat) Option {
	return func(s *Service) {
		s.numbers = newNumberGenerator(format)
	}
}

// WithAuditPublisher records every committed issuance on publisher.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithIssueDates enriches ListIssued with dates read from the audit log.
func WithIssueDates(src IssueDateSource) Option {
	return func(s *Service) {
		s.issueDates = src
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New builds a Service. Without WithAuditPublisher issuances are not audited.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("case store is required")
	}
	s := &Service{
		store:   store,
		numbers: newNumberGenerator(NumberFormatRandom),
		logger:  slog.Default(),
		tracer:  otel.Tracer("caseverify/cases"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify looks up a case and evaluates it without side effects.
func (s *Service) Verify(ctx context.Context, individualNumber string) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "cases.Verify")
	defer span.End()

	c, err := s.lookup(ctx, individualNumber)
	if err != nil {
		return nil, endSpan(span, err)
	}
	outcome := eligibility.Evaluate(c)
	s.metrics.IncrementOutcome(outcome.String())
	span.SetAttributes(attribute.String("case.outcome", outcome.String()))

	return &VerifyResult{Case: c, Outcome: outcome}, nil
}

// Issue assigns an issued number to an eligible case and closes it. Calling
// it for a case that already holds a number returns that number.
func (s *Service) Issue(ctx context.Context, individualNumber string) (*IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "cases.Issue")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.ObserveIssueLatency(time.Since(start))
	}()

	c, err := s.lookup(ctx, individualNumber)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if c.HasIssuedNumber() {
		return s.replay(ctx, c), nil
	}
	if err := c.CanIssue(); err != nil {
		return nil, endSpan(span, err)
	}

	now := requestcontext.Now(ctx)
	number, err := s.numbers.next(ctx, c, now, s.store.IssuedNumberExists)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate issued number",
			"request_id", requestcontext.RequestID(ctx),
			"individual_number", c.IndividualNumber,
			"error", err,
		)
		return nil, endSpan(span, err)
	}

	updated, err := s.store.Execute(ctx, c.IndividualNumber,
		func(current *models.Case) error {
			return current.CanIssue()
		},
		func(current *models.Case) {
			current.ApplyIssuance(number, now)
		},
	)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyIssued) {
			// a concurrent request committed first
			winner, findErr := s.lookup(ctx, c.IndividualNumber)
			if findErr != nil {
				return nil, endSpan(span, findErr)
			}
			return s.replay(ctx, winner), nil
		}
		return nil, endSpan(span, s.translate(ctx, "issue", c.IndividualNumber, err))
	}

	s.metrics.IncrementIssued(false)
	s.metrics.IncrementTransition(updated.ProcessStatus.String())
	span.SetAttributes(attribute.String("case.issued_number", number))
	s.logger.InfoContext(ctx, "nssf number issued",
		"request_id", requestcontext.RequestID(ctx),
		"individual_number", updated.IndividualNumber,
		"nssf_number", number,
	)
	s.recordIssuance(ctx, updated)

	return &IssueResult{Case: updated, IssuedNumber: number}, nil
}

// ProcessBenefits moves a closed case to BenefitsProcessed.
func (s *Service) ProcessBenefits(ctx context.Context, individualNumber string) (*models.Case, error) {
	ctx, span := s.tracer.Start(ctx, "cases.ProcessBenefits")
	defer span.End()

	c, err := s.lookup(ctx, individualNumber)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if err := c.CanProcessBenefits(); err != nil {
		return nil, endSpan(span, err)
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, c.IndividualNumber,
		func(current *models.Case) error {
			return current.CanProcessBenefits()
		},
		func(current *models.Case) {
			current.ApplyBenefits(now)
		},
	)
	if err != nil {
		return nil, endSpan(span, s.translate(ctx, "process_benefits", c.IndividualNumber, err))
	}

	s.metrics.IncrementTransition(updated.ProcessStatus.String())
	s.logger.InfoContext(ctx, "benefits processed",
		"request_id", requestcontext.RequestID(ctx),
		"individual_number", updated.IndividualNumber,
	)
	return updated, nil
}

// Act performs action on a case. Acting on a case that is ineligible for
// good (asylum seeker, inactive) rejects it; a case already in a terminal
// status is reported without a transition.
func (s *Service) Act(ctx context.Context, individualNumber string, action eligibility.Action) (*ActResult, error) {
	if action == eligibility.ActionVerify {
		verified, err := s.Verify(ctx, individualNumber)
		if err != nil {
			return nil, err
		}
		return &ActResult{
			Action:       action,
			Outcome:      verified.Outcome,
			Case:         verified.Case,
			IssuedNumber: verified.Case.IssuedNumber,
		}, nil
	}

	ctx, span := s.tracer.Start(ctx, "cases.Act", trace.WithAttributes(attribute.String("case.action", string(action))))
	defer span.End()

	c, err := s.lookup(ctx, individualNumber)
	if err != nil {
		return nil, endSpan(span, err)
	}
	outcome := eligibility.Evaluate(c)
	s.metrics.IncrementOutcome(outcome.String())

	if eligibility.ShouldReject(action, outcome) {
		if c.CanReject() != nil {
			return &ActResult{Action: action, Outcome: outcome, Case: c}, nil
		}
		rejected, err := s.reject(ctx, c.IndividualNumber)
		if err != nil {
			return nil, endSpan(span, err)
		}
		return &ActResult{Action: action, Outcome: outcome, Case: rejected, Rejected: true}, nil
	}

	switch action {
	case eligibility.ActionIssue:
		issued, err := s.Issue(ctx, c.IndividualNumber)
		if err != nil {
			return nil, endSpan(span, err)
		}
		return &ActResult{
			Action:        action,
			Outcome:       outcome,
			Case:          issued.Case,
			IssuedNumber:  issued.IssuedNumber,
			AlreadyIssued: issued.AlreadyIssued,
		}, nil
	case eligibility.ActionBenefits:
		processed, err := s.ProcessBenefits(ctx, c.IndividualNumber)
		if err != nil {
			return nil, endSpan(span, err)
		}
		return &ActResult{
			Action:       action,
			Outcome:      outcome,
			Case:         processed,
			IssuedNumber: processed.IssuedNumber,
		}, nil
	}
	return nil, endSpan(span, dErrors.New(dErrors.CodeBadRequest, "unsupported action"))
}

// ListIssued returns every case holding an issued number. Issue dates come
// from the audit log; a missing or unreadable log leaves them empty.
func (s *Service) ListIssued(ctx context.Context) ([]IssuedRecord, error) {
	ctx, span := s.tracer.Start(ctx, "cases.ListIssued")
	defer span.End()

	cases, err := s.store.ListIssued(ctx)
	if err != nil {
		return nil, endSpan(span, s.translate(ctx, "list_issued", "", err))
	}

	var dates map[string]time.Time
	if s.issueDates != nil {
		dates, err = s.issueDates.IssueDates(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read issue dates from audit log",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}

	records := make([]IssuedRecord, 0, len(cases))
	for _, c := range cases {
		record := IssuedRecord{Case: c}
		if issuedAt, ok := dates[c.IssuedNumber]; ok {
			record.IssueDate = &issuedAt
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Service) lookup(ctx context.Context, raw string) (*models.Case, error) {
	individualNumber, err := models.NormalizeIndividualNumber(raw)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindByIndividualNumber(ctx, individualNumber)
	if err != nil {
		return nil, s.translate(ctx, "find", individualNumber, err)
	}
	return c, nil
}

func (s *Service) replay(ctx context.Context, c *models.Case) *IssueResult {
	s.metrics.IncrementIssued(true)
	s.logger.InfoContext(ctx, "nssf number already issued",
		"request_id", requestcontext.RequestID(ctx),
		"individual_number", c.IndividualNumber,
		"nssf_number", c.IssuedNumber,
	)
	return &IssueResult{Case: c, IssuedNumber: c.IssuedNumber, AlreadyIssued: true}
}

func (s *Service) reject(ctx context.Context, individualNumber string) (*models.Case, error) {
	now := requestcontext.Now(ctx)
	rejected, err := s.store.Execute(ctx, individualNumber,
		func(current *models.Case) error {
			return current.CanReject()
		},
		func(current *models.Case) {
			current.ApplyRejection(now)
		},
	)
	if err != nil {
		return nil, s.translate(ctx, "reject", individualNumber, err)
	}
	s.metrics.IncrementTransition(rejected.ProcessStatus.String())
	s.logger.InfoContext(ctx, "case rejected",
		"request_id", requestcontext.RequestID(ctx),
		"individual_number", individualNumber,
	)
	return rejected, nil
}

// recordIssuance appends the audit entry for a committed issuance. Failure
// leaves the number committed; it is logged and counted.
func (s *Service) recordIssuance(ctx context.Context, c *models.Case) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		IssuedNumber:     c.IssuedNumber,
		IndividualNumber: c.IndividualNumber,
		FullName:         c.FullName,
		Age:              c.Age,
		LegalStatus:      c.LegalStatus.String(),
		CountryOfOrigin:  c.CountryOfOrigin,
		ProcessStatus:    c.ProcessStatus.String(),
		Action:           audit.ActionIssued,
		Timestamp:        c.UpdatedAt,
		RequestID:        requestcontext.RequestID(ctx),
	}
	if err := s.audit.Emit(ctx, entry); err != nil {
		s.metrics.IncrementAuditFailure()
		s.logger.ErrorContext(ctx, "failed to append issuance audit entry",
			"request_id", requestcontext.RequestID(ctx),
			"individual_number", c.IndividualNumber,
			"nssf_number", c.IssuedNumber,
			"error", err,
		)
	}
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	return err
}
