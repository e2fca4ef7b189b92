package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher,IssueDateSource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"caseverify/internal/audit"
	"caseverify/internal/cases/metrics"
	"caseverify/internal/cases/models"
	"caseverify/internal/cases/store"
	"caseverify/internal/eligibility"
	dErrors "caseverify/pkg/domain-errors"
	"caseverify/pkg/requestcontext"
)

// =============================================================================
// Issuance Service Test Suite
// =============================================================================
// Runs the service against the in-memory and SQLite stores so lifecycle rules,
// idempotent issuance and audit emission are exercised end to end on each.

var issuedPattern = regexp.MustCompile(`^NSSF\d{6}$`)

type ServiceSuite struct {
	suite.Suite
	newStore func(t *testing.T) store.Store
	store    store.Store
	auditLog *audit.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service
	ctx      context.Context
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, &ServiceSuite{
		newStore: func(*testing.T) store.Store { return store.NewInMemoryCaseStore() },
	})
}

func TestServiceSuiteSQLite(t *testing.T) {
	suite.Run(t, &ServiceSuite{
		newStore: func(t *testing.T) store.Store {
			st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "refugees.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return st
		},
	})
}

func (s *ServiceSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.auditLog = audit.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.service, err = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(audit.NewPublisher(s.auditLog)),
	)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(context.Background(),
		newCase("UGA-00000001", 34, models.LegalStatusRefugee, models.ProcessStatusActive),
		newCase("UGA-00000002", 15, models.LegalStatusRefugee, models.ProcessStatusActive),
		newCase("UGA-00000003", 41, models.LegalStatusAsylumSeeker, models.ProcessStatusActive),
		newCase("UGA-00000004", 52, models.LegalStatusRefugee, models.ProcessStatusClosed),
		newCase("UGA-00000005", 29, models.LegalStatusAsylumSeeker, models.ProcessStatusClosed),
		newCase("UGA-00000006", 61, models.LegalStatusRefugee, models.ProcessStatusRejected),
	))
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func newCase(number string, age int, legal models.LegalStatus, process models.ProcessStatus) *models.Case {
	return &models.Case{
		IndividualNumber:  number,
		FamilyGroupNumber: "UGA-25-0000001",
		FullName:          "Test Person " + number[len(number)-1:],
		FamilySize:        3,
		Age:               age,
		Gender:            "Female",
		CountryOfOrigin:   "South Sudan",
		LocationAddress:   "Kampala",
		LegalStatus:       legal,
		ProcessStatus:     process,
		DateOfBirth:       "1990-01-01",
		RegistrationDate:  "2015-04-12",
	}
}

func (s *ServiceSuite) current(number string) *models.Case {
	c, err := s.store.FindByIndividualNumber(context.Background(), number)
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "case store is required")
	})

	s.Run("with options applies options", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err := New(s.store, WithLogger(logger), WithNumberFormat(NumberFormatTimestamp))
		s.NoError(err)
		s.Equal(logger, svc.logger)
		s.Equal(NumberFormatTimestamp, svc.numbers.format)
		s.Nil(svc.audit)
	})
}

func (s *ServiceSuite) TestVerify() {
	s.Run("active adult refugee is eligible for issuance", func() {
		result, err := s.service.Verify(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		s.Equal(eligibility.OutcomeEligibleForIssuance, result.Outcome)
		s.Equal("UGA-00000001", result.Case.IndividualNumber)
	})

	s.Run("identifier is trimmed and upper-cased", func() {
		result, err := s.service.Verify(s.ctx, "  uga-00000001 ")
		s.Require().NoError(err)
		s.Equal("UGA-00000001", result.Case.IndividualNumber)
	})

	s.Run("outcomes per case", func() {
		cases := map[string]eligibility.Outcome{
			"UGA-00000002": eligibility.OutcomeMinor,
			"UGA-00000003": eligibility.OutcomeNotEligibleAsylumSeeker,
			"UGA-00000004": eligibility.OutcomeEligibleForBenefits,
			"UGA-00000005": eligibility.OutcomeInactive,
			"UGA-00000006": eligibility.OutcomeInactive,
		}
		for number, want := range cases {
			result, err := s.service.Verify(s.ctx, number)
			s.Require().NoError(err, number)
			s.Equal(want, result.Outcome, number)
		}
	})

	s.Run("unknown identifier is not found", func() {
		_, err := s.service.Verify(s.ctx, "UGA-99999999")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank identifier is a validation error", func() {
		_, err := s.service.Verify(s.ctx, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("verification never mutates", func() {
		before := s.current("UGA-00000003")
		_, err := s.service.Verify(s.ctx, "UGA-00000003")
		s.Require().NoError(err)
		s.Equal(before, s.current("UGA-00000003"))
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.VerificationOutcome.WithLabelValues("MINOR")))
}

func (s *ServiceSuite) TestIssue() {
	s.Run("eligible case is issued and closed", func() {
		result, err := s.service.Issue(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		s.False(result.AlreadyIssued)
		s.Regexp(issuedPattern, result.IssuedNumber)

		stored := s.current("UGA-00000001")
		s.Equal(result.IssuedNumber, stored.IssuedNumber)
		s.Equal(models.ProcessStatusClosed, stored.ProcessStatus)
		s.True(stored.UpdatedAt.Equal(s.now))

		entries, err := s.auditLog.ListAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(result.IssuedNumber, entries[0].IssuedNumber)
		s.Equal("UGA-00000001", entries[0].IndividualNumber)
		s.Equal(audit.ActionIssued, entries[0].Action)
		s.Equal("Closed", entries[0].ProcessStatus)
		s.True(entries[0].Timestamp.Equal(s.now))
	})

	s.Run("second issue returns the same number without a new audit entry", func() {
		first := s.current("UGA-00000001")
		result, err := s.service.Issue(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		s.True(result.AlreadyIssued)
		s.Equal(first.IssuedNumber, result.IssuedNumber)

		entries, _ := s.auditLog.ListAll(context.Background())
		s.Len(entries, 1)
	})

	s.Run("minor is refused and untouched", func() {
		_, err := s.service.Issue(s.ctx, "UGA-00000002")
		s.True(dErrors.HasCode(err, dErrors.CodeMinor))
		s.Equal(models.ProcessStatusActive, s.current("UGA-00000002").ProcessStatus)
		s.False(s.current("UGA-00000002").HasIssuedNumber())
	})

	s.Run("asylum seeker has the wrong legal status", func() {
		_, err := s.service.Issue(s.ctx, "UGA-00000003")
		s.True(dErrors.HasCode(err, dErrors.CodeWrongLegalStatus))
	})

	s.Run("closed case is not active", func() {
		_, err := s.service.Issue(s.ctx, "UGA-00000004")
		s.True(dErrors.HasCode(err, dErrors.CodeNotActive))
	})

	s.Run("unknown identifier is not found and nothing is written", func() {
		_, err := s.service.Issue(s.ctx, "UGA-99999999")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		issued, _ := s.store.ListIssued(context.Background())
		s.Len(issued, 1)
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Issued.WithLabelValues("false")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Issued.WithLabelValues("true")))
}

func (s *ServiceSuite) TestIssueConcurrent() {
	const callers = 10
	var wg sync.WaitGroup
	results := make(chan *IssueResult, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.service.Issue(s.ctx, "UGA-00000001")
			s.NoError(err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	var numbers []string
	fresh := 0
	for r := range results {
		numbers = append(numbers, r.IssuedNumber)
		if !r.AlreadyIssued {
			fresh++
		}
	}
	s.Equal(1, fresh)
	for _, n := range numbers {
		s.Equal(numbers[0], n)
	}
	entries, _ := s.auditLog.ListAll(context.Background())
	s.Len(entries, 1)
}

func (s *ServiceSuite) TestIssuedNumbersAreUnique() {
	seen := map[string]bool{}
	for i := range 50 {
		number := fmt.Sprintf("UGA-%08d", 100+i)
		c := newCase(number, 30, models.LegalStatusRefugee, models.ProcessStatusActive)
		s.Require().NoError(s.store.Create(context.Background(), c))
		result, err := s.service.Issue(s.ctx, number)
		s.Require().NoError(err)
		s.False(seen[result.IssuedNumber], "duplicate %s", result.IssuedNumber)
		seen[result.IssuedNumber] = true
	}
}

func (s *ServiceSuite) TestProcessBenefits() {
	s.Run("closed refugee moves to benefits processed", func() {
		updated, err := s.service.ProcessBenefits(s.ctx, "UGA-00000004")
		s.Require().NoError(err)
		s.Equal(models.ProcessStatusBenefitsProcessed, updated.ProcessStatus)
		s.Equal(models.ProcessStatusBenefitsProcessed, s.current("UGA-00000004").ProcessStatus)
	})

	s.Run("issued case can process benefits", func() {
		_, err := s.service.Issue(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		updated, err := s.service.ProcessBenefits(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		s.Equal(models.ProcessStatusBenefitsProcessed, updated.ProcessStatus)
		s.NotEmpty(updated.IssuedNumber)
	})

	s.Run("active case is not closed", func() {
		_, err := s.service.ProcessBenefits(s.ctx, "UGA-00000002")
		s.True(dErrors.HasCode(err, dErrors.CodeNotClosed))
	})

	s.Run("closed asylum seeker without number is not eligible", func() {
		_, err := s.service.ProcessBenefits(s.ctx, "UGA-00000005")
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	})

	s.Run("benefits cannot be processed twice", func() {
		_, err := s.service.ProcessBenefits(s.ctx, "UGA-00000004")
		s.True(dErrors.HasCode(err, dErrors.CodeNotClosed))
	})
}

func (s *ServiceSuite) TestAct() {
	s.Run("verify action evaluates without mutation", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000003", eligibility.ActionVerify)
		s.Require().NoError(err)
		s.Equal(eligibility.OutcomeNotEligibleAsylumSeeker, result.Outcome)
		s.False(result.Rejected)
		s.Equal(models.ProcessStatusActive, s.current("UGA-00000003").ProcessStatus)
	})

	s.Run("issue action on asylum seeker rejects the case", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000003", eligibility.ActionIssue)
		s.Require().NoError(err)
		s.True(result.Rejected)
		s.Equal(eligibility.OutcomeNotEligibleAsylumSeeker, result.Outcome)
		s.Equal(models.ProcessStatusRejected, result.Case.ProcessStatus)
		s.Equal(models.ProcessStatusRejected, s.current("UGA-00000003").ProcessStatus)
	})

	s.Run("benefits action on inactive case rejects it", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000005", eligibility.ActionBenefits)
		s.Require().NoError(err)
		s.True(result.Rejected)
		s.Equal(eligibility.OutcomeInactive, result.Outcome)
	})

	s.Run("terminal case is reported without transition", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000006", eligibility.ActionIssue)
		s.Require().NoError(err)
		s.False(result.Rejected)
		s.Equal(eligibility.OutcomeInactive, result.Outcome)
		s.Equal(models.ProcessStatusRejected, s.current("UGA-00000006").ProcessStatus)
	})

	s.Run("minor is not rejected", func() {
		_, err := s.service.Act(s.ctx, "UGA-00000002", eligibility.ActionIssue)
		s.True(dErrors.HasCode(err, dErrors.CodeMinor))
		s.Equal(models.ProcessStatusActive, s.current("UGA-00000002").ProcessStatus)
	})

	s.Run("issue action on eligible case issues", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000001", eligibility.ActionIssue)
		s.Require().NoError(err)
		s.False(result.Rejected)
		s.Equal(eligibility.OutcomeEligibleForIssuance, result.Outcome)
		s.Regexp(issuedPattern, result.IssuedNumber)
	})

	s.Run("benefits action on closed refugee processes benefits", func() {
		result, err := s.service.Act(s.ctx, "UGA-00000004", eligibility.ActionBenefits)
		s.Require().NoError(err)
		s.Equal(models.ProcessStatusBenefitsProcessed, result.Case.ProcessStatus)
	})

	s.Run("unknown identifier is not found", func() {
		_, err := s.service.Act(s.ctx, "UGA-99999999", eligibility.ActionIssue)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListIssued() {
	s.Run("empty before any issuance", func() {
		records, err := s.service.ListIssued(s.ctx)
		s.Require().NoError(err)
		s.Empty(records)
	})

	s.Run("issued cases without a date source carry no date", func() {
		_, err := s.service.Issue(s.ctx, "UGA-00000001")
		s.Require().NoError(err)
		records, err := s.service.ListIssued(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("UGA-00000001", records[0].Case.IndividualNumber)
		s.Nil(records[0].IssueDate)
	})

	s.Run("dates come from the csv log", func() {
		csvLog := audit.NewCSVStore(s.T().TempDir() + "/nssf_issuance_log.csv")
		svc, err := New(s.store,
			WithAuditPublisher(audit.NewPublisher(csvLog)),
			WithIssueDates(csvLog),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		s.Require().NoError(err)

		c := newCase("UGA-00000010", 44, models.LegalStatusRefugee, models.ProcessStatusActive)
		s.Require().NoError(s.store.Create(context.Background(), c))
		issued, err := svc.Issue(s.ctx, "UGA-00000010")
		s.Require().NoError(err)

		records, err := svc.ListIssued(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		var found bool
		for _, r := range records {
			if r.Case.IssuedNumber == issued.IssuedNumber {
				found = true
				s.Require().NotNil(r.IssueDate)
				s.True(r.IssueDate.Equal(s.now))
			}
		}
		s.True(found)
	})
}
