package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseverify/internal/cases/handler"
	"caseverify/internal/cases/models"
	"caseverify/internal/cases/service"
	"caseverify/internal/cases/store"
	"caseverify/internal/platform/metrics"
	ratelimitmw "caseverify/internal/ratelimit/middleware"
	ratelimitmodels "caseverify/internal/ratelimit/models"
	"caseverify/internal/ratelimit/store/bucket"
	"caseverify/pkg/testutil"
)

type outcomeBody struct {
	Success    bool   `json:"success"`
	Outcome    string `json:"outcome"`
	NSSFNumber string `json:"nssf_number"`
	Individual struct {
		ProcessStatus string `json:"process_status"`
	} `json:"individual"`
}

func newRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := store.NewInMemoryCaseStore()
	require.NoError(t, cases.Create(context.Background(),
		&models.Case{
			IndividualNumber: "UGA-00000001",
			FullName:         "Amani Deng",
			Age:              34,
			LegalStatus:      models.LegalStatusRefugee,
			ProcessStatus:    models.ProcessStatusActive,
		},
		&models.Case{
			IndividualNumber: "UGA-00000004",
			FullName:         "Grace Okello",
			Age:              52,
			LegalStatus:      models.LegalStatusRefugee,
			ProcessStatus:    models.ProcessStatusClosed,
		},
	))
	svc, err := service.New(cases, service.WithLogger(logger))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cfg := Config{
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg, handler.New(svc, logger))
}

func TestRouter_IssuanceFlow(t *testing.T) {
	router := newRouter(t, nil)

	testutil.Given(t, "an active adult refugee", func(t *testing.T) {
		testutil.When(t, "the case is verified by form post", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewFormRequest(t, "/verify-case", url.Values{"INDIVIDUAL_ID": {"uga-00000001"}}))

			testutil.Then(t, "the case is eligible for issuance", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalResponse[outcomeBody](t, rr)
				assert.True(t, body.Success)
				assert.Equal(t, "ELIGIBLE_FOR_ISSUANCE", body.Outcome)
				assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
			})
		})

		var issued string
		testutil.When(t, "a number is issued", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/issue-nssf", map[string]string{"individual_number": "UGA-00000001"}))

			testutil.Then(t, "the case is closed with a number", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalResponse[outcomeBody](t, rr)
				assert.Regexp(t, `^NSSF\d{6}$`, body.NSSFNumber)
				assert.Equal(t, "Closed", body.Individual.ProcessStatus)
				issued = body.NSSFNumber
			})
		})

		testutil.When(t, "the number is requested again", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/process-nssf", map[string]string{"individual_number": "UGA-00000001"}))

			testutil.Then(t, "the same number is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "nssf_number", issued)
			})
		})

		testutil.When(t, "issued records are listed", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nssf-records"))

			testutil.Then(t, "the issued case is listed once", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "count", float64(1))
			})
		})
	})

	testutil.Given(t, "an unknown identifier", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/verify-case", map[string]string{"individual_number": "UGA-99999999"}))

		testutil.Then(t, "the response carries the NOT_FOUND outcome", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
			testutil.AssertJSONContains(t, rr, "outcome", "NOT_FOUND")
		})
	})

	testutil.Given(t, "a closed refugee", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/issue-nssf", map[string]string{"individual_number": "UGA-00000004"}))

		testutil.Then(t, "issuance is refused as not active", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "not_active")
		})
	})
}

func TestRouter_Health(t *testing.T) {
	testutil.Given(t, "a reachable store", func(t *testing.T) {
		router := newRouter(t, func(c *Config) {
			c.Health = func(context.Context) error { return nil }
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.Then(t, "health is ok", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "status", "ok")
		})
	})

	testutil.Given(t, "an unreachable store", func(t *testing.T) {
		router := newRouter(t, func(c *Config) {
			c.Health = func(context.Context) error { return errors.New("database is closed") }
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.Then(t, "health reports unavailable", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		})
	})
}

func TestRouter_RateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimitmw.New(bucket.NewInMemoryBucketStore(),
		ratelimitmodels.Limit{RequestsPerWindow: 1, Window: time.Minute}, logger)
	router := newRouter(t, func(c *Config) {
		c.RateLimit = limiter.RateLimit
	})

	testutil.Given(t, "a client that used its budget", func(t *testing.T) {
		first := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/verify-case", map[string]string{"individual_number": "UGA-00000001"}))
		testutil.AssertStatusOK(t, first)

		testutil.When(t, "it calls a case endpoint", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/verify-case", map[string]string{"individual_number": "UGA-00000001"}))

			testutil.Then(t, "it is throttled", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
			})
		})

		testutil.When(t, "it probes health", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "the probe is not throttled", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})
	})
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(t, nil)
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/cases/UGA-00000004"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, string(testutil.ReadBody(t, rr)), `route="/cases/{individualNumber}"`)
}
