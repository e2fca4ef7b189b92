package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseverify/internal/cases/models"
	"caseverify/internal/cases/service"
	"caseverify/internal/eligibility"
	"caseverify/internal/reporting"
	dErrors "caseverify/pkg/domain-errors"
	"caseverify/pkg/platform/httputil"
	"caseverify/pkg/requestcontext"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service defines the case operations the HTTP facade needs.
type Service interface {
	Verify(ctx context.Context, individualNumber string) (*service.VerifyResult, error)
	Issue(ctx context.Context, individualNumber string) (*service.IssueResult, error)
	ProcessBenefits(ctx context.Context, individualNumber string) (*models.Case, error)
	Act(ctx context.Context, individualNumber string, action eligibility.Action) (*service.ActResult, error)
	ListIssued(ctx context.Context) ([]service.IssuedRecord, error)
}

// Handler handles case verification and issuance endpoints.
type Handler struct {
	logger *slog.Logger
	cases  Service
}

// New creates a new case Handler.
func New(cases Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		cases:  cases,
	}
}

// Register registers the case routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify-case", h.handleVerifyCase)
	r.Post("/process-nssf", h.handleIssue)
	r.Post("/issue-nssf", h.handleIssue)
	r.Post("/process-benefits", h.handleProcessBenefits)
	r.Get("/nssf-records", h.handleIssuedRecords)
	r.Get("/nssf-records/export", h.handleExportIssuedRecords)
	r.Get("/cases/{individualNumber}", h.handleCaseDetails)
}

// handleVerifyCase evaluates a case, or acts on it when an action is given.
func (h *Handler) handleVerifyCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if req.action == eligibility.ActionVerify {
		result, err := h.cases.Verify(ctx, req.IndividualNumber)
		if err != nil {
			h.writeVerifyError(ctx, w, "verify", req.IndividualNumber, err)
			return
		}
		h.logger.InfoContext(ctx, "case verified",
			"request_id", requestID,
			"individual_number", req.IndividualNumber,
			"outcome", result.Outcome.String(),
		)
		httputil.WriteJSON(w, http.StatusOK, toOutcomeResponse(result.Case, result.Outcome))
		return
	}

	result, err := h.cases.Act(ctx, req.IndividualNumber, req.action)
	if err != nil {
		h.writeVerifyError(ctx, w, string(req.action), req.IndividualNumber, err)
		return
	}
	h.logger.InfoContext(ctx, "case action completed",
		"request_id", requestID,
		"individual_number", req.IndividualNumber,
		"action", string(req.action),
		"outcome", result.Outcome.String(),
		"rejected", result.Rejected,
	)
	httputil.WriteJSON(w, http.StatusOK, toActResponse(result))
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.cases.Issue(ctx, req.IndividualNumber)
	if err != nil {
		h.writeError(ctx, w, "issue", req.IndividualNumber, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssueResponse(result))
}

func (h *Handler) handleProcessBenefits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.cases.ProcessBenefits(ctx, req.IndividualNumber)
	if err != nil {
		h.writeError(ctx, w, "process_benefits", req.IndividualNumber, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BenefitsResponse{
		Success:    true,
		Message:    "Benefits processed",
		Individual: toCaseView(updated),
	})
}

func (h *Handler) handleIssuedRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.cases.ListIssued(ctx)
	if err != nil {
		h.writeError(ctx, w, "list_issued", "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuedRecordsResponse(records))
}

// handleExportIssuedRecords renders the issued records as an XLSX download.
// The workbook is built in memory so a failure can still be reported as JSON.
func (h *Handler) handleExportIssuedRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.cases.ListIssued(ctx)
	if err != nil {
		h.writeError(ctx, w, "export_issued", "", err)
		return
	}

	var buf bytes.Buffer
	if err := reporting.WriteIssuedXLSX(&buf, records); err != nil {
		h.writeError(ctx, w, "export_issued", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render export"))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="nssf_records.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleCaseDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	individualNumber := chi.URLParam(r, "individualNumber")

	result, err := h.cases.Verify(ctx, individualNumber)
	if err != nil {
		h.writeError(ctx, w, "case_details", individualNumber, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CaseDetailsResponse{
		Success:          true,
		Outcome:          result.Outcome.String(),
		EligibleNSSF:     result.Outcome == eligibility.OutcomeEligibleForIssuance,
		EligibleBenefits: result.Outcome == eligibility.OutcomeEligibleForBenefits,
		Individual:       toCaseView(result.Case),
	})
}

// writeError logs at a level matching the failure class and writes the
// error envelope.
// writeVerifyError reports an unknown case as the NOT_FOUND outcome so
// /verify-case always answers with an outcome.
func (h *Handler) writeVerifyError(ctx context.Context, w http.ResponseWriter, op, individualNumber string, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.writeError(ctx, w, op, individualNumber, err)
		return
	}
	h.logger.WarnContext(ctx, "case not found",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"individual_number", individualNumber,
	)
	httputil.WriteJSON(w, http.StatusNotFound, notFoundResponse(individualNumber))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op, individualNumber string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"code", string(code),
		"error", err,
	}
	if individualNumber != "" {
		attrs = append(attrs, "individual_number", individualNumber)
	}
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "case request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "case request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
