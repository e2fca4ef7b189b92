// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	dErrors "caseverify/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that normalize and check themselves.
type Validatable interface {
	Validate() error
}

// FormBindable is implemented by request types that also accept
// application/x-www-form-urlencoded bodies.
type FormBindable interface {
	BindForm(values url.Values)
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a status code and failure envelope.
// Internal and storage failures never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Success: false, Error: string(code)}
	if !hideMessage(code) {
		if de, ok := dErrors.As(err); ok {
			resp.Message = de.Message
		}
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotActive, dErrors.CodeNotClosed, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeWrongLegalStatus, dErrors.CodeMinor, dErrors.CodeNotEligible, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func hideMessage(code dErrors.Code) bool {
	return code == dErrors.CodeInternal || code == dErrors.CodeStorageFailure
}

// DecodeAndPrepare decodes the request body into T, then validates it.
// JSON and form-encoded bodies are accepted; the latter only when *T
// implements FormBindable. On failure the error response is already written
// and ok is false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))

	if isForm(r) {
		binder, ok := any(req).(FormBindable)
		if !ok {
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "form bodies are not supported here"))
			return nil, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := parseForm(r); err != nil {
			logger.WarnContext(ctx, "failed to parse form body",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
			return nil, false
		}
		binder.BindForm(r.PostForm)
	} else {
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
			return nil, false
		}
	}

	if err := req.Validate(); err != nil {
		logger.InfoContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}

func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxBodyBytes)
	}
	return r.ParseForm()
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}
