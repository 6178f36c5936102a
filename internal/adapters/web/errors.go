package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"urutiq-ledger/internal/core"
	"urutiq-ledger/internal/db"
)

type errorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []validationDetail `json:"details,omitempty"`
}

type validationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorStatus struct {
	target error
	code   string
	status int
}

// errorStatuses is checked in order; the first match wins.
var errorStatuses = []errorStatus{
	{core.ErrInvalidScope, "INVALID_SCOPE", http.StatusUnprocessableEntity},
	{core.ErrScopeViolation, "SCOPE_VIOLATION", http.StatusForbidden},
	{core.ErrCrossCompanyAccount, "CROSS_COMPANY_ACCOUNT", http.StatusForbidden},
	{core.ErrPeriodLocked, "PERIOD_LOCKED", http.StatusConflict},
	{core.ErrAlreadyVoided, "ALREADY_VOIDED", http.StatusConflict},
	{core.ErrPartialOriginalData, "PARTIAL_ORIGINAL_DATA", http.StatusConflict},
	{core.ErrDuplicateReference, "DUPLICATE_REFERENCE", http.StatusConflict},
	{core.ErrInvalidStatus, "INVALID_STATUS", http.StatusConflict},
	{core.ErrDuplicatePurpose, "DUPLICATE_PURPOSE", http.StatusConflict},
	{core.ErrUnknownPurpose, "UNKNOWN_PURPOSE", http.StatusUnprocessableEntity},
	{core.ErrAccountNotFound, "ACCOUNT_NOT_FOUND", http.StatusNotFound},
	{core.ErrNothingToVoid, "NOTHING_TO_VOID", http.StatusNotFound},
	{core.ErrOriginalNotFound, "NOT_FOUND", http.StatusNotFound},
	{core.ErrProductNotFound, "PRODUCT_NOT_FOUND", http.StatusNotFound},
	{core.ErrUnbalancedEntry, "UNBALANCED_ENTRY", http.StatusUnprocessableEntity},
	{core.ErrInvalidLine, "INVALID_LINE", http.StatusUnprocessableEntity},
	{core.ErrInvalidDocument, "INVALID_DOCUMENT", http.StatusUnprocessableEntity},
	{core.ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity},
}

func statusFor(err error) (string, int) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.target) {
			return es.code, es.status
		}
	}
	if db.IsRetryable(err) {
		return "CONCURRENT_UPDATE", http.StatusConflict
	}
	return "INTERNAL_ERROR", http.StatusInternalServerError
}

// writeServiceError maps a service error to its HTTP status. Unknown errors
// are logged and reported as 500 without leaking their text.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, "internal server error", code, status)
		return
	}
	writeError(w, r, err.Error(), code, status)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{
		Error:     "request validation failed",
		Code:      "VALIDATION_FAILED",
		RequestID: requestIDFromContext(r.Context()),
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Details = append(resp.Details, validationDetail{Field: fe.Namespace(), Message: validationMessage(fe)})
		}
	}
	writeErrorResponse(w, http.StatusUnprocessableEntity, resp)
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	default:
		return "is invalid"
	}
}
