package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"mealbook/internal/importer"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/session"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string               `json:"error"`
	Fields    map[string]string    `json:"fields,omitempty"`
	Rejected  []importer.Rejection `json:"rejected,omitempty"`
	RequestID string               `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoLedger),
		errors.Is(err, ledger.ErrEmptyClipboard):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnknownStudent),
		errors.Is(err, session.ErrNoPriorLedger):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidDay),
		errors.Is(err, ledger.ErrInvalidMeal),
		errors.Is(err, ledger.ErrInvalidMonth),
		errors.Is(err, importer.ErrAmbiguous):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrStorageFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as JSON. Server errors hide the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), RequestID: requestID(r)}

	var re *requestError
	if errors.As(err, &re) {
		body.Fields = re.fields
	}

	logger := log.FromContext(r.Context())
	switch {
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldStatusCode, status, log.FieldError, err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	default:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldStatusCode, status, log.FieldError, err)
	}
	writeJSON(w, status, body)
}
