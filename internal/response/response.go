// Package response writes JSON envelopes and maps service errors onto HTTP statuses.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/verimarket/backend/internal/models"
)

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// FromError translates a service error into its HTTP status and error code.
// Unknown errors are logged and reported as 500 without leaking the cause.
func FromError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "status", status, "error", err)
		Error(w, status, code, http.StatusText(status), nil)
		return
	}
	Error(w, status, code, err.Error(), nil)
}

// Classify maps the model error kinds onto an HTTP status and a stable code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, models.ErrInvalidStateTransition):
		return http.StatusConflict, "INVALID_STATE_TRANSITION"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
	case errors.Is(err, models.ErrAlreadyProcessed):
		return http.StatusConflict, "ALREADY_PROCESSED"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
