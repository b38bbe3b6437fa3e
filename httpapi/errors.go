package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"garageflow/access"
	"garageflow/assignment"
	"garageflow/booking"
	"garageflow/identity"
	"garageflow/worker"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeDomainError maps the typed errors surfaced by the core services onto
// HTTP statuses and stable error codes. Unknown errors are reported as a
// transient storage failure; the message is not leaked to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrSessionExpired),
		errors.Is(err, identity.ErrProfileNotFound):
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "session invalid or expired")
	case errors.Is(err, identity.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, access.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, worker.ErrNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, booking.ErrIllegalTransition), errors.Is(err, worker.ErrIllegalTransition):
		WriteError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error())
	case errors.Is(err, booking.ErrAlreadyAssigned):
		WriteError(w, http.StatusConflict, "ALREADY_ASSIGNED", err.Error())
	case errors.Is(err, assignment.ErrWorkerNotEligible):
		WriteError(w, http.StatusConflict, "WORKER_NOT_ELIGIBLE", err.Error())
	case errors.Is(err, booking.ErrConflictingUpdate), errors.Is(err, worker.ErrConflictingUpdate):
		WriteError(w, http.StatusConflict, "CONFLICTING_UPDATE", "concurrent update lost; refetch and retry")
	case errors.Is(err, identity.ErrDuplicateEmail):
		WriteError(w, http.StatusConflict, "DUPLICATE_EMAIL", "email already registered")
	case errors.Is(err, identity.ErrAlreadyWorker):
		WriteError(w, http.StatusConflict, "ALREADY_WORKER", err.Error())
	case errors.Is(err, identity.ErrWeakPassword):
		WriteError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	case errors.Is(err, booking.ErrInvalidInput), errors.Is(err, assignment.ErrInvalidInput),
		errors.Is(err, identity.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "temporary storage failure")
	}
}
