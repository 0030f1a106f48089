package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Status: "success", Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Response{Status: "success", Data: data})
}

func failure(w http.ResponseWriter, status int, message string, err any) {
	writeJSON(w, status, Response{Status: "error", Message: message, Error: err})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInsufficientLocked),
		errors.Is(err, models.ErrInvalidUnlock):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrLockNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError answers with the status err maps to. Server-side failures are
// logged with their cause and reach the client as a fixed message only.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		failure(w, status, "internal error", "internal error")
		return
	}
	failure(w, status, http.StatusText(status), err.Error())
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Invalid("body", err.Error())
	}
	return nil
}
