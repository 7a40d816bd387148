package controller

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Println("⚠️ JSON encode error:", err)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case appErrors.IsRecordNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, appErrors.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrNoRecipients):
		return http.StatusUnprocessableEntity
	case errors.Is(err, appErrors.ErrDeliveryFailed):
		return http.StatusBadGateway
	case errors.Is(err, appErrors.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Println("❌ Internal error:", err)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Detail: msg})
}
