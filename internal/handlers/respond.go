package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
	"github.com/ukydev/cabtrips/internal/triplist"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Fields models.ValidationErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON")
	}
	return nil
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbiddenView):
		return http.StatusForbidden
	case errors.Is(err, triplist.ErrTripNotFound), errors.Is(err, ErrUnknownRole), errors.Is(err, ErrViewNotOpen):
		return http.StatusNotFound
	case errors.Is(err, ErrOwnerRequired):
		return http.StatusBadRequest
	case errors.Is(err, triplist.ErrActionNotAllowed), errors.Is(err, triplist.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, triplist.ErrInvalidSortKey):
		return http.StatusBadRequest
	case errors.Is(err, triplist.ErrViewClosed):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if fields, ok := models.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}
