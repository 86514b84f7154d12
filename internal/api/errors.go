package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/plugins/openmotics"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnsupported = "unsupported"
	ErrCodeGateway     = "gateway_error"
	ErrCodeMaintenance = "maintenance"
	ErrCodeInternal    = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeDomainError maps entity and gateway errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		apiErr   *openmotics.APIError
		maintErr *openmotics.MaintenanceModeError
		authErr  *openmotics.AuthenticationError
		connErr  *openmotics.ConnectionError
	)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, entity.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, entity.ErrUnsupported), errors.Is(err, openmotics.ErrUnsupportedCommand):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupported, err.Error())
	case errors.As(err, &maintErr):
		writeError(w, http.StatusServiceUnavailable, ErrCodeMaintenance, err.Error())
	case errors.Is(err, entity.ErrFailed), errors.As(err, &apiErr), errors.As(err, &authErr), errors.As(err, &connErr):
		writeError(w, http.StatusBadGateway, ErrCodeGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
