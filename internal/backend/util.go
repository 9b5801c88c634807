package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

const maxBodyBytes = 1 << 20

// Error ids sent by the backend.
const (
	errInvalidRequest     = "invalid_request"
	errValidation         = "validation_failed"
	errInvalidCredentials = "invalid_credentials"
	errStaleRequest       = "stale_request"
	errEmailTaken         = "email_taken"
	errWeakPassword       = "weak_password"
	errUnauthorized       = "unauthorized"
	errForbidden          = "forbidden"
	errPermissionDenied   = "permission_denied"
	errNotFound           = "not_found"
	errAlreadyExists      = "already_exists"
	errInsufficient       = "insufficient_credits"
	errExpired            = "subscription_expired"
	errUnsupportedSite    = "unsupported_site"
	errInvalidState       = "invalid_state"
	errRateLimited        = "rate_limited"
	errInternal           = "internal_error"
)

// httpError is a failure a handler wants reported as-is.
type httpError struct {
	status  int
	id      string
	message string
}

func (e *httpError) Error() string { return e.id + ": " + e.message }

func fail(status int, id, message string) error {
	return &httpError{status: status, id: id, message: message}
}

type envelope struct {
	Success bool             `json:"success"`
	Data    any              `json:"data,omitempty"`
	Error   *models.APIError `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// list keeps empty collections as [] on the wire.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeOK(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, code int, id, message string) {
	writeJSON(w, code, envelope{Error: &models.APIError{ID: models.TextID(id), Message: message}})
}

// writeErr maps handler, storage and validation errors to envelope failures.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &he):
		writeFail(w, he.status, he.id, he.message)
	case errors.As(err, &verrs):
		writeFail(w, http.StatusUnprocessableEntity, errValidation, describe(verrs))
	case errors.Is(err, storage.ErrNotFound):
		writeFail(w, http.StatusNotFound, errNotFound, "resource not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		writeFail(w, http.StatusConflict, errAlreadyExists, "resource already exists")
	case errors.Is(err, storage.ErrInsufficientCredits):
		writeFail(w, http.StatusPaymentRequired, errInsufficient, "not enough credits")
	default:
		log.Error().Err(err).Str("request_id", requestIDFromCtx(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeFail(w, http.StatusInternalServerError, errInternal, "internal server error")
	}
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fail(http.StatusBadRequest, errInvalidRequest, "invalid request body")
	}
	return s.validate.Struct(dst)
}
