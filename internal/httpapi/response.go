package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"lexora.io/internal/auth"
	"lexora.io/internal/catalog"
)

// Error categories carried in the response envelope. Clients branch on the
// type, not the HTTP status.
const (
	errTypeValidation = "validation"
	errTypeAuth       = "auth"
	errTypeNotFound   = "not_found"
	errTypeNetwork    = "network"
	errTypeServer     = "server"
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type envelope struct {
	Status  string     `json:"status"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, envelope{Status: "success", Data: data, Message: message})
}

func writeError(w http.ResponseWriter, code int, errType, message string) {
	writeJSON(w, code, envelope{
		Status: "error",
		Error:  &errorBody{Type: errType, Message: message},
	})
}

func statusForType(errType string) int {
	switch errType {
	case errTypeValidation:
		return http.StatusBadRequest
	case errTypeAuth:
		return http.StatusUnauthorized
	case errTypeNotFound:
		return http.StatusNotFound
	case errTypeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, errType, message string) {
	writeError(w, statusForType(errType), errType, message)
}

// respondForbidden keeps the auth error type but overrides the status: the
// caller is authenticated, just not allowed.
func respondForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, errTypeAuth, message)
}

// writeServiceError maps domain errors onto the envelope. Unrecognized errors
// become opaque server errors so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	var expired *auth.TokenExpiredError
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrAlreadyExists):
		respondError(w, errTypeValidation, err.Error())
	case errors.As(err, &expired):
		respondError(w, errTypeAuth, expired.Error())
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidMagicLink),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrNoSession):
		respondError(w, errTypeAuth, err.Error())
	case errors.Is(err, auth.ErrNoOrganization),
		errors.Is(err, auth.ErrNoLicense),
		errors.Is(err, auth.ErrSeatsExceeded),
		errors.Is(err, auth.ErrNotTeamMember):
		respondForbidden(w, err.Error())
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		respondError(w, errTypeNotFound, "resource not found")
	default:
		respondError(w, errTypeServer, "internal server error")
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields and
// trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid request body")
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
