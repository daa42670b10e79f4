package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/shrubbery/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// validator is implemented by request bodies that check themselves
type validator interface {
	Validate() error
}

// decode reads a JSON body into req and validates it. On failure it writes
// the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, req validator) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return false
	}
	if err := req.Validate(); err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return false
	}
	return true
}
