package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcoot/shrubbery/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidPoints  = "INVALID_POINTS"
	CodePlayerNotFound = "PLAYER_NOT_FOUND"
	CodeShrubNotFound  = "SHRUB_NOT_FOUND"
	CodeVoteNotFound   = "VOTE_NOT_FOUND"
	CodeNameTaken      = "NAME_TAKEN"
	CodeAlreadyVoted   = "ALREADY_VOTED"
	CodeWriteConflict  = "WRITE_CONFLICT"
	CodeNotFound       = "NOT_FOUND"
	CodeInternalError  = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrShrubNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeShrubNotFound, "Shrub not found"}}
	case errors.Is(err, model.ErrVoteNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeVoteNotFound, "Vote not found"}}
	case errors.Is(err, model.ErrPlayerNameTaken):
		return &httpError{http.StatusConflict, APIError{CodeNameTaken, "Player name already exists"}}
	case errors.Is(err, model.ErrAlreadyVoted):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyVoted, "Player has already voted for this shrub"}}
	case errors.Is(err, model.ErrWriteConflict):
		return &httpError{http.StatusConflict, APIError{CodeWriteConflict, "Concurrent update, try again"}}
	case errors.Is(err, model.ErrInvalidPoints):
		msg := "Vote points out of range"
		var rangeErr *model.PointsRangeError
		if errors.As(err, &rangeErr) {
			msg = fmt.Sprintf("Vote points must be between 1 and %d", rangeErr.Max)
		}
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPoints, msg}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewNotFoundError creates an error for unknown routes
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
