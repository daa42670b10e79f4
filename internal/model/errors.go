package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Not found
	ErrPlayerNotFound = errors.New("player not found")
	ErrShrubNotFound  = errors.New("shrub not found")
	ErrVoteNotFound   = errors.New("vote not found")

	// Conflicts
	ErrPlayerNameTaken = errors.New("player name already exists")
	ErrAlreadyVoted    = errors.New("player has already voted for this shrub")
	ErrWriteConflict   = errors.New("concurrent write conflict")

	// Validation
	ErrInvalidPoints = errors.New("vote points out of range")
)

// PointsRangeError reports vote points outside [1, Max]. It matches
// ErrInvalidPoints.
type PointsRangeError struct {
	Points int
	Max    int
}

func (e *PointsRangeError) Error() string {
	return fmt.Sprintf("%s: %d not in [1, %d]", ErrInvalidPoints, e.Points, e.Max)
}

func (e *PointsRangeError) Is(target error) bool {
	return target == ErrInvalidPoints
}

// IsNotFound reports whether err is one of the not-found sentinels
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrShrubNotFound) ||
		errors.Is(err, ErrVoteNotFound)
}

// IsConflict reports whether err is one of the conflict sentinels
func IsConflict(err error) bool {
	return errors.Is(err, ErrPlayerNameTaken) ||
		errors.Is(err, ErrAlreadyVoted) ||
		errors.Is(err, ErrWriteConflict)
}
