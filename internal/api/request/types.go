package request

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Field length bounds
const (
	MinNameLength        = 2
	MaxNameLength        = 30
	MaxWordLength        = 100
	MaxDescriptionLength = 500
)

// CreatePlayerRequest is the request body for registering a player
type CreatePlayerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Validate normalises and checks the request, returning a client-facing message
func (r *CreatePlayerRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)

	if err := lengthBetween("name", r.Name, MinNameLength, MaxNameLength); err != nil {
		return err
	}
	if r.Email != "" {
		addr, err := mail.ParseAddress(r.Email)
		if err != nil || addr.Address != r.Email {
			return fmt.Errorf("email %q is not a valid address", r.Email)
		}
	}
	return nil
}

// CreateShrubRequest is the request body for submitting a shrub
type CreateShrubRequest struct {
	ShrubberID      string `json:"shrubber_id"`
	CreatedByID     string `json:"created_by_id,omitempty"`
	OriginalWord    string `json:"original_word"`
	TransformedWord string `json:"transformed_word"`
	Description     string `json:"description,omitempty"`
	Points          int    `json:"points,omitempty"`
}

func (r *CreateShrubRequest) Validate() error {
	r.OriginalWord = strings.TrimSpace(r.OriginalWord)
	r.TransformedWord = strings.TrimSpace(r.TransformedWord)

	if err := required("shrubber_id", r.ShrubberID); err != nil {
		return err
	}
	if err := lengthBetween("original_word", r.OriginalWord, 1, MaxWordLength); err != nil {
		return err
	}
	if err := lengthBetween("transformed_word", r.TransformedWord, 1, MaxWordLength); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Description) > MaxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	if r.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	return nil
}

// VoteRequest is the request body for casting or retracting a vote
type VoteRequest struct {
	ShrubID string `json:"shrub_id"`
	VoterID string `json:"voter_id"`
	Points  int    `json:"points,omitempty"`
}

func (r *VoteRequest) Validate() error {
	if err := required("shrub_id", r.ShrubID); err != nil {
		return err
	}
	if err := required("voter_id", r.VoterID); err != nil {
		return err
	}
	if r.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func lengthBetween(field, value string, lo, hi int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return fmt.Errorf("%s is required", field)
	}
	if n < lo || n > hi {
		return fmt.Errorf("%s must be between %d and %d characters", field, lo, hi)
	}
	return nil
}
