package redis

import (
	"time"

	"github.com/mcoot/shrubbery/internal/model"
)

// Stored documents omit the reference sets, which live in their own SETs so
// that attaching a reference is a single SADD.

type playerDoc struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPlayerDoc(p *model.Player) playerDoc {
	return playerDoc{
		ID:        string(p.ID),
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d playerDoc) toModel(shrubs []string) *model.Player {
	p := &model.Player{
		ID:        model.PlayerID(d.ID),
		Name:      d.Name,
		Email:     d.Email,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, id := range shrubs {
		p.Shrubs = append(p.Shrubs, model.ShrubID(id))
	}
	return p
}

type shrubDoc struct {
	ID              string    `json:"id"`
	ShrubberID      string    `json:"shrubber_id"`
	CreatedByID     string    `json:"created_by_id"`
	OriginalWord    string    `json:"original_word"`
	TransformedWord string    `json:"transformed_word"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toShrubDoc(s *model.Shrub) shrubDoc {
	return shrubDoc{
		ID:              string(s.ID),
		ShrubberID:      string(s.ShrubberID),
		CreatedByID:     string(s.CreatedByID),
		OriginalWord:    s.OriginalWord,
		TransformedWord: s.TransformedWord,
		Description:     s.Description,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (d shrubDoc) toModel(votes []string) *model.Shrub {
	s := &model.Shrub{
		ID:              model.ShrubID(d.ID),
		ShrubberID:      model.PlayerID(d.ShrubberID),
		CreatedByID:     model.PlayerID(d.CreatedByID),
		OriginalWord:    d.OriginalWord,
		TransformedWord: d.TransformedWord,
		Description:     d.Description,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, id := range votes {
		s.Votes = append(s.Votes, model.VoteID(id))
	}
	return s
}

type voteDoc struct {
	ID        string    `json:"id"`
	ShrubID   string    `json:"shrub_id"`
	VoterID   string    `json:"voter_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

func toVoteDoc(v *model.Vote) voteDoc {
	return voteDoc{
		ID:        string(v.ID),
		ShrubID:   string(v.ShrubID),
		VoterID:   string(v.VoterID),
		Points:    v.Points,
		CreatedAt: v.CreatedAt,
	}
}

func (d voteDoc) toModel() *model.Vote {
	return &model.Vote{
		ID:        model.VoteID(d.ID),
		ShrubID:   model.ShrubID(d.ShrubID),
		VoterID:   model.PlayerID(d.VoterID),
		Points:    d.Points,
		CreatedAt: d.CreatedAt,
	}
}
