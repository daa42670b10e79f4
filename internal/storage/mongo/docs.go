package mongo

import (
	"time"

	"github.com/mcoot/shrubbery/internal/model"
)

const (
	playersCollection = "players"
	shrubsCollection  = "shrubs"
	votesCollection   = "votes"
)

type playerDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email,omitempty"`
	Shrubs    []string  `bson:"shrubs"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toPlayerDoc(p *model.Player) playerDoc {
	shrubs := make([]string, len(p.Shrubs))
	for i, id := range p.Shrubs {
		shrubs[i] = string(id)
	}
	return playerDoc{
		ID:        string(p.ID),
		Name:      p.Name,
		Email:     p.Email,
		Shrubs:    shrubs,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d playerDoc) toModel() *model.Player {
	p := &model.Player{
		ID:        model.PlayerID(d.ID),
		Name:      d.Name,
		Email:     d.Email,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, id := range d.Shrubs {
		p.Shrubs = append(p.Shrubs, model.ShrubID(id))
	}
	return p
}

type shrubDoc struct {
	ID              string    `bson:"_id"`
	ShrubberID      string    `bson:"shrubberId"`
	CreatedByID     string    `bson:"createdById"`
	OriginalWord    string    `bson:"originalWord"`
	TransformedWord string    `bson:"transformedWord"`
	Description     string    `bson:"description,omitempty"`
	Votes           []string  `bson:"votes"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func toShrubDoc(s *model.Shrub) shrubDoc {
	votes := make([]string, len(s.Votes))
	for i, id := range s.Votes {
		votes[i] = string(id)
	}
	return shrubDoc{
		ID:              string(s.ID),
		ShrubberID:      string(s.ShrubberID),
		CreatedByID:     string(s.CreatedByID),
		OriginalWord:    s.OriginalWord,
		TransformedWord: s.TransformedWord,
		Description:     s.Description,
		Votes:           votes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (d shrubDoc) toModel() *model.Shrub {
	s := &model.Shrub{
		ID:              model.ShrubID(d.ID),
		ShrubberID:      model.PlayerID(d.ShrubberID),
		CreatedByID:     model.PlayerID(d.CreatedByID),
		OriginalWord:    d.OriginalWord,
		TransformedWord: d.TransformedWord,
		Description:     d.Description,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	for _, id := range d.Votes {
		s.Votes = append(s.Votes, model.VoteID(id))
	}
	return s
}

type voteDoc struct {
	ID        string    `bson:"_id"`
	ShrubID   string    `bson:"shrubId"`
	VoterID   string    `bson:"voterId"`
	Points    int       `bson:"points"`
	CreatedAt time.Time `bson:"createdAt"`
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
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// Aggregation results

type playerStandingDoc struct {
	ID               string `bson:"_id"`
	Name             string `bson:"name"`
	ShrubCount       int    `bson:"shrubCount"`
	TotalPoints      int    `bson:"totalPoints"`
	UniqueVoterCount int    `bson:"uniqueVoterCount"`
	Rank             int    `bson:"rank"`
}

type shrubStandingDoc struct {
	ID               string    `bson:"_id"`
	OriginalWord     string    `bson:"originalWord"`
	TransformedWord  string    `bson:"transformedWord"`
	Description      string    `bson:"description"`
	OwnerName        string    `bson:"ownerName"`
	TotalPoints      int       `bson:"totalPoints"`
	UniqueVoterCount int       `bson:"uniqueVoterCount"`
	CreatedAt        time.Time `bson:"createdAt"`
	Rank             int       `bson:"rank"`
}
