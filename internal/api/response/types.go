package response

import (
	"time"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/services/shrub"
)

// Player represents a player in API responses
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Shrubs    []string  `json:"shrubs"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	shrubs := make([]string, len(p.Shrubs))
	for i, id := range p.Shrubs {
		shrubs[i] = string(id)
	}
	return Player{
		ID:        string(p.ID),
		Name:      p.Name,
		Email:     p.Email,
		Shrubs:    shrubs,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PlayersFromModel converts a slice of players
func PlayersFromModel(players []*model.Player) []Player {
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = PlayerFromModel(p)
	}
	return out
}

// Vote represents a vote in API responses
type Vote struct {
	ID        string    `json:"id"`
	ShrubID   string    `json:"shrub_id"`
	VoterID   string    `json:"voter_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteFromModel converts model.Vote
func VoteFromModel(v *model.Vote) Vote {
	return Vote{
		ID:        string(v.ID),
		ShrubID:   string(v.ShrubID),
		VoterID:   string(v.VoterID),
		Points:    v.Points,
		CreatedAt: v.CreatedAt,
	}
}

// Shrub represents a shrub in API responses. Votes holds vote IDs;
// ResolvedVotes is present on single-shrub reads only.
type Shrub struct {
	ID              string    `json:"id"`
	ShrubberID      string    `json:"shrubber_id"`
	ShrubberName    string    `json:"shrubber_name"`
	CreatedByID     string    `json:"created_by_id"`
	OriginalWord    string    `json:"original_word"`
	TransformedWord string    `json:"transformed_word"`
	Description     string    `json:"description,omitempty"`
	Votes           []string  `json:"votes"`
	ResolvedVotes   []Vote    `json:"resolved_votes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ShrubFromDetail converts a shrub.Detail
func ShrubFromDetail(d *shrub.Detail) Shrub {
	voteIDs := make([]string, len(d.Shrub.Votes))
	for i, id := range d.Shrub.Votes {
		voteIDs[i] = string(id)
	}

	var resolved []Vote
	if d.Votes != nil {
		resolved = make([]Vote, len(d.Votes))
		for i, v := range d.Votes {
			resolved[i] = VoteFromModel(v)
		}
	}

	return Shrub{
		ID:              string(d.Shrub.ID),
		ShrubberID:      string(d.Shrub.ShrubberID),
		ShrubberName:    d.ShrubberName,
		CreatedByID:     string(d.Shrub.CreatedByID),
		OriginalWord:    d.Shrub.OriginalWord,
		TransformedWord: d.Shrub.TransformedWord,
		Description:     d.Shrub.Description,
		Votes:           voteIDs,
		ResolvedVotes:   resolved,
		CreatedAt:       d.Shrub.CreatedAt,
		UpdatedAt:       d.Shrub.UpdatedAt,
	}
}

// ShrubsFromDetails converts a slice of shrub details
func ShrubsFromDetails(details []*shrub.Detail) []Shrub {
	out := make([]Shrub, len(details))
	for i, d := range details {
		out[i] = ShrubFromDetail(d)
	}
	return out
}

// PlayerStanding is one row of the player leaderboard
type PlayerStanding struct {
	PlayerID         string `json:"player_id"`
	Rank             int    `json:"rank"`
	Name             string `json:"name"`
	ShrubCount       int    `json:"shrub_count"`
	TotalPoints      int    `json:"total_points"`
	UniqueVoterCount int    `json:"unique_voter_count"`
	LatestShrub      string `json:"latest_shrub,omitempty"`
}

// PlayerLeaderboard converts ranked player standings
func PlayerLeaderboard(standings []ranking.PlayerStanding) []PlayerStanding {
	out := make([]PlayerStanding, len(standings))
	for i, s := range standings {
		out[i] = PlayerStanding{
			PlayerID:         string(s.PlayerID),
			Rank:             s.Rank,
			Name:             s.Name,
			ShrubCount:       s.ShrubCount,
			TotalPoints:      s.TotalPoints,
			UniqueVoterCount: s.UniqueVoterCount,
			LatestShrub:      s.LatestShrub,
		}
	}
	return out
}

// ShrubStanding is one row of the shrub leaderboard
type ShrubStanding struct {
	ShrubID          string    `json:"shrub_id"`
	Rank             int       `json:"rank"`
	OriginalWord     string    `json:"original_word"`
	TransformedWord  string    `json:"transformed_word"`
	Description      string    `json:"description,omitempty"`
	OwnerName        string    `json:"owner_name"`
	TotalPoints      int       `json:"total_points"`
	UniqueVoterCount int       `json:"unique_voter_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// ShrubLeaderboard converts ranked shrub standings
func ShrubLeaderboard(standings []ranking.ShrubStanding) []ShrubStanding {
	out := make([]ShrubStanding, len(standings))
	for i, s := range standings {
		out[i] = ShrubStanding{
			ShrubID:          string(s.ShrubID),
			Rank:             s.Rank,
			OriginalWord:     s.OriginalWord,
			TransformedWord:  s.TransformedWord,
			Description:      s.Description,
			OwnerName:        s.OwnerName,
			TotalPoints:      s.TotalPoints,
			UniqueVoterCount: s.UniqueVoterCount,
			CreatedAt:        s.CreatedAt,
		}
	}
	return out
}

// Health is the response of the health endpoint
type Health struct {
	Status string `json:"status"`
}
