package model

import "time"

// ShrubID uniquely identifies a shrub
type ShrubID string

// Shrub is a player's submitted word transformation, the unit being voted on
type Shrub struct {
	ID ShrubID

	// ShrubberID is the owning player
	ShrubberID PlayerID
	// CreatedByID is the player who cast the self-vote at creation
	CreatedByID PlayerID

	OriginalWord    string
	TransformedWord string
	Description     string

	// Votes is a best-effort cache of vote references. Leaderboards derive
	// scores from Vote records, never from this slice.
	Votes []VoteID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddVote inserts id into the vote reference set. Returns false if already present.
func (s *Shrub) AddVote(id VoteID) bool {
	for _, v := range s.Votes {
		if v == id {
			return false
		}
	}
	s.Votes = append(s.Votes, id)
	return true
}
