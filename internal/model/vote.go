package model

import "time"

// VoteID uniquely identifies a vote
type VoteID string

// DefaultVotePoints is used when a vote or submission does not declare points
const DefaultVotePoints = 1

// Vote is one player's endorsement of one shrub.
// At most one Vote exists per (ShrubID, VoterID) pair.
type Vote struct {
	ID        VoteID
	ShrubID   ShrubID
	VoterID   PlayerID
	Points    int
	CreatedAt time.Time
}
