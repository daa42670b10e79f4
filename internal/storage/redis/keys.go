package redis

import (
	"fmt"

	"github.com/mcoot/shrubbery/internal/model"
)

// keys builds every key under one prefix
type keys struct {
	prefix string
}

// Documents

// player returns the key of a Player JSON document
func (k keys) player(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", k.prefix, id)
}

// shrub returns the key of a Shrub JSON document
func (k keys) shrub(id model.ShrubID) string {
	return fmt.Sprintf("%s:shrub:%s", k.prefix, id)
}

// vote returns the key of a Vote JSON document
func (k keys) vote(id model.VoteID) string {
	return fmt.Sprintf("%s:vote:%s", k.prefix, id)
}

// Unique indexes (string value = owning id)

// playerName returns the key of the name -> player_id unique index
func (k keys) playerName(name string) string {
	return fmt.Sprintf("%s:idx:player_name:%s", k.prefix, name)
}

// votePair returns the key of the (shrub, voter) -> vote_id unique index
func (k keys) votePair(shrubID model.ShrubID, voterID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:vote_pair:%s:%s", k.prefix, shrubID, voterID)
}

// Collections

// players returns the ZSET of player ids scored by creation time
func (k keys) players() string {
	return fmt.Sprintf("%s:idx:players", k.prefix)
}

// shrubs returns the ZSET of shrub ids scored by creation time
func (k keys) shrubs() string {
	return fmt.Sprintf("%s:idx:shrubs", k.prefix)
}

// shrubsByOwner returns the ZSET of one player's shrub ids scored by creation time
func (k keys) shrubsByOwner(id model.PlayerID) string {
	return fmt.Sprintf("%s:idx:shrubs_by_owner:%s", k.prefix, id)
}

// votes returns the SET of every vote id
func (k keys) votes() string {
	return fmt.Sprintf("%s:idx:votes", k.prefix)
}

// Denormalized reference sets

// playerShrubs returns the SET backing Player.Shrubs
func (k keys) playerShrubs(id model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_shrubs:%s", k.prefix, id)
}

// shrubVotes returns the SET backing Shrub.Votes
func (k keys) shrubVotes(id model.ShrubID) string {
	return fmt.Sprintf("%s:idx:shrub_votes:%s", k.prefix, id)
}
