package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is a registered competitor. Name is globally unique.
type Player struct {
	ID    PlayerID
	Name  string
	Email string // optional

	// Shrubs is the denormalized set of shrubs this player owns. It is kept
	// up to date by the creation workflow but scoring never reads it.
	Shrubs []ShrubID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasShrub reports whether id is already in the player's shrub set
func (p *Player) HasShrub(id ShrubID) bool {
	for _, s := range p.Shrubs {
		if s == id {
			return true
		}
	}
	return false
}

// AddShrub inserts id into the shrub set. Returns false if it was already present.
func (p *Player) AddShrub(id ShrubID) bool {
	if p.HasShrub(id) {
		return false
	}
	p.Shrubs = append(p.Shrubs, id)
	return true
}
