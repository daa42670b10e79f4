package storage

import (
	"context"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
)

// Writer is the set of writes that may be grouped into one transaction.
// Both Storage and Tx implement it, so services can run the same code path
// inside or outside WithTx.
type Writer interface {
	// InsertShrub persists a new shrub along with its vote references
	InsertShrub(ctx context.Context, shrub *model.Shrub) error

	// InsertVote persists a new vote. Returns ErrAlreadyVoted if the
	// (shrub, voter) pair already has a vote.
	InsertVote(ctx context.Context, vote *model.Vote) error

	// AttachShrub adds shrubID to the player's shrub set. It is a no-op if
	// already present and returns ErrPlayerNotFound if no player matched.
	AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error

	// AddVoteRef adds voteID to the shrub's vote reference set.
	// Returns ErrShrubNotFound if no shrub matched.
	AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error
}

// Tx is a Writer whose writes commit or roll back together. Reads made
// through it run on the same connection or session as the writes.
type Tx interface {
	Writer

	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
}

// TxFunc is the body of a transaction. Returning an error rolls back every
// write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Storage defines the interface for data persistence
type Storage interface {
	Writer

	// NewID returns a fresh store-assigned identifier
	NewID() string

	// Player operations
	InsertPlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*model.Player, error)
	ListPlayers(ctx context.Context) ([]*model.Player, error)

	// Shrub operations
	GetShrub(ctx context.Context, id model.ShrubID) (*model.Shrub, error)
	ListShrubs(ctx context.Context) ([]*model.Shrub, error)
	ListShrubsByPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Shrub, error)
	LatestShrub(ctx context.Context, playerID model.PlayerID) (*model.Shrub, error)

	// Vote operations
	DeleteVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error
	GetVotes(ctx context.Context, ids []model.VoteID) ([]*model.Vote, error)
	CountVotes(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error)

	// Aggregations. Both derive scores from vote records only.
	PlayerLeaderboard(ctx context.Context, limit int) ([]ranking.PlayerStanding, error)
	ShrubLeaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error)

	// WithTx runs fn so that every write made through its Tx is applied
	// atomically, or not at all if fn returns an error.
	WithTx(ctx context.Context, fn TxFunc) error

	Ping(ctx context.Context) error
	Close() error
}
