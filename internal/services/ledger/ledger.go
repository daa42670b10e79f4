// Package ledger is the vote ledger. It owns the one-vote-per-voter-per-shrub
// rule; the store's uniqueness constraint is what enforces it under
// concurrency, the ledger only interprets the signal.
package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/shrubbery/internal/dependencies/clock"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// DefaultMaxPoints is the highest points value a single vote may carry
const DefaultMaxPoints = 10

// Ledger records and retracts votes
type Ledger struct {
	storage   storage.Storage
	clock     clock.Clock
	logger    *slog.Logger
	maxPoints int
}

// New creates a vote ledger. maxPoints <= 0 uses DefaultMaxPoints.
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, maxPoints int) *Ledger {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Ledger{
		storage:   storage,
		clock:     clock,
		logger:    logger,
		maxPoints: maxPoints,
	}
}

// MaxPoints returns the configured upper bound for vote points
func (l *Ledger) MaxPoints() int {
	return l.maxPoints
}

// NormalizePoints maps an omitted value (0) to the default and rejects
// anything outside [1, MaxPoints].
func (l *Ledger) NormalizePoints(points int) (int, error) {
	if points == 0 {
		return model.DefaultVotePoints, nil
	}
	if points < 1 || points > l.maxPoints {
		return 0, &model.PointsRangeError{Points: points, Max: l.maxPoints}
	}
	return points, nil
}

// Cast records voterID's vote on shrubID through tx. The voter is looked up
// through tx too, so a transaction never waits on a second connection.
// The caller is responsible for registering the returned vote's ID on the
// shrub.
// Returns ErrPlayerNotFound for an unknown voter and ErrAlreadyVoted if the
// pair already has a vote.
func (l *Ledger) Cast(ctx context.Context, tx storage.Tx, shrubID model.ShrubID, voterID model.PlayerID, points int) (*model.Vote, error) {
	points, err := l.NormalizePoints(points)
	if err != nil {
		return nil, err
	}

	if _, err := tx.GetPlayer(ctx, voterID); err != nil {
		return nil, err
	}

	vote := &model.Vote{
		ID:        model.VoteID(l.storage.NewID()),
		ShrubID:   shrubID,
		VoterID:   voterID,
		Points:    points,
		CreatedAt: l.clock.Now(),
	}

	if err := tx.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, model.ErrAlreadyVoted) {
			l.logger.Info("duplicate vote rejected",
				slog.String("shrub_id", string(shrubID)),
				slog.String("voter_id", string(voterID)),
			)
		}
		return nil, err
	}

	l.logger.Debug("vote recorded",
		slog.String("vote_id", string(vote.ID)),
		slog.String("shrub_id", string(shrubID)),
		slog.String("voter_id", string(voterID)),
		slog.Int("points", points),
	)
	return vote, nil
}

// Retract deletes voterID's vote on shrubID. Returns ErrVoteNotFound if
// there is none. The shrub's vote reference set is left as is.
func (l *Ledger) Retract(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	if err := l.storage.DeleteVote(ctx, shrubID, voterID); err != nil {
		return err
	}
	l.logger.Info("vote retracted",
		slog.String("shrub_id", string(shrubID)),
		slog.String("voter_id", string(voterID)),
	)
	return nil
}

// Count returns how many votes voterID has on shrubID (0 or 1)
func (l *Ledger) Count(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error) {
	return l.storage.CountVotes(ctx, shrubID, voterID)
}
