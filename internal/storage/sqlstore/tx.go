package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// tx runs writes on a database/sql transaction
type tx struct {
	q       querier
	dialect Dialect
}

var _ storage.Tx = (*tx)(nil)

func (s *Storage) WithTx(ctx context.Context, fn storage.TxFunc) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &tx{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return model.ErrWriteConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.q.ExecContext(ctx, t.dialect.rebind(q), args...)
}

func (t *tx) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	err := t.q.QueryRowContext(ctx, t.dialect.rebind(q), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return getPlayerWhere(ctx, t.q, t.dialect, `id = ?`, string(id))
}

func (t *tx) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	_, err := t.exec(ctx,
		`INSERT INTO shrubs (`+shrubColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(shrub.ID), string(shrub.ShrubberID), string(shrub.CreatedByID),
		shrub.OriginalWord, shrub.TransformedWord, shrub.Description,
		toMillis(shrub.CreatedAt), toMillis(shrub.UpdatedAt))
	if err != nil {
		return err
	}
	for _, voteID := range shrub.Votes {
		if err := t.insertVoteRef(ctx, shrub.ID, voteID); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) InsertVote(ctx context.Context, vote *model.Vote) error {
	_, err := t.exec(ctx,
		`INSERT INTO votes (id, shrub_id, voter_id, points, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(vote.ID), string(vote.ShrubID), string(vote.VoterID), vote.Points, toMillis(vote.CreatedAt))
	if err != nil {
		if t.dialect.isUniqueViolation(err) {
			return model.ErrAlreadyVoted
		}
		return err
	}
	return nil
}

func (t *tx) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	ok, err := t.exists(ctx, `SELECT 1 FROM players WHERE id = ?`, string(playerID))
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrPlayerNotFound
	}
	_, err = t.exec(ctx,
		`INSERT INTO player_shrubs (player_id, shrub_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		string(playerID), string(shrubID))
	return err
}

func (t *tx) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	ok, err := t.exists(ctx, `SELECT 1 FROM shrubs WHERE id = ?`, string(shrubID))
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrShrubNotFound
	}
	return t.insertVoteRef(ctx, shrubID, voteID)
}

func (t *tx) insertVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	_, err := t.exec(ctx,
		`INSERT INTO shrub_votes (shrub_id, vote_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		string(shrubID), string(voteID))
	return err
}
