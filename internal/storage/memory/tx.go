package memory

import (
	"context"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// tx stages writes and applies them under a single write lock at commit.
// Each staged write is checked eagerly so the caller sees conflicts at the
// point of the call, and checked again at commit.
type tx struct {
	s   *Storage
	ops []func() (func(), error)

	stagedShrubs map[model.ShrubID]struct{}
	stagedPairs  map[votePair]struct{}
}

var _ storage.Tx = (*tx)(nil)

func (s *Storage) WithTx(ctx context.Context, fn storage.TxFunc) error {
	t := &tx{
		s:            s,
		stagedShrubs: make(map[model.ShrubID]struct{}),
		stagedPairs:  make(map[votePair]struct{}),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (t *tx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	undos := make([]func(), 0, len(t.ops))
	for _, op := range t.ops {
		undo, err := op()
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return t.s.GetPlayer(ctx, id)
}

func (t *tx) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	staged := cloneShrub(shrub)
	t.stagedShrubs[staged.ID] = struct{}{}
	t.ops = append(t.ops, func() (func(), error) {
		return t.s.insertShrubLocked(staged), nil
	})
	return nil
}

func (t *tx) InsertVote(ctx context.Context, vote *model.Vote) error {
	pair := votePair{shrubID: vote.ShrubID, voterID: vote.VoterID}
	if _, ok := t.stagedPairs[pair]; ok {
		return model.ErrAlreadyVoted
	}
	t.s.mu.RLock()
	_, exists := t.s.votePairs[pair]
	t.s.mu.RUnlock()
	if exists {
		return model.ErrAlreadyVoted
	}

	staged := *vote
	t.stagedPairs[pair] = struct{}{}
	t.ops = append(t.ops, func() (func(), error) {
		return t.s.insertVoteLocked(&staged)
	})
	return nil
}

func (t *tx) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	t.s.mu.RLock()
	_, exists := t.s.players[playerID]
	t.s.mu.RUnlock()
	if !exists {
		return model.ErrPlayerNotFound
	}

	t.ops = append(t.ops, func() (func(), error) {
		return t.s.attachShrubLocked(playerID, shrubID)
	})
	return nil
}

func (t *tx) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	if _, ok := t.stagedShrubs[shrubID]; !ok {
		t.s.mu.RLock()
		_, exists := t.s.shrubs[shrubID]
		t.s.mu.RUnlock()
		if !exists {
			return model.ErrShrubNotFound
		}
	}

	t.ops = append(t.ops, func() (func(), error) {
		return t.s.addVoteRefLocked(shrubID, voteID)
	})
	return nil
}
