package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// existsChecker is the read surface both *redis.Client and *redis.Tx share
type existsChecker interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// op is one staged write. check runs against the watched connection before
// MULTI, apply queues the write inside MULTI/EXEC.
type op struct {
	watch []string
	check func(ctx context.Context, r existsChecker) error
	apply func(ctx context.Context, pipe redis.Pipeliner)
}

// commit applies ops in one MULTI/EXEC guarded by WATCH on every key the
// checks depend on. A lost race re-runs the checks, so a competing insert of
// the same unique key surfaces as its domain conflict rather than a retry loop.
func (s *Storage) commit(ctx context.Context, ops []op) error {
	if len(ops) == 0 {
		return nil
	}

	var watched []string
	for _, o := range ops {
		watched = append(watched, o.watch...)
	}

	txf := func(rtx *redis.Tx) error {
		for _, o := range ops {
			if o.check == nil {
				continue
			}
			if err := o.check(ctx, rtx); err != nil {
				return err
			}
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, o := range ops {
				o.apply(ctx, pipe)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.cfg.MaxCommitAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return model.ErrWriteConflict
}

func mustNotExist(key string, conflict error) func(context.Context, existsChecker) error {
	return func(ctx context.Context, r existsChecker) error {
		n, err := r.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict
		}
		return nil
	}
}

func mustExist(key string, missing error) func(context.Context, existsChecker) error {
	return func(ctx context.Context, r existsChecker) error {
		n, err := r.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return missing
		}
		return nil
	}
}

// Op builders

func (s *Storage) insertPlayerOp(p *model.Player) (op, error) {
	data, err := json.Marshal(toPlayerDoc(p))
	if err != nil {
		return op{}, err
	}
	nameKey := s.keys.playerName(p.Name)
	return op{
		watch: []string{nameKey},
		check: mustNotExist(nameKey, model.ErrPlayerNameTaken),
		apply: func(ctx context.Context, pipe redis.Pipeliner) {
			pipe.Set(ctx, nameKey, string(p.ID), 0)
			pipe.Set(ctx, s.keys.player(p.ID), data, 0)
			pipe.ZAdd(ctx, s.keys.players(), redis.Z{Score: score(p.CreatedAt), Member: string(p.ID)})
			for _, sid := range p.Shrubs {
				pipe.SAdd(ctx, s.keys.playerShrubs(p.ID), string(sid))
			}
		},
	}, nil
}

func (s *Storage) insertShrubOp(sh *model.Shrub) (op, error) {
	data, err := json.Marshal(toShrubDoc(sh))
	if err != nil {
		return op{}, err
	}
	refs := make([]interface{}, len(sh.Votes))
	for i, v := range sh.Votes {
		refs[i] = string(v)
	}
	return op{
		apply: func(ctx context.Context, pipe redis.Pipeliner) {
			z := redis.Z{Score: score(sh.CreatedAt), Member: string(sh.ID)}
			pipe.Set(ctx, s.keys.shrub(sh.ID), data, 0)
			pipe.ZAdd(ctx, s.keys.shrubs(), z)
			pipe.ZAdd(ctx, s.keys.shrubsByOwner(sh.ShrubberID), z)
			if len(refs) > 0 {
				pipe.SAdd(ctx, s.keys.shrubVotes(sh.ID), refs...)
			}
		},
	}, nil
}

func (s *Storage) insertVoteOp(v *model.Vote) (op, error) {
	data, err := json.Marshal(toVoteDoc(v))
	if err != nil {
		return op{}, err
	}
	pairKey := s.keys.votePair(v.ShrubID, v.VoterID)
	return op{
		watch: []string{pairKey},
		check: mustNotExist(pairKey, model.ErrAlreadyVoted),
		apply: func(ctx context.Context, pipe redis.Pipeliner) {
			pipe.Set(ctx, pairKey, string(v.ID), 0)
			pipe.Set(ctx, s.keys.vote(v.ID), data, 0)
			pipe.SAdd(ctx, s.keys.votes(), string(v.ID))
		},
	}, nil
}

func (s *Storage) attachShrubOp(playerID model.PlayerID, shrubID model.ShrubID) op {
	playerKey := s.keys.player(playerID)
	return op{
		watch: []string{playerKey},
		check: mustExist(playerKey, model.ErrPlayerNotFound),
		apply: func(ctx context.Context, pipe redis.Pipeliner) {
			pipe.SAdd(ctx, s.keys.playerShrubs(playerID), string(shrubID))
		},
	}
}

// addVoteRefOp checks the shrub exists unless it is inserted by the same commit
func (s *Storage) addVoteRefOp(shrubID model.ShrubID, voteID model.VoteID, staged bool) op {
	o := op{
		apply: func(ctx context.Context, pipe redis.Pipeliner) {
			pipe.SAdd(ctx, s.keys.shrubVotes(shrubID), string(voteID))
		},
	}
	if !staged {
		shrubKey := s.keys.shrub(shrubID)
		o.watch = []string{shrubKey}
		o.check = mustExist(shrubKey, model.ErrShrubNotFound)
	}
	return o
}

// tx stages ops for one commit. Each op's check also runs eagerly so callers
// see conflicts where they happen.
type tx struct {
	s   *Storage
	ops []op

	stagedShrubs map[model.ShrubID]struct{}
	stagedPairs  map[string]struct{}
}

var _ storage.Tx = (*tx)(nil)

func (s *Storage) WithTx(ctx context.Context, fn storage.TxFunc) error {
	t := &tx{
		s:            s,
		stagedShrubs: make(map[model.ShrubID]struct{}),
		stagedPairs:  make(map[string]struct{}),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	return s.commit(ctx, t.ops)
}

func (t *tx) stage(ctx context.Context, o op) error {
	if o.check != nil {
		if err := o.check(ctx, t.s.client); err != nil {
			return err
		}
	}
	t.ops = append(t.ops, o)
	return nil
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return t.s.GetPlayer(ctx, id)
}

func (t *tx) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	o, err := t.s.insertShrubOp(shrub)
	if err != nil {
		return err
	}
	t.stagedShrubs[shrub.ID] = struct{}{}
	return t.stage(ctx, o)
}

func (t *tx) InsertVote(ctx context.Context, vote *model.Vote) error {
	pairKey := t.s.keys.votePair(vote.ShrubID, vote.VoterID)
	if _, ok := t.stagedPairs[pairKey]; ok {
		return model.ErrAlreadyVoted
	}
	o, err := t.s.insertVoteOp(vote)
	if err != nil {
		return err
	}
	if err := t.stage(ctx, o); err != nil {
		return err
	}
	t.stagedPairs[pairKey] = struct{}{}
	return nil
}

func (t *tx) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	return t.stage(ctx, t.s.attachShrubOp(playerID, shrubID))
}

func (t *tx) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	_, staged := t.stagedShrubs[shrubID]
	return t.stage(ctx, t.s.addVoteRefOp(shrubID, voteID, staged))
}
