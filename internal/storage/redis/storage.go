package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/shrubbery/internal/dependencies/idgen"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Records are JSON documents; uniqueness is enforced by index keys checked
// under WATCH, and leaderboards are computed in process.
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keys
	ids    idgen.Generator
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.MaxCommitAttempts <= 0 {
		cfg.MaxCommitAttempts = DefaultConfig().MaxCommitAttempts
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   keys{prefix: cfg.KeyPrefix},
		ids:    idgen.New(),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) NewID() string {
	return s.ids.NewID()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// score maps a timestamp onto a sorted-set score. Millisecond precision keeps
// it exactly representable as a float64.
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Player operations

func (s *Storage) InsertPlayer(ctx context.Context, player *model.Player) error {
	o, err := s.insertPlayerOp(player)
	if err != nil {
		return err
	}
	return s.commit(ctx, []op{o})
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, s.keys.player(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var doc playerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	shrubs, err := s.client.SMembers(ctx, s.keys.playerShrubs(id)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(shrubs)
	return doc.toModel(shrubs), nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	// Look up player ID from name index
	id, err := s.client.Get(ctx, s.keys.playerName(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetPlayer(ctx, model.PlayerID(id))
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.ZRange(ctx, s.keys.players(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.player(model.PlayerID(id))
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	// Fetch every reference set in one round trip
	pipe := s.client.Pipeline()
	refCmds := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		refCmds[i] = pipe.SMembers(ctx, s.keys.playerShrubs(model.PlayerID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Index entry without a document
		}
		var doc playerDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, err
		}
		shrubs := refCmds[i].Val()
		sort.Strings(shrubs)
		players = append(players, doc.toModel(shrubs))
	}
	return players, nil
}

func (s *Storage) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	return s.commit(ctx, []op{s.attachShrubOp(playerID, shrubID)})
}

// Shrub operations

func (s *Storage) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	o, err := s.insertShrubOp(shrub)
	if err != nil {
		return err
	}
	return s.commit(ctx, []op{o})
}

func (s *Storage) GetShrub(ctx context.Context, id model.ShrubID) (*model.Shrub, error) {
	data, err := s.client.Get(ctx, s.keys.shrub(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrShrubNotFound
		}
		return nil, err
	}

	var doc shrubDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	votes, err := s.client.SMembers(ctx, s.keys.shrubVotes(id)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(votes)
	return doc.toModel(votes), nil
}

func (s *Storage) ListShrubs(ctx context.Context) ([]*model.Shrub, error) {
	ids, err := s.client.ZRevRange(ctx, s.keys.shrubs(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.getShrubs(ctx, ids)
}

func (s *Storage) ListShrubsByPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Shrub, error) {
	ids, err := s.client.ZRevRange(ctx, s.keys.shrubsByOwner(playerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.getShrubs(ctx, ids)
}

func (s *Storage) LatestShrub(ctx context.Context, playerID model.PlayerID) (*model.Shrub, error) {
	ids, err := s.client.ZRevRange(ctx, s.keys.shrubsByOwner(playerID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, model.ErrShrubNotFound
	}
	return s.GetShrub(ctx, model.ShrubID(ids[0]))
}

// getShrubs fetches shrubs in the given order, skipping ids without a document
func (s *Storage) getShrubs(ctx context.Context, ids []string) ([]*model.Shrub, error) {
	if len(ids) == 0 {
		return []*model.Shrub{}, nil
	}

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.shrub(model.ShrubID(id))
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	refCmds := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		refCmds[i] = pipe.SMembers(ctx, s.keys.shrubVotes(model.ShrubID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	shrubs := make([]*model.Shrub, 0, len(values))
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var doc shrubDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, err
		}
		votes := refCmds[i].Val()
		sort.Strings(votes)
		shrubs = append(shrubs, doc.toModel(votes))
	}
	return shrubs, nil
}

func (s *Storage) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	return s.commit(ctx, []op{s.addVoteRefOp(shrubID, voteID, false)})
}

// Vote operations

func (s *Storage) InsertVote(ctx context.Context, vote *model.Vote) error {
	o, err := s.insertVoteOp(vote)
	if err != nil {
		return err
	}
	return s.commit(ctx, []op{o})
}

func (s *Storage) DeleteVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	pairKey := s.keys.votePair(shrubID, voterID)

	txf := func(rtx *redis.Tx) error {
		voteID, err := rtx.Get(ctx, pairKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrVoteNotFound
			}
			return err
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, pairKey, s.keys.vote(model.VoteID(voteID)))
			pipe.SRem(ctx, s.keys.votes(), voteID)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.cfg.MaxCommitAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, pairKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return model.ErrWriteConflict
}

func (s *Storage) GetVotes(ctx context.Context, ids []model.VoteID) ([]*model.Vote, error) {
	if len(ids) == 0 {
		return []*model.Vote{}, nil
	}
	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.vote(id)
	}
	return s.mgetVotes(ctx, docKeys)
}

func (s *Storage) mgetVotes(ctx context.Context, docKeys []string) ([]*model.Vote, error) {
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	votes := make([]*model.Vote, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Vote was retracted
		}
		var doc voteDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, err
		}
		votes = append(votes, doc.toModel())
	}
	return votes, nil
}

func (s *Storage) CountVotes(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error) {
	n, err := s.client.Exists(ctx, s.keys.votePair(shrubID, voterID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Aggregations

func (s *Storage) PlayerLeaderboard(ctx context.Context, limit int) ([]ranking.PlayerStanding, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.PlayerLeaderboard(snap, limit), nil
}

func (s *Storage) ShrubLeaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.ShrubLeaderboard(snap, limit), nil
}

// snapshot loads every player, shrub and vote for in-process aggregation
func (s *Storage) snapshot(ctx context.Context) (ranking.Snapshot, error) {
	players, err := s.ListPlayers(ctx)
	if err != nil {
		return ranking.Snapshot{}, err
	}
	shrubs, err := s.ListShrubs(ctx)
	if err != nil {
		return ranking.Snapshot{}, err
	}

	voteIDs, err := s.client.SMembers(ctx, s.keys.votes()).Result()
	if err != nil {
		return ranking.Snapshot{}, err
	}
	votes := []*model.Vote{}
	if len(voteIDs) > 0 {
		docKeys := make([]string, len(voteIDs))
		for i, id := range voteIDs {
			docKeys[i] = s.keys.vote(model.VoteID(id))
		}
		votes, err = s.mgetVotes(ctx, docKeys)
		if err != nil {
			return ranking.Snapshot{}, err
		}
	}

	return ranking.Snapshot{Players: players, Shrubs: shrubs, Votes: votes}, nil
}
