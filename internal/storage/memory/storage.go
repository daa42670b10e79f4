package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mcoot/shrubbery/internal/dependencies/idgen"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu  sync.RWMutex
	ids idgen.Generator

	players   map[model.PlayerID]*model.Player
	nameIndex map[string]model.PlayerID
	shrubs    map[model.ShrubID]*model.Shrub
	votes     map[model.VoteID]*model.Vote
	votePairs map[votePair]model.VoteID
}

// votePair is the unique key of a vote
type votePair struct {
	shrubID model.ShrubID
	voterID model.PlayerID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return NewWithIDGenerator(idgen.New())
}

// NewWithIDGenerator creates an in-memory storage with the given ID source (for testing)
func NewWithIDGenerator(ids idgen.Generator) *Storage {
	return &Storage{
		ids:       ids,
		players:   make(map[model.PlayerID]*model.Player),
		nameIndex: make(map[string]model.PlayerID),
		shrubs:    make(map[model.ShrubID]*model.Shrub),
		votes:     make(map[model.VoteID]*model.Vote),
		votePairs: make(map[votePair]model.VoteID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) NewID() string {
	return s.ids.NewID()
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}

// Player operations

func (s *Storage) InsertPlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.nameIndex[player.Name]; taken {
		return model.ErrPlayerNameTaken
	}
	s.players[player.ID] = clonePlayer(player)
	s.nameIndex[player.Name] = player.ID
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return clonePlayer(player), nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameIndex[name]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return clonePlayer(player), nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, clonePlayer(p))
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (s *Storage) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.attachShrubLocked(playerID, shrubID)
	return err
}

// Shrub operations

func (s *Storage) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertShrubLocked(shrub)
	return nil
}

func (s *Storage) GetShrub(ctx context.Context, id model.ShrubID) (*model.Shrub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shrub, ok := s.shrubs[id]
	if !ok {
		return nil, model.ErrShrubNotFound
	}
	return cloneShrub(shrub), nil
}

func (s *Storage) ListShrubs(ctx context.Context) ([]*model.Shrub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shrubs := make([]*model.Shrub, 0, len(s.shrubs))
	for _, sh := range s.shrubs {
		shrubs = append(shrubs, cloneShrub(sh))
	}
	sortNewestFirst(shrubs)
	return shrubs, nil
}

func (s *Storage) ListShrubsByPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Shrub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shrubs := make([]*model.Shrub, 0)
	for _, sh := range s.shrubs {
		if sh.ShrubberID == playerID {
			shrubs = append(shrubs, cloneShrub(sh))
		}
	}
	sortNewestFirst(shrubs)
	return shrubs, nil
}

func (s *Storage) LatestShrub(ctx context.Context, playerID model.PlayerID) (*model.Shrub, error) {
	shrubs, err := s.ListShrubsByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(shrubs) == 0 {
		return nil, model.ErrShrubNotFound
	}
	return shrubs[0], nil
}

func (s *Storage) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addVoteRefLocked(shrubID, voteID)
	return err
}

// Vote operations

func (s *Storage) InsertVote(ctx context.Context, vote *model.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.insertVoteLocked(vote)
	return err
}

func (s *Storage) DeleteVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := votePair{shrubID: shrubID, voterID: voterID}
	id, ok := s.votePairs[pair]
	if !ok {
		return model.ErrVoteNotFound
	}
	delete(s.votePairs, pair)
	delete(s.votes, id)
	return nil
}

func (s *Storage) GetVotes(ctx context.Context, ids []model.VoteID) ([]*model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := make([]*model.Vote, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.votes[id]; ok {
			vote := *v
			votes = append(votes, &vote)
		}
	}
	return votes, nil
}

func (s *Storage) CountVotes(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.votePairs[votePair{shrubID: shrubID, voterID: voterID}]; ok {
		return 1, nil
	}
	return 0, nil
}

// Aggregations

func (s *Storage) PlayerLeaderboard(ctx context.Context, limit int) ([]ranking.PlayerStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking.PlayerLeaderboard(s.snapshotLocked(), limit), nil
}

func (s *Storage) ShrubLeaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking.ShrubLeaderboard(s.snapshotLocked(), limit), nil
}

func (s *Storage) snapshotLocked() ranking.Snapshot {
	snap := ranking.Snapshot{
		Players: make([]*model.Player, 0, len(s.players)),
		Shrubs:  make([]*model.Shrub, 0, len(s.shrubs)),
		Votes:   make([]*model.Vote, 0, len(s.votes)),
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, p)
	}
	for _, sh := range s.shrubs {
		snap.Shrubs = append(snap.Shrubs, sh)
	}
	for _, v := range s.votes {
		snap.Votes = append(snap.Votes, v)
	}
	return snap
}

// Locked mutations. Each returns an undo func that reverts exactly what it did.

func (s *Storage) insertShrubLocked(shrub *model.Shrub) func() {
	s.shrubs[shrub.ID] = cloneShrub(shrub)
	return func() { delete(s.shrubs, shrub.ID) }
}

func (s *Storage) insertVoteLocked(vote *model.Vote) (func(), error) {
	pair := votePair{shrubID: vote.ShrubID, voterID: vote.VoterID}
	if _, exists := s.votePairs[pair]; exists {
		return nil, model.ErrAlreadyVoted
	}
	v := *vote
	s.votes[vote.ID] = &v
	s.votePairs[pair] = vote.ID
	return func() {
		delete(s.votes, vote.ID)
		delete(s.votePairs, pair)
	}, nil
}

func (s *Storage) attachShrubLocked(playerID model.PlayerID, shrubID model.ShrubID) (func(), error) {
	player, ok := s.players[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	if !player.AddShrub(shrubID) {
		return func() {}, nil
	}
	return func() { player.Shrubs = player.Shrubs[:len(player.Shrubs)-1] }, nil
}

func (s *Storage) addVoteRefLocked(shrubID model.ShrubID, voteID model.VoteID) (func(), error) {
	shrub, ok := s.shrubs[shrubID]
	if !ok {
		return nil, model.ErrShrubNotFound
	}
	if !shrub.AddVote(voteID) {
		return func() {}, nil
	}
	return func() { shrub.Votes = shrub.Votes[:len(shrub.Votes)-1] }, nil
}

func clonePlayer(p *model.Player) *model.Player {
	c := *p
	c.Shrubs = slices.Clone(p.Shrubs)
	return &c
}

func cloneShrub(sh *model.Shrub) *model.Shrub {
	c := *sh
	c.Votes = slices.Clone(sh.Votes)
	return &c
}

func sortNewestFirst(shrubs []*model.Shrub) {
	sort.Slice(shrubs, func(i, j int) bool {
		if !shrubs[i].CreatedAt.Equal(shrubs[j].CreatedAt) {
			return shrubs[i].CreatedAt.After(shrubs[j].CreatedAt)
		}
		return shrubs[i].ID > shrubs[j].ID
	})
}
