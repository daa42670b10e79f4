// Package mongo is a MongoDB implementation of the storage interface.
// Uniqueness is enforced by unique indexes and leaderboards run as
// aggregation pipelines on the server.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/storage"
)

// Storage is a MongoDB-backed implementation of the storage interface
type Storage struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    Config
	logger *slog.Logger

	players *mongo.Collection
	shrubs  *mongo.Collection
	votes   *mongo.Collection
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New connects to MongoDB, verifies the connection and ensures indexes
func New(ctx context.Context, cfg Config) (*Storage, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewWithClient(client, cfg)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewWithClient creates a MongoDB storage with an existing client. Indexes
// are not created; call EnsureIndexes.
func NewWithClient(client *mongo.Client, cfg Config) *Storage {
	db := client.Database(cfg.Database)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Storage{
		client:  client,
		db:      db,
		cfg:     cfg,
		logger:  logger,
		players: db.Collection(playersCollection),
		shrubs:  db.Collection(shrubsCollection),
		votes:   db.Collection(votesCollection),
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.players, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.shrubs, mongo.IndexModel{
			Keys: bson.D{{Key: "shrubberId", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{s.votes, mongo.IndexModel{
			Keys:    bson.D{{Key: "shrubId", Value: 1}, {Key: "voterId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client
func (s *Storage) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// NewID returns a hex ObjectID, so ids sort by creation time like native ones
func (s *Storage) NewID() string {
	return bson.NewObjectID().Hex()
}

// Player operations

func (s *Storage) InsertPlayer(ctx context.Context, player *model.Player) error {
	_, err := s.players.InsertOne(ctx, toPlayerDoc(player))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrPlayerNameTaken
		}
		return err
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.findPlayer(ctx, bson.M{"_id": string(id)})
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return s.findPlayer(ctx, bson.M{"name": name})
}

func (s *Storage) findPlayer(ctx context.Context, filter bson.M) (*model.Player, error) {
	var doc playerDoc
	if err := s.players.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.players.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []playerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	players := make([]*model.Player, 0, len(docs))
	for _, d := range docs {
		players = append(players, d.toModel())
	}
	return players, nil
}

// Shrub operations

func (s *Storage) GetShrub(ctx context.Context, id model.ShrubID) (*model.Shrub, error) {
	var doc shrubDoc
	if err := s.shrubs.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrShrubNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Storage) findShrubs(ctx context.Context, filter bson.M) ([]*model.Shrub, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.shrubs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []shrubDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	shrubs := make([]*model.Shrub, 0, len(docs))
	for _, d := range docs {
		shrubs = append(shrubs, d.toModel())
	}
	return shrubs, nil
}

func (s *Storage) ListShrubs(ctx context.Context) ([]*model.Shrub, error) {
	return s.findShrubs(ctx, bson.M{})
}

func (s *Storage) ListShrubsByPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Shrub, error) {
	return s.findShrubs(ctx, bson.M{"shrubberId": string(playerID)})
}

func (s *Storage) LatestShrub(ctx context.Context, playerID model.PlayerID) (*model.Shrub, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	var doc shrubDoc
	err := s.shrubs.FindOne(ctx, bson.M{"shrubberId": string(playerID)}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrShrubNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

// Single writes go straight to the collections

func (s *Storage) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	_, err := s.insertShrub(ctx, shrub)
	return err
}

func (s *Storage) InsertVote(ctx context.Context, vote *model.Vote) error {
	_, err := s.insertVote(ctx, vote)
	return err
}

func (s *Storage) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	_, err := s.attachShrub(ctx, playerID, shrubID)
	return err
}

func (s *Storage) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	_, err := s.addVoteRef(ctx, shrubID, voteID)
	return err
}

// Vote operations

func (s *Storage) DeleteVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	res, err := s.votes.DeleteOne(ctx, bson.M{"shrubId": string(shrubID), "voterId": string(voterID)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return model.ErrVoteNotFound
	}
	return nil
}

func (s *Storage) GetVotes(ctx context.Context, ids []model.VoteID) ([]*model.Vote, error) {
	if len(ids) == 0 {
		return []*model.Vote{}, nil
	}
	raw := make(bson.A, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	cursor, err := s.votes.Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, err
	}
	var docs []voteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	byID := make(map[model.VoteID]*model.Vote, len(docs))
	for _, d := range docs {
		byID[model.VoteID(d.ID)] = d.toModel()
	}
	votes := make([]*model.Vote, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

func (s *Storage) CountVotes(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error) {
	n, err := s.votes.CountDocuments(ctx, bson.M{"shrubId": string(shrubID), "voterId": string(voterID)})
	return int(n), err
}

// Aggregations

func (s *Storage) PlayerLeaderboard(ctx context.Context, limit int) ([]ranking.PlayerStanding, error) {
	cursor, err := s.players.Aggregate(ctx, playerLeaderboardPipeline(limit))
	if err != nil {
		return nil, err
	}
	var docs []playerStandingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	standings := make([]ranking.PlayerStanding, 0, len(docs))
	for _, d := range docs {
		standings = append(standings, ranking.PlayerStanding{
			PlayerID:         model.PlayerID(d.ID),
			Rank:             d.Rank,
			Name:             d.Name,
			ShrubCount:       d.ShrubCount,
			TotalPoints:      d.TotalPoints,
			UniqueVoterCount: d.UniqueVoterCount,
		})
	}
	return standings, nil
}

func (s *Storage) ShrubLeaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error) {
	cursor, err := s.shrubs.Aggregate(ctx, shrubLeaderboardPipeline(limit))
	if err != nil {
		return nil, err
	}
	var docs []shrubStandingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	standings := make([]ranking.ShrubStanding, 0, len(docs))
	for _, d := range docs {
		standings = append(standings, ranking.ShrubStanding{
			ShrubID:          model.ShrubID(d.ID),
			Rank:             d.Rank,
			OriginalWord:     d.OriginalWord,
			TransformedWord:  d.TransformedWord,
			Description:      d.Description,
			OwnerName:        d.OwnerName,
			TotalPoints:      d.TotalPoints,
			UniqueVoterCount: d.UniqueVoterCount,
			CreatedAt:        d.CreatedAt.UTC(),
		})
	}
	return standings, nil
}
