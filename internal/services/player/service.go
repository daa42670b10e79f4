// Package player is the player repository: registration, lookup, the owner
// link written by shrub creation, and the player leaderboard.
package player

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/shrubbery/internal/dependencies/clock"
	"github.com/mcoot/shrubbery/internal/metrics"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/telemetry"
)

// latestShrubFetchLimit bounds concurrent LatestShrub lookups per leaderboard read
const latestShrubFetchLimit = 8

// Service handles player operations
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Manager
	tracer  trace.Tracer
}

// New creates a new player service. metrics may be nil.
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, metrics *metrics.Manager) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		tracer:  telemetry.Tracer("github.com/mcoot/shrubbery/internal/services/player"),
	}
}

// Create registers a new player. Returns ErrPlayerNameTaken if the name is in use.
func (s *Service) Create(ctx context.Context, name, email string) (*model.Player, error) {
	ctx, span := s.tracer.Start(ctx, "player.Create")
	defer span.End()

	now := s.clock.Now()
	player := &model.Player{
		ID:        model.PlayerID(s.storage.NewID()),
		Name:      name,
		Email:     email,
		Shrubs:    []model.ShrubID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.InsertPlayer(ctx, player); err != nil {
		fail(span, err)
		if errors.Is(err, model.ErrPlayerNameTaken) {
			s.logger.Info("player name taken", slog.String("name", name))
			return nil, err
		}
		s.logger.Error("failed to save player",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.metrics.PlayerCreated()
	s.logger.Info("player created",
		slog.String("player_id", string(player.ID)),
		slog.String("name", player.Name),
	)
	span.SetAttributes(attribute.String("player.id", string(player.ID)))
	return player, nil
}

// Get retrieves a player by ID
func (s *Service) Get(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.storage.GetPlayer(ctx, id)
}

// GetByName retrieves a player by their unique name
func (s *Service) GetByName(ctx context.Context, name string) (*model.Player, error) {
	return s.storage.GetPlayerByName(ctx, name)
}

// ListAll returns every player. No score is cached on the player record,
// so every player ties at zero and the store's creation order stands.
func (s *Service) ListAll(ctx context.Context) ([]*model.Player, error) {
	return s.storage.ListPlayers(ctx)
}

// AttachShrub links shrubID to its owner through w, which is either the
// store or an open transaction. It is idempotent. Unlike a blind update it
// reports ErrPlayerNotFound, so a transaction can abort instead of leaving
// a dangling reference.
func (s *Service) AttachShrub(ctx context.Context, w storage.Writer, playerID model.PlayerID, shrubID model.ShrubID) error {
	if err := w.AttachShrub(ctx, playerID, shrubID); err != nil {
		s.logger.Info("owner link failed",
			slog.String("player_id", string(playerID)),
			slog.String("shrub_id", string(shrubID)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Leaderboard returns the top players by total points received, ranked by
// row number. Each entry carries the transformed word of the player's most
// recent shrub.
func (s *Service) Leaderboard(ctx context.Context) ([]ranking.PlayerStanding, error) {
	ctx, span := s.tracer.Start(ctx, "player.Leaderboard")
	defer span.End()

	standings, err := s.storage.PlayerLeaderboard(ctx, ranking.PlayerLeaderboardCap)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(latestShrubFetchLimit)
	for i := range standings {
		g.Go(func() error {
			latest, err := s.storage.LatestShrub(gctx, standings[i].PlayerID)
			if errors.Is(err, model.ErrShrubNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			standings[i].LatestShrub = latest.TransformedWord
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fail(span, err)
		s.logger.Error("failed to resolve latest shrubs", slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.LeaderboardQueried(metrics.BoardPlayers)
	span.SetAttributes(attribute.Int("leaderboard.size", len(standings)))
	return standings, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
