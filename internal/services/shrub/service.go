// Package shrub is the shrub repository. It owns the creation workflow,
// the vote protocol and the shrub leaderboard.
package shrub

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/shrubbery/internal/dependencies/clock"
	"github.com/mcoot/shrubbery/internal/metrics"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/services/ledger"
	"github.com/mcoot/shrubbery/internal/services/player"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/telemetry"
)

const (
	// DefaultLeaderboardLimit applies when the caller does not bound the board
	DefaultLeaderboardLimit = 50
	// MaxLeaderboardLimit caps any caller-supplied bound
	MaxLeaderboardLimit = 100
)

// Config holds the tunables of the shrub service
type Config struct {
	DefaultLeaderboardLimit int
	MaxLeaderboardLimit     int
}

// DefaultConfig returns the default service configuration
func DefaultConfig() Config {
	return Config{
		DefaultLeaderboardLimit: DefaultLeaderboardLimit,
		MaxLeaderboardLimit:     MaxLeaderboardLimit,
	}
}

// CreateInput describes a new shrub
type CreateInput struct {
	ShrubberID model.PlayerID
	// CreatedByID casts the self-vote. Empty means the shrubber.
	CreatedByID     model.PlayerID
	OriginalWord    string
	TransformedWord string
	Description     string
	// Points carried by the self-vote. 0 means the default.
	Points int
}

// Detail is a shrub with its owner's display name. Votes is resolved for
// single-shrub reads and left nil in listings.
type Detail struct {
	Shrub        *model.Shrub
	ShrubberName string
	Votes        []*model.Vote
}

// Service handles shrub operations
type Service struct {
	storage storage.Storage
	players *player.Service
	ledger  *ledger.Ledger
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Manager
	tracer  trace.Tracer
	cfg     Config
}

// New creates a new shrub service. metrics may be nil.
func New(
	storage storage.Storage,
	players *player.Service,
	ledger *ledger.Ledger,
	clock clock.Clock,
	logger *slog.Logger,
	metrics *metrics.Manager,
	cfg Config,
) *Service {
	if cfg.MaxLeaderboardLimit <= 0 {
		cfg.MaxLeaderboardLimit = MaxLeaderboardLimit
	}
	if cfg.DefaultLeaderboardLimit <= 0 || cfg.DefaultLeaderboardLimit > cfg.MaxLeaderboardLimit {
		cfg.DefaultLeaderboardLimit = min(DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit)
	}
	return &Service{
		storage: storage,
		players: players,
		ledger:  ledger,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		tracer:  telemetry.Tracer("github.com/mcoot/shrubbery/internal/services/shrub"),
		cfg:     cfg,
	}
}

// Create runs the creation workflow. The owner is validated before any
// write; the self-vote, owner link and shrub record then commit as one
// store transaction. Failures are returned as *CreationError.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	ctx, span := s.tracer.Start(ctx, "shrub.Create",
		trace.WithAttributes(attribute.String("shrub.shrubber_id", string(in.ShrubberID))),
	)
	defer span.End()

	state := StateValidating
	abort := func(err error) (*Detail, error) {
		cerr := &CreationError{State: state, Err: err}
		fail(span, cerr)
		s.metrics.CreationFailed(state.String())
		s.logger.Info("shrub creation failed",
			slog.String("shrubber_id", string(in.ShrubberID)),
			slog.String("state", state.String()),
			slog.String("error", err.Error()),
		)
		return nil, cerr
	}

	owner, err := s.players.Get(ctx, in.ShrubberID)
	if err != nil {
		return abort(err)
	}
	createdBy := in.CreatedByID
	if createdBy == "" {
		createdBy = owner.ID
	}

	var shrub *model.Shrub
	err = s.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		state = StateCreating
		now := s.clock.Now()
		shrub = &model.Shrub{
			ID:              model.ShrubID(s.storage.NewID()),
			ShrubberID:      owner.ID,
			CreatedByID:     createdBy,
			OriginalWord:    in.OriginalWord,
			TransformedWord: in.TransformedWord,
			Description:     in.Description,
			Votes:           []model.VoteID{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.logger.Debug("shrub creation", slog.String("state", state.String()), slog.String("shrub_id", string(shrub.ID)))

		state = StateSelfVoting
		vote, err := s.ledger.Cast(ctx, tx, shrub.ID, createdBy, in.Points)
		if err != nil {
			return err
		}
		shrub.AddVote(vote.ID)
		s.logger.Debug("shrub creation", slog.String("state", state.String()), slog.String("vote_id", string(vote.ID)))

		state = StateLinkingToOwner
		if err := s.players.AttachShrub(ctx, tx, owner.ID, shrub.ID); err != nil {
			return err
		}
		s.logger.Debug("shrub creation", slog.String("state", state.String()))

		state = StatePersisted
		return tx.InsertShrub(ctx, shrub)
	})
	if err != nil {
		return abort(err)
	}

	s.metrics.ShrubCreated()
	s.metrics.VoteCast()
	s.logger.Info("shrub created",
		slog.String("shrub_id", string(shrub.ID)),
		slog.String("shrubber_id", string(owner.ID)),
		slog.String("original_word", shrub.OriginalWord),
		slog.String("transformed_word", shrub.TransformedWord),
	)
	span.SetAttributes(attribute.String("shrub.id", string(shrub.ID)))

	votes, err := s.storage.GetVotes(ctx, shrub.Votes)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return &Detail{Shrub: shrub, ShrubberName: owner.Name, Votes: votes}, nil
}

// Vote records voterID's vote on shrubID and registers it on the shrub.
// Returns ErrShrubNotFound or ErrPlayerNotFound before any write, and
// ErrAlreadyVoted if the voter has already voted on the shrub.
func (s *Service) Vote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID, points int) (*model.Vote, error) {
	ctx, span := s.tracer.Start(ctx, "shrub.Vote",
		trace.WithAttributes(
			attribute.String("shrub.id", string(shrubID)),
			attribute.String("vote.voter_id", string(voterID)),
		),
	)
	defer span.End()

	if _, err := s.storage.GetShrub(ctx, shrubID); err != nil {
		return nil, s.rejectVote(span, err)
	}

	var vote *model.Vote
	err := s.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		v, err := s.ledger.Cast(ctx, tx, shrubID, voterID, points)
		if err != nil {
			return err
		}
		vote = v
		return tx.AddVoteRef(ctx, shrubID, v.ID)
	})
	if err != nil {
		return nil, s.rejectVote(span, err)
	}

	s.metrics.VoteCast()
	s.logger.Info("vote cast",
		slog.String("shrub_id", string(shrubID)),
		slog.String("voter_id", string(voterID)),
		slog.Int("points", vote.Points),
	)
	return vote, nil
}

func (s *Service) rejectVote(span trace.Span, err error) error {
	fail(span, err)
	s.metrics.VoteRejected(rejectReason(err))
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, model.ErrInvalidPoints):
		return "invalid_points"
	case errors.Is(err, model.ErrPlayerNotFound):
		return "voter_not_found"
	case errors.Is(err, model.ErrShrubNotFound):
		return "shrub_not_found"
	case errors.Is(err, model.ErrWriteConflict):
		return "write_conflict"
	default:
		return "error"
	}
}

// RemoveVote retracts voterID's vote on shrubID. The shrub's vote
// reference set is not updated; scores always derive from vote records.
func (s *Service) RemoveVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	ctx, span := s.tracer.Start(ctx, "shrub.RemoveVote")
	defer span.End()

	if err := s.ledger.Retract(ctx, shrubID, voterID); err != nil {
		fail(span, err)
		return err
	}
	s.metrics.VoteRetracted()
	return nil
}

// Get returns a shrub with its owner's name and resolved votes
func (s *Service) Get(ctx context.Context, id model.ShrubID) (*Detail, error) {
	shrub, err := s.storage.GetShrub(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := s.ownerName(ctx, shrub.ShrubberID)
	if err != nil {
		return nil, err
	}
	votes, err := s.storage.GetVotes(ctx, shrub.Votes)
	if err != nil {
		return nil, err
	}
	return &Detail{Shrub: shrub, ShrubberName: name, Votes: votes}, nil
}

func (s *Service) ownerName(ctx context.Context, id model.PlayerID) (string, error) {
	p, err := s.players.Get(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// List returns every shrub, most vote references first, then newest first
func (s *Service) List(ctx context.Context) ([]*Detail, error) {
	shrubs, err := s.storage.ListShrubs(ctx)
	if err != nil {
		return nil, err
	}
	players, err := s.players.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[model.PlayerID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	// ListShrubs is newest first, so a stable sort keeps that as the tiebreak
	sort.SliceStable(shrubs, func(i, j int) bool {
		return len(shrubs[i].Votes) > len(shrubs[j].Votes)
	})

	details := make([]*Detail, 0, len(shrubs))
	for _, sh := range shrubs {
		details = append(details, &Detail{Shrub: sh, ShrubberName: names[sh.ShrubberID]})
	}
	return details, nil
}

// ListByPlayer returns the shrubs owned by playerID, newest first.
// Returns ErrPlayerNotFound for an unknown player.
func (s *Service) ListByPlayer(ctx context.Context, playerID model.PlayerID) ([]*Detail, error) {
	owner, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	shrubs, err := s.storage.ListShrubsByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	details := make([]*Detail, 0, len(shrubs))
	for _, sh := range shrubs {
		details = append(details, &Detail{Shrub: sh, ShrubberName: owner.Name})
	}
	return details, nil
}

// LeaderboardLimit resolves a caller-supplied bound against the configured
// default and maximum
func (s *Service) LeaderboardLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLeaderboardLimit
	}
	return min(limit, s.cfg.MaxLeaderboardLimit)
}

// Leaderboard returns the top shrubs by total points, ranked with
// competition ranking so tied shrubs share a rank.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error) {
	limit = s.LeaderboardLimit(limit)
	ctx, span := s.tracer.Start(ctx, "shrub.Leaderboard",
		trace.WithAttributes(attribute.Int("leaderboard.limit", limit)),
	)
	defer span.End()

	standings, err := s.storage.ShrubLeaderboard(ctx, limit)
	if err != nil {
		fail(span, err)
		s.logger.Error("failed to query shrub leaderboard", slog.String("error", err.Error()))
		return nil, err
	}
	s.metrics.LeaderboardQueried(metrics.BoardShrubs)
	return standings, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
