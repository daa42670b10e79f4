package shrub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mcoot/shrubbery/internal/dependencies/mocks"
	"github.com/mcoot/shrubbery/internal/metrics"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/services/ledger"
	"github.com/mcoot/shrubbery/internal/services/player"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/storage/memory"
	"github.com/mcoot/shrubbery/internal/testutil"
)

// linkFailingStorage fails every owner link made inside a transaction
type linkFailingStorage struct {
	*memory.Storage
}

type linkFailingTx struct {
	storage.Tx
}

var errLinkFailed = errors.New("link failed")

func (l *linkFailingTx) AttachShrub(context.Context, model.PlayerID, model.ShrubID) error {
	return errLinkFailed
}

func (l *linkFailingStorage) WithTx(ctx context.Context, fn storage.TxFunc) error {
	return l.Storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, &linkFailingTx{Tx: tx})
	})
}

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	metrics *metrics.Manager
	players *player.Service
	ledger  *ledger.Ledger
	service *Service
	ctx     context.Context

	alice *model.Player
	bob   *model.Player
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewSteppingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Second)
	s.metrics = metrics.NewManager()
	s.ctx = context.Background()
	s.service = s.build(s.storage, DefaultConfig())

	var err error
	s.alice, err = s.players.Create(s.ctx, "alice", "")
	s.Require().NoError(err)
	s.bob, err = s.players.Create(s.ctx, "bob", "")
	s.Require().NoError(err)
}

func (s *ServiceSuite) build(store storage.Storage, cfg Config) *Service {
	logger := testutil.NopLogger()
	s.players = player.New(store, s.clock, logger, s.metrics)
	s.ledger = ledger.New(store, s.clock, logger, 5)
	return New(store, s.players, s.ledger, s.clock, logger, s.metrics, cfg)
}

func (s *ServiceSuite) create(owner *model.Player, original, transformed string) *model.Shrub {
	d, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      owner.ID,
		OriginalWord:    original,
		TransformedWord: transformed,
	})
	s.Require().NoError(err)
	return d.Shrub
}

func (s *ServiceSuite) standing(id model.ShrubID) (int, int) {
	board, err := s.service.Leaderboard(s.ctx, 0)
	s.Require().NoError(err)
	for _, st := range board {
		if st.ShrubID == id {
			return st.TotalPoints, st.UniqueVoterCount
		}
	}
	s.FailNow("shrub not on leaderboard", string(id))
	return 0, 0
}

// Create tests

func (s *ServiceSuite) TestCreateSelfVotesAndLinksOwner() {
	d, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		OriginalWord:    "cat",
		TransformedWord: "hat",
		Description:     "a cat in a hat",
	})
	s.Require().NoError(err)

	s.Equal("alice", d.ShrubberName)
	s.Equal(s.alice.ID, d.Shrub.ShrubberID)
	s.Equal(s.alice.ID, d.Shrub.CreatedByID)
	s.Require().Len(d.Shrub.Votes, 1)
	s.Require().Len(d.Votes, 1)
	s.Equal(s.alice.ID, d.Votes[0].VoterID)
	s.Equal(model.DefaultVotePoints, d.Votes[0].Points)
	s.Equal(d.Shrub.Votes[0], d.Votes[0].ID)

	owner, _ := s.players.Get(s.ctx, s.alice.ID)
	s.Equal([]model.ShrubID{d.Shrub.ID}, owner.Shrubs)

	stored, err := s.service.Get(s.ctx, d.Shrub.ID)
	s.Require().NoError(err)
	s.Equal("hat", stored.Shrub.TransformedWord)
	s.Len(stored.Votes, 1)
}

func (s *ServiceSuite) TestCreateSelfVoteCarriesDeclaredPoints() {
	d, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		OriginalWord:    "cat",
		TransformedWord: "hat",
		Points:          4,
	})
	s.Require().NoError(err)
	s.Equal(4, d.Votes[0].Points)
}

func (s *ServiceSuite) TestCreateUnknownOwnerWritesNothing() {
	_, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      "ghost",
		OriginalWord:    "cat",
		TransformedWord: "hat",
	})

	var cerr *CreationError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StateValidating, cerr.State)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	shrubs, _ := s.storage.ListShrubs(s.ctx)
	s.Empty(shrubs)
	n, _ := s.storage.CountVotes(s.ctx, "", "ghost")
	s.Zero(n)
}

func (s *ServiceSuite) TestCreateInvalidPointsFailsInSelfVoting() {
	_, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		OriginalWord:    "cat",
		TransformedWord: "hat",
		Points:          99,
	})

	var cerr *CreationError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StateSelfVoting, cerr.State)
	s.ErrorIs(err, model.ErrInvalidPoints)

	shrubs, _ := s.storage.ListShrubs(s.ctx)
	s.Empty(shrubs)
}

func (s *ServiceSuite) TestCreateUnknownCreatorFailsInSelfVoting() {
	_, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		CreatedByID:     "ghost",
		OriginalWord:    "cat",
		TransformedWord: "hat",
	})

	var cerr *CreationError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StateSelfVoting, cerr.State)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestCreateLinkFailureRollsBackSelfVote() {
	faulty := &linkFailingStorage{Storage: s.storage}
	svc := s.build(faulty, DefaultConfig())

	_, err := svc.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		OriginalWord:    "cat",
		TransformedWord: "hat",
	})

	var cerr *CreationError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(StateLinkingToOwner, cerr.State)
	s.ErrorIs(err, errLinkFailed)

	shrubs, _ := s.storage.ListShrubs(s.ctx)
	s.Empty(shrubs)
	board, _ := s.storage.PlayerLeaderboard(s.ctx, 0)
	for _, st := range board {
		s.Zero(st.TotalPoints)
	}
	owner, _ := s.storage.GetPlayer(s.ctx, s.alice.ID)
	s.Empty(owner.Shrubs)
}

func (s *ServiceSuite) TestCreationErrorMessage() {
	err := &CreationError{State: StateLinkingToOwner, Err: model.ErrPlayerNotFound}
	s.Equal("create shrub: linking_to_owner: player not found", err.Error())
	s.Equal("state(9)", CreationState(9).String())
}

// Vote tests

func (s *ServiceSuite) TestCreateLogsWorkflowStates() {
	logger, logs := testutil.NewLogRecorder(s.T())
	svc := New(s.storage, s.players, s.ledger, s.clock, logger, nil, DefaultConfig())

	_, err := svc.Create(s.ctx, CreateInput{ShrubberID: s.alice.ID, OriginalWord: "cat", TransformedWord: "hat"})
	s.Require().NoError(err)

	var states []any
	for _, e := range logs.Entries("shrub creation") {
		states = append(states, e["state"])
	}
	s.Equal([]any{"creating", "self_voting", "linking_to_owner"}, states)
}

func (s *ServiceSuite) TestVoteRegistersReference() {
	sh := s.create(s.alice, "cat", "hat")

	vote, err := s.service.Vote(s.ctx, sh.ID, s.bob.ID, 3)
	s.Require().NoError(err)
	s.Equal(3, vote.Points)

	d, err := s.service.Get(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(d.Shrub.Votes, 2)
	s.Contains(d.Shrub.Votes, vote.ID)
}

func (s *ServiceSuite) TestVoteTwiceConflicts() {
	sh := s.create(s.alice, "cat", "hat")
	_, err := s.service.Vote(s.ctx, sh.ID, s.bob.ID, 1)
	s.Require().NoError(err)

	_, err = s.service.Vote(s.ctx, sh.ID, s.bob.ID, 1)
	s.ErrorIs(err, model.ErrAlreadyVoted)

	n, _ := s.storage.CountVotes(s.ctx, sh.ID, s.bob.ID)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestVoteUnknownShrub() {
	_, err := s.service.Vote(s.ctx, "missing", s.bob.ID, 1)
	s.ErrorIs(err, model.ErrShrubNotFound)

	n, _ := s.storage.CountVotes(s.ctx, "missing", s.bob.ID)
	s.Zero(n)
}

func (s *ServiceSuite) TestVoteUnknownVoter() {
	sh := s.create(s.alice, "cat", "hat")
	_, err := s.service.Vote(s.ctx, sh.ID, "ghost", 1)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestRemoveVoteMissing() {
	sh := s.create(s.alice, "cat", "hat")
	err := s.service.RemoveVote(s.ctx, sh.ID, s.bob.ID)
	s.ErrorIs(err, model.ErrVoteNotFound)
}

func (s *ServiceSuite) TestRemoveVoteLeavesReferenceHint() {
	sh := s.create(s.alice, "cat", "hat")
	_, err := s.service.Vote(s.ctx, sh.ID, s.bob.ID, 2)
	s.Require().NoError(err)

	s.Require().NoError(s.service.RemoveVote(s.ctx, sh.ID, s.bob.ID))

	n, _ := s.storage.CountVotes(s.ctx, sh.ID, s.bob.ID)
	s.Zero(n)

	// the stale reference stays but is ignored everywhere
	d, err := s.service.Get(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(d.Shrub.Votes, 2)
	s.Len(d.Votes, 1)

	points, voters := s.standing(sh.ID)
	s.Equal(1, points)
	s.Equal(1, voters)
}

// The walkthrough of register, create, vote, conflict and retract

func (s *ServiceSuite) TestVotingScenario() {
	d, err := s.service.Create(s.ctx, CreateInput{
		ShrubberID:      s.alice.ID,
		OriginalWord:    "cat",
		TransformedWord: "hat",
		Points:          1,
	})
	s.Require().NoError(err)
	sh := d.Shrub
	s.Len(d.Votes, 1)
	owner, _ := s.players.Get(s.ctx, s.alice.ID)
	s.Contains(owner.Shrubs, sh.ID)

	_, err = s.service.Vote(s.ctx, sh.ID, s.bob.ID, 3)
	s.Require().NoError(err)
	points, voters := s.standing(sh.ID)
	s.Equal(4, points)
	s.Equal(2, voters)

	_, err = s.service.Vote(s.ctx, sh.ID, s.bob.ID, 3)
	s.ErrorIs(err, model.ErrAlreadyVoted)

	s.Require().NoError(s.service.RemoveVote(s.ctx, sh.ID, s.bob.ID))
	points, voters = s.standing(sh.ID)
	s.Equal(1, points)
	s.Equal(1, voters)
}

// Listing tests

func (s *ServiceSuite) TestListOrdersByVoteSetThenNewest() {
	first := s.create(s.alice, "cat", "hat")
	second := s.create(s.bob, "dog", "log")
	third := s.create(s.alice, "sun", "fun")
	_, err := s.service.Vote(s.ctx, first.ID, s.bob.ID, 1)
	s.Require().NoError(err)

	list, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)

	s.Equal(first.ID, list[0].Shrub.ID)
	s.Equal(third.ID, list[1].Shrub.ID)
	s.Equal(second.ID, list[2].Shrub.ID)
	s.Equal("alice", list[0].ShrubberName)
	s.Equal("bob", list[2].ShrubberName)
	s.Nil(list[0].Votes)
}

func (s *ServiceSuite) TestListByPlayer() {
	first := s.create(s.alice, "cat", "hat")
	s.create(s.bob, "dog", "log")
	second := s.create(s.alice, "sun", "fun")

	list, err := s.service.ListByPlayer(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].Shrub.ID)
	s.Equal(first.ID, list[1].Shrub.ID)
	s.Equal("alice", list[0].ShrubberName)

	_, err = s.service.ListByPlayer(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestGetUnknownShrub() {
	_, err := s.service.Get(s.ctx, "missing")
	s.ErrorIs(err, model.ErrShrubNotFound)
}

// Leaderboard tests

func (s *ServiceSuite) TestLeaderboardCompetitionRank() {
	carol, err := s.players.Create(s.ctx, "carol", "")
	s.Require().NoError(err)

	a := s.create(s.alice, "cat", "hat")
	b := s.create(s.bob, "dog", "log")
	c := s.create(carol, "sun", "fun")

	// totals: a=1+5+4=10, b=1+5+4=10, c=1+5+1=7
	for _, v := range []struct {
		shrub  model.ShrubID
		voter  model.PlayerID
		points int
	}{
		{a.ID, s.bob.ID, 5}, {a.ID, carol.ID, 4},
		{b.ID, s.alice.ID, 5}, {b.ID, carol.ID, 4},
		{c.ID, s.alice.ID, 5}, {c.ID, s.bob.ID, 1},
	} {
		_, err := s.service.Vote(s.ctx, v.shrub, v.voter, v.points)
		s.Require().NoError(err)
	}

	board, err := s.service.Leaderboard(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 3)

	s.Equal([]int{10, 10, 7}, []int{board[0].TotalPoints, board[1].TotalPoints, board[2].TotalPoints})
	s.Equal([]int{1, 1, 3}, []int{board[0].Rank, board[1].Rank, board[2].Rank})
	// equal points fall back to creation order
	s.Equal(a.ID, board[0].ShrubID)
	s.Equal(b.ID, board[1].ShrubID)
	s.Equal("carol", board[2].OwnerName)
	s.Equal(3, board[2].UniqueVoterCount)
}

func (s *ServiceSuite) TestLeaderboardLimit() {
	for _, w := range []string{"a", "b", "c"} {
		s.create(s.alice, w, w+"x")
	}

	board, err := s.service.Leaderboard(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(board, 2)
}

func (s *ServiceSuite) TestLeaderboardLimitResolution() {
	svc := s.build(s.storage, Config{DefaultLeaderboardLimit: 20, MaxLeaderboardLimit: 30})
	s.Equal(20, svc.LeaderboardLimit(0))
	s.Equal(20, svc.LeaderboardLimit(-4))
	s.Equal(7, svc.LeaderboardLimit(7))
	s.Equal(30, svc.LeaderboardLimit(500))

	fallback := s.build(s.storage, Config{})
	s.Equal(DefaultLeaderboardLimit, fallback.LeaderboardLimit(0))
	s.Equal(MaxLeaderboardLimit, fallback.LeaderboardLimit(1000))

	small := s.build(s.storage, Config{MaxLeaderboardLimit: 5})
	s.Equal(5, small.LeaderboardLimit(0))
}

func TestCreateEmitsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	store := memory.New()
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	players := player.New(store, clock, logger, nil)
	svc := New(store, players, ledger.New(store, clock, logger, 0), clock, logger, nil, DefaultConfig())

	ctx := context.Background()
	owner, err := players.Create(ctx, "alice", "")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{ShrubberID: owner.ID, OriginalWord: "cat", TransformedWord: "hat"}); err != nil {
		t.Fatalf("create shrub: %v", err)
	}

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	found := false
	for _, n := range names {
		if n == "shrub.Create" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected shrub.Create span, got %v", names)
	}
}
