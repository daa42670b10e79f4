package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/shrubbery/internal/dependencies/mocks"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/services/ledger"
	"github.com/mcoot/shrubbery/internal/services/player"
	"github.com/mcoot/shrubbery/internal/services/shrub"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/storage/storagetest"
	"github.com/mcoot/shrubbery/internal/testutil"
)

func openSQLite(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shrubbery.db")
	st, err := Open(context.Background(), Config{Dialect: SQLite, DSN: SQLiteDSN(path)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage { return openSQLite(t) },
	})
}

// TestPostgresContract runs against a disposable database named by
// SHRUBBERY_TEST_POSTGRES_DSN. Every table is truncated before each test.
func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("SHRUBBERY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SHRUBBERY_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			st, err := Open(context.Background(), Config{Dialect: Postgres, DSN: dsn})
			require.NoError(t, err)
			_, err = st.db.Exec(`TRUNCATE players, player_shrubs, shrubs, shrub_votes, votes`)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			return st
		},
	})
}

type SQLiteSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	s.storage = openSQLite(s.T())
	s.ctx = context.Background()
}

func (s *SQLiteSuite) TestReopenKeepsData() {
	path := filepath.Join(s.T().TempDir(), "reopen.db")
	first, err := Open(s.ctx, Config{Dialect: SQLite, DSN: SQLiteDSN(path)})
	s.Require().NoError(err)
	s.Require().NoError(first.InsertPlayer(s.ctx, &model.Player{ID: "p1", Name: "alice"}))
	s.Require().NoError(first.Close())

	second, err := Open(s.ctx, Config{Dialect: SQLite, DSN: SQLiteDSN(path)})
	s.Require().NoError(err)
	defer func() { _ = second.Close() }()

	p, err := second.GetPlayerByName(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), p.ID)
}

func (s *SQLiteSuite) TestOpenRequiresDSN() {
	_, err := Open(s.ctx, Config{Dialect: SQLite})
	s.Error(err)
}

func (s *SQLiteSuite) TestInsertPlayerWithShrubRefs() {
	p := &model.Player{ID: "p1", Name: "alice", Shrubs: []model.ShrubID{"s1", "s2"}}
	s.Require().NoError(s.storage.InsertPlayer(s.ctx, p))

	got, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal([]model.ShrubID{"s1", "s2"}, got.Shrubs)
}

func (s *SQLiteSuite) TestGetVotesPreservesRequestOrder() {
	for i := 1; i <= 3; i++ {
		s.Require().NoError(s.storage.InsertVote(s.ctx, &model.Vote{
			ID:      model.VoteID(fmt.Sprintf("v%d", i)),
			ShrubID: "s1",
			VoterID: model.PlayerID(fmt.Sprintf("p%d", i)),
			Points:  i,
		}))
	}

	votes, err := s.storage.GetVotes(s.ctx, []model.VoteID{"v3", "v1", "v2"})
	s.Require().NoError(err)
	s.Require().Len(votes, 3)
	s.Equal(model.VoteID("v3"), votes[0].ID)
	s.Equal(model.VoteID("v1"), votes[1].ID)
	s.Equal(model.VoteID("v2"), votes[2].ID)
}

// A transaction holds its pool connection until commit, so every read made
// inside it has to go through the same connection.
func (s *SQLiteSuite) TestSingleConnectionPoolCreatesAndVotes() {
	path := filepath.Join(s.T().TempDir(), "single.db")
	st, err := Open(s.ctx, Config{Dialect: SQLite, DSN: SQLiteDSN(path), MaxOpenConns: 1})
	s.Require().NoError(err)
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	players := player.New(st, clk, logger, nil)
	svc := shrub.New(st, players, ledger.New(st, clk, logger, 0), clk, logger, nil, shrub.DefaultConfig())

	alice, err := players.Create(ctx, "alice", "")
	s.Require().NoError(err)
	bob, err := players.Create(ctx, "bob", "")
	s.Require().NoError(err)

	detail, err := svc.Create(ctx, shrub.CreateInput{ShrubberID: alice.ID, OriginalWord: "cat", TransformedWord: "hat"})
	s.Require().NoError(err)
	s.Len(detail.Votes, 1)

	_, err = svc.Vote(ctx, detail.Shrub.ID, bob.ID, 2)
	s.Require().NoError(err)

	_, err = svc.Vote(ctx, detail.Shrub.ID, "ghost", 1)
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.NoError(ctx.Err())
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	require.Equal(t, q, SQLite.rebind(q))
	require.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, Postgres.rebind(q))
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("postgres")
	require.NoError(t, err)
	require.Equal(t, Postgres.Name, d.Name)

	_, err = DialectByName("oracle")
	require.Error(t, err)
}
