// Package storagetest holds the behavioural test suite every storage backend
// must pass. Backend packages run it from their own tests:
//
//	suite.Run(t, &storagetest.Suite{NewStorage: func(t *testing.T) storage.Storage { ... }})
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// Suite exercises the storage.Storage contract against a fresh store per test
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store. Cleanup is the caller's job (t.Cleanup).
	NewStorage func(t *testing.T) storage.Storage

	store storage.Storage
	ctx   context.Context
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.store = s.NewStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
}

func (s *Suite) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *Suite) insertPlayer(name string) *model.Player {
	at := s.tick()
	p := &model.Player{
		ID:        model.PlayerID(s.store.NewID()),
		Name:      name,
		Email:     name + "@example.com",
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.Require().NoError(s.store.InsertPlayer(s.ctx, p))
	return p
}

func (s *Suite) insertShrub(owner *model.Player, original, transformed string) *model.Shrub {
	at := s.tick()
	sh := &model.Shrub{
		ID:              model.ShrubID(s.store.NewID()),
		ShrubberID:      owner.ID,
		CreatedByID:     owner.ID,
		OriginalWord:    original,
		TransformedWord: transformed,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	s.Require().NoError(s.store.InsertShrub(s.ctx, sh))
	return sh
}

func (s *Suite) newVote(shrub *model.Shrub, voter *model.Player, points int) *model.Vote {
	return &model.Vote{
		ID:        model.VoteID(s.store.NewID()),
		ShrubID:   shrub.ID,
		VoterID:   voter.ID,
		Points:    points,
		CreatedAt: s.tick(),
	}
}

func (s *Suite) castVote(shrub *model.Shrub, voter *model.Player, points int) *model.Vote {
	v := s.newVote(shrub, voter, points)
	s.Require().NoError(s.store.InsertVote(s.ctx, v))
	s.Require().NoError(s.store.AddVoteRef(s.ctx, shrub.ID, v.ID))
	return v
}

// Player tests

func (s *Suite) TestInsertAndGetPlayer() {
	p := s.insertPlayer("alice")

	got, err := s.store.GetPlayer(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal("alice", got.Name)
	s.Equal("alice@example.com", got.Email)
	s.Empty(got.Shrubs)
	s.True(p.CreatedAt.Equal(got.CreatedAt), "created at %v, got %v", p.CreatedAt, got.CreatedAt)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.store.GetPlayer(s.ctx, model.PlayerID(s.store.NewID()))
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestInsertPlayerDuplicateName() {
	s.insertPlayer("alice")

	dup := &model.Player{ID: model.PlayerID(s.store.NewID()), Name: "alice", CreatedAt: s.tick()}
	err := s.store.InsertPlayer(s.ctx, dup)
	s.ErrorIs(err, model.ErrPlayerNameTaken)

	_, err = s.store.GetPlayer(s.ctx, dup.ID)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetPlayerByName() {
	p := s.insertPlayer("bob")

	got, err := s.store.GetPlayerByName(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)

	_, err = s.store.GetPlayerByName(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPlayersInCreationOrder() {
	a := s.insertPlayer("zed")
	b := s.insertPlayer("amy")

	players, err := s.store.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 2)
	s.Equal(a.ID, players[0].ID)
	s.Equal(b.ID, players[1].ID)
}

func (s *Suite) TestAttachShrubIsIdempotent() {
	p := s.insertPlayer("alice")
	sh := s.insertShrub(p, "cat", "hat")

	s.Require().NoError(s.store.AttachShrub(s.ctx, p.ID, sh.ID))
	s.Require().NoError(s.store.AttachShrub(s.ctx, p.ID, sh.ID))

	got, err := s.store.GetPlayer(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal([]model.ShrubID{sh.ID}, got.Shrubs)
}

func (s *Suite) TestAttachShrubUnknownPlayer() {
	err := s.store.AttachShrub(s.ctx, model.PlayerID(s.store.NewID()), model.ShrubID(s.store.NewID()))
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Shrub tests

func (s *Suite) TestInsertAndGetShrub() {
	p := s.insertPlayer("alice")
	sh := s.insertShrub(p, "cat", "hat")

	got, err := s.store.GetShrub(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(sh.ID, got.ID)
	s.Equal(p.ID, got.ShrubberID)
	s.Equal(p.ID, got.CreatedByID)
	s.Equal("cat", got.OriginalWord)
	s.Equal("hat", got.TransformedWord)
	s.Empty(got.Votes)
	s.True(sh.CreatedAt.Equal(got.CreatedAt))
}

func (s *Suite) TestGetShrubNotFound() {
	_, err := s.store.GetShrub(s.ctx, model.ShrubID(s.store.NewID()))
	s.ErrorIs(err, model.ErrShrubNotFound)
}

func (s *Suite) TestListShrubsByPlayerNewestFirst() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	first := s.insertShrub(alice, "cat", "hat")
	s.insertShrub(bob, "dog", "log")
	second := s.insertShrub(alice, "mouse", "house")

	shrubs, err := s.store.ListShrubsByPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Require().Len(shrubs, 2)
	s.Equal(second.ID, shrubs[0].ID)
	s.Equal(first.ID, shrubs[1].ID)

	all, err := s.store.ListShrubs(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *Suite) TestLatestShrub() {
	alice := s.insertPlayer("alice")

	_, err := s.store.LatestShrub(s.ctx, alice.ID)
	s.ErrorIs(err, model.ErrShrubNotFound)

	s.insertShrub(alice, "cat", "hat")
	latest := s.insertShrub(alice, "mouse", "house")

	got, err := s.store.LatestShrub(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(latest.ID, got.ID)
	s.Equal("house", got.TransformedWord)
}

func (s *Suite) TestAddVoteRef() {
	alice := s.insertPlayer("alice")
	sh := s.insertShrub(alice, "cat", "hat")
	v := s.newVote(sh, alice, 1)
	s.Require().NoError(s.store.InsertVote(s.ctx, v))

	s.Require().NoError(s.store.AddVoteRef(s.ctx, sh.ID, v.ID))
	s.Require().NoError(s.store.AddVoteRef(s.ctx, sh.ID, v.ID))

	got, err := s.store.GetShrub(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal([]model.VoteID{v.ID}, got.Votes)

	err = s.store.AddVoteRef(s.ctx, model.ShrubID(s.store.NewID()), v.ID)
	s.ErrorIs(err, model.ErrShrubNotFound)
}

// Vote tests

func (s *Suite) TestInsertVoteTwiceConflicts() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")

	s.Require().NoError(s.store.InsertVote(s.ctx, s.newVote(sh, bob, 3)))
	err := s.store.InsertVote(s.ctx, s.newVote(sh, bob, 2))
	s.ErrorIs(err, model.ErrAlreadyVoted)

	n, err := s.store.CountVotes(s.ctx, sh.ID, bob.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestConcurrentDuplicateVotesOnlyOneWins() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")

	const attempts = 8
	votes := make([]*model.Vote, attempts)
	for i := range votes {
		votes[i] = s.newVote(sh, bob, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, v := range votes {
		wg.Add(1)
		go func(v *model.Vote) {
			defer wg.Done()
			err := s.store.InsertVote(s.ctx, v)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrAlreadyVoted):
				conflicts++
			}
		}(v)
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(attempts-1, conflicts)
	n, err := s.store.CountVotes(s.ctx, sh.ID, bob.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestDeleteVote() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")
	s.castVote(sh, bob, 3)

	s.Require().NoError(s.store.DeleteVote(s.ctx, sh.ID, bob.ID))

	n, err := s.store.CountVotes(s.ctx, sh.ID, bob.ID)
	s.Require().NoError(err)
	s.Zero(n)

	err = s.store.DeleteVote(s.ctx, sh.ID, bob.ID)
	s.ErrorIs(err, model.ErrVoteNotFound)
}

func (s *Suite) TestVoteAgainAfterDelete() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")
	s.castVote(sh, bob, 3)
	s.Require().NoError(s.store.DeleteVote(s.ctx, sh.ID, bob.ID))

	s.Require().NoError(s.store.InsertVote(s.ctx, s.newVote(sh, bob, 2)))
}

func (s *Suite) TestGetVotesSkipsMissing() {
	alice := s.insertPlayer("alice")
	sh := s.insertShrub(alice, "cat", "hat")
	v := s.castVote(sh, alice, 4)

	votes, err := s.store.GetVotes(s.ctx, []model.VoteID{v.ID, model.VoteID(s.store.NewID())})
	s.Require().NoError(err)
	s.Require().Len(votes, 1)
	s.Equal(v.ID, votes[0].ID)
	s.Equal(4, votes[0].Points)
	s.Equal(alice.ID, votes[0].VoterID)
	s.Equal(sh.ID, votes[0].ShrubID)

	votes, err = s.store.GetVotes(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(votes)
}

// Transaction tests

func (s *Suite) TestWithTxCommitsAllWrites() {
	alice := s.insertPlayer("alice")
	at := s.tick()
	sh := &model.Shrub{
		ID: model.ShrubID(s.store.NewID()), ShrubberID: alice.ID, CreatedByID: alice.ID,
		OriginalWord: "cat", TransformedWord: "hat", CreatedAt: at, UpdatedAt: at,
	}
	v := s.newVote(sh, alice, 1)

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertVote(ctx, v); err != nil {
			return err
		}
		if err := tx.AttachShrub(ctx, alice.ID, sh.ID); err != nil {
			return err
		}
		sh.Votes = []model.VoteID{v.ID}
		return tx.InsertShrub(ctx, sh)
	})
	s.Require().NoError(err)

	got, err := s.store.GetShrub(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal([]model.VoteID{v.ID}, got.Votes)

	owner, err := s.store.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal([]model.ShrubID{sh.ID}, owner.Shrubs)

	n, err := s.store.CountVotes(s.ctx, sh.ID, alice.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestWithTxReadsPlayers() {
	alice := s.insertPlayer("alice")

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetPlayer(ctx, alice.ID)
		if err != nil {
			return err
		}
		s.Equal("alice", got.Name)

		_, err = tx.GetPlayer(ctx, "ghost")
		s.ErrorIs(err, model.ErrPlayerNotFound)
		return nil
	})
	s.Require().NoError(err)
}

func (s *Suite) TestWithTxRollsBackOnError() {
	alice := s.insertPlayer("alice")
	at := s.tick()
	sh := &model.Shrub{
		ID: model.ShrubID(s.store.NewID()), ShrubberID: alice.ID, CreatedByID: alice.ID,
		OriginalWord: "cat", TransformedWord: "hat", CreatedAt: at, UpdatedAt: at,
	}
	v := s.newVote(sh, alice, 1)
	boom := errors.New("boom")

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertVote(ctx, v); err != nil {
			return err
		}
		if err := tx.AttachShrub(ctx, alice.ID, sh.ID); err != nil {
			return err
		}
		if err := tx.InsertShrub(ctx, sh); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.GetShrub(s.ctx, sh.ID)
	s.ErrorIs(err, model.ErrShrubNotFound)

	owner, err := s.store.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Empty(owner.Shrubs)

	n, err := s.store.CountVotes(s.ctx, sh.ID, alice.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *Suite) TestWithTxAttachUnknownPlayerAborts() {
	alice := s.insertPlayer("alice")
	sh := &model.Shrub{ID: model.ShrubID(s.store.NewID()), ShrubberID: alice.ID, CreatedAt: s.tick()}
	v := s.newVote(sh, alice, 1)

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertVote(ctx, v); err != nil {
			return err
		}
		return tx.AttachShrub(ctx, model.PlayerID(s.store.NewID()), sh.ID)
	})
	s.ErrorIs(err, model.ErrPlayerNotFound)

	n, err := s.store.CountVotes(s.ctx, sh.ID, alice.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *Suite) TestWithTxDuplicateVoteRollsBack() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")
	s.castVote(sh, bob, 1)

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		v := s.newVote(sh, bob, 2)
		if err := tx.InsertVote(ctx, v); err != nil {
			return err
		}
		return tx.AddVoteRef(ctx, sh.ID, v.ID)
	})
	s.ErrorIs(err, model.ErrAlreadyVoted)

	got, err := s.store.GetShrub(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(got.Votes, 1)
}

func (s *Suite) TestWithTxAddVoteRefToStagedShrub() {
	alice := s.insertPlayer("alice")
	sh := &model.Shrub{
		ID: model.ShrubID(s.store.NewID()), ShrubberID: alice.ID, CreatedByID: alice.ID,
		OriginalWord: "cat", TransformedWord: "hat", CreatedAt: s.tick(),
	}
	v := s.newVote(sh, alice, 1)

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertShrub(ctx, sh); err != nil {
			return err
		}
		if err := tx.InsertVote(ctx, v); err != nil {
			return err
		}
		return tx.AddVoteRef(ctx, sh.ID, v.ID)
	})
	s.Require().NoError(err)

	got, err := s.store.GetShrub(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal([]model.VoteID{v.ID}, got.Votes)
}

// Aggregation tests

func (s *Suite) TestShrubLeaderboardCompetitionRank() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	carol := s.insertPlayer("carol")

	first := s.insertShrub(alice, "cat", "hat")
	second := s.insertShrub(bob, "dog", "log")
	third := s.insertShrub(carol, "pig", "wig")

	s.castVote(first, alice, 5)
	s.castVote(first, bob, 5)
	s.castVote(second, carol, 10)
	s.castVote(third, carol, 7)

	board, err := s.store.ShrubLeaderboard(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 3)

	s.Equal(first.ID, board[0].ShrubID)
	s.Equal(10, board[0].TotalPoints)
	s.Equal(2, board[0].UniqueVoterCount)
	s.Equal(1, board[0].Rank)
	s.Equal("alice", board[0].OwnerName)
	s.Equal("cat", board[0].OriginalWord)
	s.Equal("hat", board[0].TransformedWord)

	s.Equal(second.ID, board[1].ShrubID)
	s.Equal(1, board[1].Rank)

	s.Equal(third.ID, board[2].ShrubID)
	s.Equal(7, board[2].TotalPoints)
	s.Equal(3, board[2].Rank)

	top, err := s.store.ShrubLeaderboard(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(top, 1)
}

func (s *Suite) TestShrubLeaderboardIgnoresStaleVoteRefs() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	sh := s.insertShrub(alice, "cat", "hat")
	s.castVote(sh, alice, 1)
	s.castVote(sh, bob, 3)
	s.Require().NoError(s.store.DeleteVote(s.ctx, sh.ID, bob.ID))
	s.Require().NoError(s.store.AddVoteRef(s.ctx, sh.ID, model.VoteID(s.store.NewID())))

	board, err := s.store.ShrubLeaderboard(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 1)
	s.Equal(1, board[0].TotalPoints)
	s.Equal(1, board[0].UniqueVoterCount)
}

func (s *Suite) TestPlayerLeaderboardRowNumbers() {
	alice := s.insertPlayer("alice")
	bob := s.insertPlayer("bob")
	carol := s.insertPlayer("carol")

	hat := s.insertShrub(alice, "cat", "hat")
	log := s.insertShrub(bob, "dog", "log")
	wig := s.insertShrub(bob, "pig", "wig")

	s.castVote(hat, alice, 2)
	s.castVote(hat, carol, 2)
	s.castVote(log, bob, 1)
	s.castVote(wig, carol, 3)

	board, err := s.store.PlayerLeaderboard(s.ctx, 100)
	s.Require().NoError(err)
	s.Require().Len(board, 3)

	s.Equal(alice.ID, board[0].PlayerID)
	s.Equal(1, board[0].Rank)
	s.Equal(4, board[0].TotalPoints)
	s.Equal(1, board[0].ShrubCount)
	s.Equal(2, board[0].UniqueVoterCount)

	s.Equal(bob.ID, board[1].PlayerID)
	s.Equal(2, board[1].Rank)
	s.Equal(4, board[1].TotalPoints)
	s.Equal(2, board[1].ShrubCount)
	s.Equal(2, board[1].UniqueVoterCount)

	s.Equal(carol.ID, board[2].PlayerID)
	s.Equal(3, board[2].Rank)
	s.Zero(board[2].TotalPoints)
	s.Zero(board[2].ShrubCount)

	top, err := s.store.PlayerLeaderboard(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(top, 2)
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
