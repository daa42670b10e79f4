package ranking

import (
	"testing"
	"time"

	"github.com/mcoot/shrubbery/internal/model"
	. "github.com/smartystreets/goconvey/convey"
)

func snapshot() Snapshot {
	alice := &model.Player{ID: "alice-id", Name: "alice"}
	bob := &model.Player{ID: "bob-id", Name: "bob"}
	carol := &model.Player{ID: "carol-id", Name: "carol"}

	hat := &model.Shrub{
		ID: "hat", ShrubberID: alice.ID, OriginalWord: "cat", TransformedWord: "hat",
		// stale reference cache: lists a vote that no longer exists
		Votes:     []model.VoteID{"v1", "v2", "gone"},
		CreatedAt: base,
	}
	log := &model.Shrub{ID: "log", ShrubberID: bob.ID, OriginalWord: "dog", TransformedWord: "log", CreatedAt: base.Add(time.Minute)}
	orphan := &model.Shrub{ID: "orphan", ShrubberID: "nobody", TransformedWord: "x", CreatedAt: base.Add(2 * time.Minute)}

	return Snapshot{
		Players: []*model.Player{alice, bob, carol},
		Shrubs:  []*model.Shrub{hat, log, orphan},
		Votes: []*model.Vote{
			{ID: "v1", ShrubID: hat.ID, VoterID: alice.ID, Points: 1},
			{ID: "v2", ShrubID: hat.ID, VoterID: bob.ID, Points: 3},
			{ID: "v3", ShrubID: log.ID, VoterID: bob.ID, Points: 1},
			{ID: "v4", ShrubID: orphan.ID, VoterID: carol.ID, Points: 5},
		},
	}
}

func TestShrubLeaderboard(t *testing.T) {
	Convey("Given shrubs with votes", t, func() {
		board := ShrubLeaderboard(snapshot(), 10)

		Convey("Totals come from vote records, not the reference cache", func() {
			So(board[0].ShrubID, ShouldEqual, model.ShrubID("hat"))
			So(board[0].TotalPoints, ShouldEqual, 4)
			So(board[0].UniqueVoterCount, ShouldEqual, 2)
			So(board[0].OwnerName, ShouldEqual, "alice")
		})

		Convey("Shrubs without a resolvable owner are left out", func() {
			So(board, ShouldHaveLength, 2)
			for _, s := range board {
				So(s.ShrubID, ShouldNotEqual, model.ShrubID("orphan"))
			}
		})

		Convey("Ranks follow competition ranking", func() {
			So(board[0].Rank, ShouldEqual, 1)
			So(board[1].Rank, ShouldEqual, 2)
		})
	})
}

func TestPlayerLeaderboard(t *testing.T) {
	Convey("Given players owning shrubs", t, func() {
		board := PlayerLeaderboard(snapshot(), PlayerLeaderboardCap)

		Convey("Every player appears, including those with no shrubs", func() {
			So(board, ShouldHaveLength, 3)
		})

		Convey("Totals join owned shrubs with their votes", func() {
			So(board[0].Name, ShouldEqual, "alice")
			So(board[0].TotalPoints, ShouldEqual, 4)
			So(board[0].ShrubCount, ShouldEqual, 1)
			So(board[0].UniqueVoterCount, ShouldEqual, 2)

			So(board[1].Name, ShouldEqual, "bob")
			So(board[1].TotalPoints, ShouldEqual, 1)

			So(board[2].Name, ShouldEqual, "carol")
			So(board[2].TotalPoints, ShouldEqual, 0)
			So(board[2].ShrubCount, ShouldEqual, 0)
		})

		Convey("Ranks are row numbers", func() {
			for i, s := range board {
				So(s.Rank, ShouldEqual, i+1)
			}
		})
	})
}
