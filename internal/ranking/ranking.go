// Package ranking holds the two leaderboard algorithms and the in-process
// aggregation used by stores that cannot join on the server side.
//
// Players are ranked by row number: every entry gets a distinct rank in sort
// order, ties included. Shrubs are ranked by competition rank: tied totals
// share a rank and the next distinct total resumes at its position, leaving
// gaps. The two policies are deliberately separate functions.
package ranking

import (
	"sort"
	"time"

	"github.com/mcoot/shrubbery/internal/model"
)

// PlayerLeaderboardCap bounds the player leaderboard
const PlayerLeaderboardCap = 100

// PlayerStanding is one row of the player leaderboard
type PlayerStanding struct {
	PlayerID         model.PlayerID
	Rank             int
	Name             string
	ShrubCount       int
	TotalPoints      int
	UniqueVoterCount int

	// LatestShrub is the transformed word of the player's newest shrub.
	// Filled in by the player service after ranking, empty if none.
	LatestShrub string
}

// ShrubStanding is one row of the shrub leaderboard
type ShrubStanding struct {
	ShrubID          model.ShrubID
	Rank             int
	OriginalWord     string
	TransformedWord  string
	Description      string
	OwnerName        string
	TotalPoints      int
	UniqueVoterCount int
	CreatedAt        time.Time
}

// SortPlayers orders standings by total points desc, then name, then id.
func SortPlayers(standings []PlayerStanding) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlayerID < b.PlayerID
	})
}

// SortShrubs orders standings by total points desc, then oldest first, then id.
func SortShrubs(standings []ShrubStanding) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ShrubID < b.ShrubID
	})
}

// AssignRowNumbers sets Rank to the 1-based position of each standing.
// Standings must already be sorted.
func AssignRowNumbers(standings []PlayerStanding) {
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// AssignCompetitionRanks sets Rank so that equal totals share a rank and the
// next distinct total takes its 1-based position, e.g. [10 10 7] -> [1 1 3].
// Standings must already be sorted.
func AssignCompetitionRanks(standings []ShrubStanding) {
	for i := range standings {
		if i > 0 && standings[i].TotalPoints == standings[i-1].TotalPoints {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = i + 1
	}
}

// RankPlayers sorts, assigns row-number ranks and truncates to limit.
// A limit <= 0 means no truncation.
func RankPlayers(standings []PlayerStanding, limit int) []PlayerStanding {
	SortPlayers(standings)
	AssignRowNumbers(standings)
	return truncate(standings, limit)
}

// RankShrubs sorts, assigns competition ranks and truncates to limit.
// Ranks are assigned over the full set before truncation.
func RankShrubs(standings []ShrubStanding, limit int) []ShrubStanding {
	SortShrubs(standings)
	AssignCompetitionRanks(standings)
	return truncate(standings, limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
