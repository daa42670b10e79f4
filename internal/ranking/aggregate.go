package ranking

import "github.com/mcoot/shrubbery/internal/model"

// Snapshot is the full set of records an in-process aggregation joins over
type Snapshot struct {
	Players []*model.Player
	Shrubs  []*model.Shrub
	Votes   []*model.Vote
}

type voteTotals struct {
	points int
	voters map[model.PlayerID]struct{}
}

func (t *voteTotals) add(v *model.Vote) {
	t.points += v.Points
	t.voters[v.VoterID] = struct{}{}
}

func newVoteTotals() *voteTotals {
	return &voteTotals{voters: make(map[model.PlayerID]struct{})}
}

// votesByShrub groups vote records by the shrub they target. The shrub's own
// vote reference cache is never consulted.
func votesByShrub(votes []*model.Vote) map[model.ShrubID][]*model.Vote {
	grouped := make(map[model.ShrubID][]*model.Vote)
	for _, v := range votes {
		grouped[v.ShrubID] = append(grouped[v.ShrubID], v)
	}
	return grouped
}

// PlayerLeaderboard joins every player with the shrubs they own and the votes
// on those shrubs, then ranks by row number.
func PlayerLeaderboard(snap Snapshot, limit int) []PlayerStanding {
	byShrub := votesByShrub(snap.Votes)

	owned := make(map[model.PlayerID][]*model.Shrub)
	for _, s := range snap.Shrubs {
		owned[s.ShrubberID] = append(owned[s.ShrubberID], s)
	}

	standings := make([]PlayerStanding, 0, len(snap.Players))
	for _, p := range snap.Players {
		totals := newVoteTotals()
		for _, s := range owned[p.ID] {
			for _, v := range byShrub[s.ID] {
				totals.add(v)
			}
		}
		standings = append(standings, PlayerStanding{
			PlayerID:         p.ID,
			Name:             p.Name,
			ShrubCount:       len(owned[p.ID]),
			TotalPoints:      totals.points,
			UniqueVoterCount: len(totals.voters),
		})
	}

	return RankPlayers(standings, limit)
}

// ShrubLeaderboard joins every shrub with its votes and owner, then ranks by
// competition rank. Shrubs whose owner no longer resolves are left out.
func ShrubLeaderboard(snap Snapshot, limit int) []ShrubStanding {
	byShrub := votesByShrub(snap.Votes)

	names := make(map[model.PlayerID]string, len(snap.Players))
	for _, p := range snap.Players {
		names[p.ID] = p.Name
	}

	standings := make([]ShrubStanding, 0, len(snap.Shrubs))
	for _, s := range snap.Shrubs {
		owner, ok := names[s.ShrubberID]
		if !ok {
			continue
		}
		totals := newVoteTotals()
		for _, v := range byShrub[s.ID] {
			totals.add(v)
		}
		standings = append(standings, ShrubStanding{
			ShrubID:          s.ID,
			OriginalWord:     s.OriginalWord,
			TransformedWord:  s.TransformedWord,
			Description:      s.Description,
			OwnerName:        owner,
			TotalPoints:      totals.points,
			UniqueVoterCount: len(totals.voters),
			CreatedAt:        s.CreatedAt,
		})
	}

	return RankShrubs(standings, limit)
}
