package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Output handles formatting output based on the configured format
type Output struct {
	format  string
	w       io.Writer
	printer *message.Printer
	now     func() time.Time
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{
		format:  format,
		w:       w,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == OutputJSON {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == OutputJSON {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case []Player:
		o.printPlayers(v)
	case Shrub:
		o.printShrub(v)
	case []Shrub:
		o.printShrubs(v)
	case Vote:
		o.printVote(v)
	case []PlayerStanding:
		o.printPlayerLeaderboard(v)
	case []ShrubStanding:
		o.printShrubLeaderboard(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Shrubs    []string  `json:"shrubs"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote response type
type Vote struct {
	ID        string    `json:"id"`
	ShrubID   string    `json:"shrub_id"`
	VoterID   string    `json:"voter_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Shrub response type
type Shrub struct {
	ID              string    `json:"id"`
	ShrubberID      string    `json:"shrubber_id"`
	ShrubberName    string    `json:"shrubber_name"`
	CreatedByID     string    `json:"created_by_id"`
	OriginalWord    string    `json:"original_word"`
	TransformedWord string    `json:"transformed_word"`
	Description     string    `json:"description,omitempty"`
	Votes           []string  `json:"votes"`
	ResolvedVotes   []Vote    `json:"resolved_votes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PlayerStanding is a player leaderboard row
type PlayerStanding struct {
	PlayerID         string `json:"player_id"`
	Rank             int    `json:"rank"`
	Name             string `json:"name"`
	ShrubCount       int    `json:"shrub_count"`
	TotalPoints      int    `json:"total_points"`
	UniqueVoterCount int    `json:"unique_voter_count"`
	LatestShrub      string `json:"latest_shrub,omitempty"`
}

// ShrubStanding is a shrub leaderboard row
type ShrubStanding struct {
	ShrubID          string    `json:"shrub_id"`
	Rank             int       `json:"rank"`
	OriginalWord     string    `json:"original_word"`
	TransformedWord  string    `json:"transformed_word"`
	OwnerName        string    `json:"owner_name"`
	TotalPoints      int       `json:"total_points"`
	UniqueVoterCount int       `json:"unique_voter_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, o.now(), "ago", "from now")
}

func (o *Output) points(n int) string {
	if n == 1 {
		return "1 point"
	}
	return o.printer.Sprintf("%d points", n)
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Name, p.ID)
	if p.Email != "" {
		_, _ = fmt.Fprintf(o.w, "Email: %s\n", p.Email)
	}
	_, _ = fmt.Fprintf(o.w, "Joined: %s\n", o.ago(p.CreatedAt))
	_, _ = fmt.Fprintf(o.w, "Shrubs: %s\n", o.printer.Sprintf("%d", len(p.Shrubs)))
}

func (o *Output) printPlayers(players []Player) {
	if len(players) == 0 {
		_, _ = fmt.Fprintln(o.w, "No players")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tID\tSHRUBS\tJOINED")
	for _, p := range players {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name, p.ID, len(p.Shrubs), o.ago(p.CreatedAt))
	}
	_ = tw.Flush()
}

func (o *Output) printShrub(s Shrub) {
	_, _ = fmt.Fprintf(o.w, "Shrub: %s -> %s (%s)\n", s.OriginalWord, s.TransformedWord, s.ID)
	_, _ = fmt.Fprintf(o.w, "Shrubber: %s\n", orDash(s.ShrubberName))
	if s.Description != "" {
		_, _ = fmt.Fprintf(o.w, "Description: %s\n", s.Description)
	}
	_, _ = fmt.Fprintf(o.w, "Created: %s\n", o.ago(s.CreatedAt))

	if len(s.ResolvedVotes) == 0 {
		_, _ = fmt.Fprintf(o.w, "Votes: %d\n", len(s.Votes))
		return
	}
	total := 0
	for _, v := range s.ResolvedVotes {
		total += v.Points
	}
	_, _ = fmt.Fprintf(o.w, "Votes (%d, %s):\n", len(s.ResolvedVotes), o.points(total))
	for _, v := range s.ResolvedVotes {
		_, _ = fmt.Fprintf(o.w, "  - %s: %s\n", v.VoterID, o.points(v.Points))
	}
}

func (o *Output) printShrubs(shrubs []Shrub) {
	if len(shrubs) == 0 {
		_, _ = fmt.Fprintln(o.w, "No shrubs")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SHRUB\tSHRUBBER\tVOTES\tID\tCREATED")
	for _, s := range shrubs {
		_, _ = fmt.Fprintf(tw, "%s -> %s\t%s\t%d\t%s\t%s\n",
			s.OriginalWord, s.TransformedWord, orDash(s.ShrubberName), len(s.Votes), s.ID, o.ago(s.CreatedAt))
	}
	_ = tw.Flush()
}

func (o *Output) printVote(v Vote) {
	_, _ = fmt.Fprintf(o.w, "Voted %s for shrub %s\n", o.points(v.Points), v.ShrubID)
}

func (o *Output) printPlayerLeaderboard(rows []PlayerStanding) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(o.w, "Leaderboard is empty")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tPLAYER\tPOINTS\tVOTERS\tSHRUBS\tLATEST")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Ordinal(r.Rank), r.Name,
			o.printer.Sprintf("%d", r.TotalPoints),
			o.printer.Sprintf("%d", r.UniqueVoterCount),
			o.printer.Sprintf("%d", r.ShrubCount),
			orDash(r.LatestShrub))
	}
	_ = tw.Flush()
}

func (o *Output) printShrubLeaderboard(rows []ShrubStanding) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(o.w, "Leaderboard is empty")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tSHRUB\tOWNER\tPOINTS\tVOTERS\tCREATED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Ordinal(r.Rank),
			r.OriginalWord+" -> "+r.TransformedWord,
			orDash(r.OwnerName),
			o.printer.Sprintf("%d", r.TotalPoints),
			o.printer.Sprintf("%d", r.UniqueVoterCount),
			o.ago(r.CreatedAt))
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
