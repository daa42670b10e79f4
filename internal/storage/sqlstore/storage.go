// Package sqlstore is a database/sql implementation of the storage interface
// for sqlite and postgres. Leaderboards are computed by the database with
// window functions.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mcoot/shrubbery/internal/dependencies/idgen"
	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/ranking"
	"github.com/mcoot/shrubbery/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Config holds SQL connection settings
type Config struct {
	Dialect Dialect
	DSN     string

	MaxOpenConns int
}

// Storage is a SQL-backed implementation of the storage interface
type Storage struct {
	db      *sql.DB
	dialect Dialect
	ids     idgen.Generator
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects, verifies the connection and applies the schema
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s dsn is required", cfg.Dialect.Name)
	}

	db, err := sql.Open(cfg.Dialect.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Dialect.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Dialect.Name, err)
	}

	s := &Storage{db: db, dialect: cfg.Dialect, ids: idgen.New()}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) NewID() string {
	return s.ids.NewID()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// querier is the surface shared by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
}

func (s *Storage) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(q), args...)
}

// Single writes run as one-statement transactions so they share the
// transactional code path, including its existence checks.

func (s *Storage) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	return s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertShrub(ctx, shrub)
	})
}

func (s *Storage) InsertVote(ctx context.Context, vote *model.Vote) error {
	return s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertVote(ctx, vote)
	})
}

func (s *Storage) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	return s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.AttachShrub(ctx, playerID, shrubID)
	})
}

func (s *Storage) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	return s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.AddVoteRef(ctx, shrubID, voteID)
	})
}

// Player operations

func (s *Storage) InsertPlayer(ctx context.Context, player *model.Player) error {
	return s.WithTx(ctx, func(ctx context.Context, t storage.Tx) error {
		w := t.(*tx)
		_, err := w.exec(ctx,
			`INSERT INTO players (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			string(player.ID), player.Name, player.Email, toMillis(player.CreatedAt), toMillis(player.UpdatedAt))
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return model.ErrPlayerNameTaken
			}
			return err
		}
		for _, shrubID := range player.Shrubs {
			if err := w.AttachShrub(ctx, player.ID, shrubID); err != nil {
				return err
			}
		}
		return nil
	})
}

const playerColumns = `id, name, email, created_at, updated_at`

func scanPlayer(row interface{ Scan(...any) error }) (*model.Player, error) {
	var (
		p                    model.Player
		id                   string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &p.Name, &p.Email, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ID = model.PlayerID(id)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// getPlayerWhere reads one player and its shrub refs through q, which is
// the pool or an open transaction.
func getPlayerWhere(ctx context.Context, q querier, d Dialect, where string, arg any) (*model.Player, error) {
	p, err := scanPlayer(q.QueryRowContext(ctx, d.rebind(`SELECT `+playerColumns+` FROM players WHERE `+where), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	refs, err := playerShrubRefs(ctx, q, d, &p.ID)
	if err != nil {
		return nil, err
	}
	p.Shrubs = refs[p.ID]
	return p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return getPlayerWhere(ctx, s.db, s.dialect, `id = ?`, string(id))
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return getPlayerWhere(ctx, s.db, s.dialect, `name = ?`, name)
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	rows, err := s.query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := playerShrubRefs(ctx, s.db, s.dialect, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		p.Shrubs = refs[p.ID]
	}
	return players, nil
}

// playerShrubRefs loads the shrub reference sets of one player, or of all
// players when id is nil
func playerShrubRefs(ctx context.Context, db querier, d Dialect, id *model.PlayerID) (map[model.PlayerID][]model.ShrubID, error) {
	q := `SELECT player_id, shrub_id FROM player_shrubs`
	var args []any
	if id != nil {
		q += ` WHERE player_id = ?`
		args = append(args, string(*id))
	}
	q += ` ORDER BY player_id, shrub_id`

	rows, err := db.QueryContext(ctx, d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[model.PlayerID][]model.ShrubID)
	for rows.Next() {
		var playerID, shrubID string
		if err := rows.Scan(&playerID, &shrubID); err != nil {
			return nil, err
		}
		refs[model.PlayerID(playerID)] = append(refs[model.PlayerID(playerID)], model.ShrubID(shrubID))
	}
	return refs, rows.Err()
}

// Shrub operations

const shrubColumns = `id, shrubber_id, created_by_id, original_word, transformed_word, description, created_at, updated_at`

func scanShrub(row interface{ Scan(...any) error }) (*model.Shrub, error) {
	var (
		sh                          model.Shrub
		id, shrubberID, createdByID string
		createdAt, updatedAt        int64
	)
	err := row.Scan(&id, &shrubberID, &createdByID, &sh.OriginalWord, &sh.TransformedWord,
		&sh.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sh.ID = model.ShrubID(id)
	sh.ShrubberID = model.PlayerID(shrubberID)
	sh.CreatedByID = model.PlayerID(createdByID)
	sh.CreatedAt = fromMillis(createdAt)
	sh.UpdatedAt = fromMillis(updatedAt)
	return &sh, nil
}

func (s *Storage) GetShrub(ctx context.Context, id model.ShrubID) (*model.Shrub, error) {
	sh, err := scanShrub(s.queryRow(ctx, `SELECT `+shrubColumns+` FROM shrubs WHERE id = ?`, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrShrubNotFound
		}
		return nil, err
	}
	refs, err := s.shrubVoteRefs(ctx, &sh.ID)
	if err != nil {
		return nil, err
	}
	sh.Votes = refs[sh.ID]
	return sh, nil
}

func (s *Storage) listShrubsWhere(ctx context.Context, where string, args ...any) ([]*model.Shrub, error) {
	q := `SELECT ` + shrubColumns + ` FROM shrubs`
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shrubs := []*model.Shrub{}
	for rows.Next() {
		sh, err := scanShrub(rows)
		if err != nil {
			return nil, err
		}
		shrubs = append(shrubs, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := s.shrubVoteRefs(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, sh := range shrubs {
		sh.Votes = refs[sh.ID]
	}
	return shrubs, nil
}

func (s *Storage) ListShrubs(ctx context.Context) ([]*model.Shrub, error) {
	return s.listShrubsWhere(ctx, "")
}

func (s *Storage) ListShrubsByPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Shrub, error) {
	return s.listShrubsWhere(ctx, `shrubber_id = ?`, string(playerID))
}

func (s *Storage) LatestShrub(ctx context.Context, playerID model.PlayerID) (*model.Shrub, error) {
	var id string
	err := s.queryRow(ctx,
		`SELECT id FROM shrubs WHERE shrubber_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(playerID)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrShrubNotFound
		}
		return nil, err
	}
	return s.GetShrub(ctx, model.ShrubID(id))
}

func (s *Storage) shrubVoteRefs(ctx context.Context, id *model.ShrubID) (map[model.ShrubID][]model.VoteID, error) {
	q := `SELECT shrub_id, vote_id FROM shrub_votes`
	var args []any
	if id != nil {
		q += ` WHERE shrub_id = ?`
		args = append(args, string(*id))
	}
	q += ` ORDER BY shrub_id, vote_id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[model.ShrubID][]model.VoteID)
	for rows.Next() {
		var shrubID, voteID string
		if err := rows.Scan(&shrubID, &voteID); err != nil {
			return nil, err
		}
		refs[model.ShrubID(shrubID)] = append(refs[model.ShrubID(shrubID)], model.VoteID(voteID))
	}
	return refs, rows.Err()
}

// Vote operations

func (s *Storage) DeleteVote(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) error {
	res, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`DELETE FROM votes WHERE shrub_id = ? AND voter_id = ?`),
		string(shrubID), string(voterID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrVoteNotFound
	}
	return nil
}

func (s *Storage) GetVotes(ctx context.Context, ids []model.VoteID) ([]*model.Vote, error) {
	if len(ids) == 0 {
		return []*model.Vote{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	rows, err := s.query(ctx,
		`SELECT id, shrub_id, voter_id, points, created_at FROM votes WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[model.VoteID]*model.Vote, len(ids))
	for rows.Next() {
		var (
			v                    model.Vote
			id, shrubID, voterID string
			createdAt            int64
		)
		if err := rows.Scan(&id, &shrubID, &voterID, &v.Points, &createdAt); err != nil {
			return nil, err
		}
		v.ID = model.VoteID(id)
		v.ShrubID = model.ShrubID(shrubID)
		v.VoterID = model.PlayerID(voterID)
		v.CreatedAt = fromMillis(createdAt)
		byID[v.ID] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the requested order
	votes := make([]*model.Vote, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

func (s *Storage) CountVotes(ctx context.Context, shrubID model.ShrubID, voterID model.PlayerID) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE shrub_id = ? AND voter_id = ?`,
		string(shrubID), string(voterID)).Scan(&n)
	return n, err
}

// Aggregations

// Player totals join owned shrubs to their votes. ROW_NUMBER gives every
// player a distinct rank even when totals tie.
const playerLeaderboardSQL = `
WITH owned_votes AS (
    SELECT s.shrubber_id AS player_id, v.voter_id, v.points
    FROM shrubs s
    JOIN votes v ON v.shrub_id = s.id
),
totals AS (
    SELECT
        p.id,
        p.name,
        (SELECT COUNT(*) FROM shrubs s WHERE s.shrubber_id = p.id) AS shrub_count,
        (SELECT COALESCE(SUM(ov.points), 0) FROM owned_votes ov WHERE ov.player_id = p.id) AS total_points,
        (SELECT COUNT(DISTINCT ov.voter_id) FROM owned_votes ov WHERE ov.player_id = p.id) AS unique_voters
    FROM players p
)
SELECT
    id, name, shrub_count, total_points, unique_voters,
    ROW_NUMBER() OVER (ORDER BY total_points DESC, name ASC, id ASC) AS row_rank
FROM totals
ORDER BY row_rank`

// Shrub totals join each shrub to its votes and owner; shrubs whose owner is
// missing drop out of the inner join. RANK orders by points alone so ties
// share a rank.
const shrubLeaderboardSQL = `
WITH totals AS (
    SELECT
        s.id, s.original_word, s.transformed_word, s.description, s.created_at,
        p.name AS owner_name,
        COALESCE(SUM(v.points), 0) AS total_points,
        COUNT(DISTINCT v.voter_id) AS unique_voters
    FROM shrubs s
    JOIN players p ON p.id = s.shrubber_id
    LEFT JOIN votes v ON v.shrub_id = s.id
    GROUP BY s.id, s.original_word, s.transformed_word, s.description, s.created_at, p.name
)
SELECT
    id, original_word, transformed_word, description, created_at, owner_name,
    total_points, unique_voters,
    RANK() OVER (ORDER BY total_points DESC) AS competition_rank
FROM totals
ORDER BY total_points DESC, created_at ASC, id ASC`

func withLimit(q string, limit int) (string, []any) {
	if limit <= 0 {
		return q, nil
	}
	return q + "\nLIMIT ?", []any{limit}
}

func (s *Storage) PlayerLeaderboard(ctx context.Context, limit int) ([]ranking.PlayerStanding, error) {
	q, args := withLimit(playerLeaderboardSQL, limit)
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := []ranking.PlayerStanding{}
	for rows.Next() {
		var (
			st ranking.PlayerStanding
			id string
		)
		if err := rows.Scan(&id, &st.Name, &st.ShrubCount, &st.TotalPoints, &st.UniqueVoterCount, &st.Rank); err != nil {
			return nil, err
		}
		st.PlayerID = model.PlayerID(id)
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

func (s *Storage) ShrubLeaderboard(ctx context.Context, limit int) ([]ranking.ShrubStanding, error) {
	q, args := withLimit(shrubLeaderboardSQL, limit)
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := []ranking.ShrubStanding{}
	for rows.Next() {
		var (
			st        ranking.ShrubStanding
			id        string
			createdAt int64
		)
		err := rows.Scan(&id, &st.OriginalWord, &st.TransformedWord, &st.Description, &createdAt,
			&st.OwnerName, &st.TotalPoints, &st.UniqueVoterCount, &st.Rank)
		if err != nil {
			return nil, err
		}
		st.ShrubID = model.ShrubID(id)
		st.CreatedAt = fromMillis(createdAt)
		standings = append(standings, st)
	}
	return standings, rows.Err()
}
