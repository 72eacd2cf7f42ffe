// Package archive keeps the final standings of finished sessions in SQLite.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"fishbowl/internal/game"
)

var schema = `CREATE TABLE IF NOT EXISTS sessions (
  session_id TEXT PRIMARY KEY,
  finished_at INTEGER NOT NULL,
  rounds INTEGER NOT NULL,
  words INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS standings (
  session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  team_id TEXT NOT NULL,
  team_name TEXT NOT NULL,
  points INTEGER NOT NULL,
  winner BOOLEAN DEFAULT false NOT NULL,
  PRIMARY KEY (session_id, position)
);`

var ErrNotFound = errors.New("archived session not found")

// Result is one finished session.
type Result struct {
	SessionID  string     `json:"sessionId"`
	FinishedAt time.Time  `json:"finishedAt"`
	Rounds     int        `json:"rounds"`
	Words      int        `json:"words"`
	Standings  []Standing `json:"standings"`
}

type Standing struct {
	Position int    `db:"position" json:"position"`
	TeamID   string `db:"team_id" json:"teamId"`
	TeamName string `db:"team_name" json:"teamName"`
	Points   int    `db:"points" json:"points"`
	Winner   bool   `db:"winner" json:"winner"`
}

type sessionRow struct {
	SessionID  string `db:"session_id"`
	FinishedAt int64  `db:"finished_at"`
	Rounds     int    `db:"rounds"`
	Words      int    `db:"words"`
}

// Repository stores finished sessions.
type Repository interface {
	Save(ctx context.Context, r Result) error
	Get(ctx context.Context, sessionID string) (Result, error)
	Recent(ctx context.Context, limit int) ([]Result, error)
}

// FromFinal builds the archive record of a finished session.
func FromFinal(sessionID string, finishedAt time.Time, teams []game.Team, words int, final game.FinalSummary) Result {
	names := make(map[game.TeamID]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	winners := make(map[game.TeamID]bool, len(final.Winners))
	for _, id := range final.Winners {
		winners[id] = true
	}
	r := Result{
		SessionID:  sessionID,
		FinishedAt: finishedAt.UTC(),
		Rounds:     len(final.Rounds),
		Words:      words,
	}
	for i, ts := range final.Ranking {
		r.Standings = append(r.Standings, Standing{
			Position: i + 1,
			TeamID:   string(ts.TeamID),
			TeamName: names[ts.TeamID],
			Points:   ts.Points,
			Winner:   winners[ts.TeamID],
		})
	}
	return r
}

type SQLite struct {
	conn *sqlx.DB
}

// Open connects to the SQLite file at path and creates the schema.
func Open(path string) (*SQLite, error) {
	conn, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	conn.MustExec(schema)
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Save writes a result, replacing an earlier record of the same session.
func (s *SQLite) Save(ctx context.Context, r Result) error {
	txn, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive %s: %w", r.SessionID, err)
	}
	defer func() { _ = txn.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM standings WHERE session_id = ?;`,
		`DELETE FROM sessions WHERE session_id = ?;`,
	} {
		if _, err := txn.ExecContext(ctx, stmt, r.SessionID); err != nil {
			return fmt.Errorf("archive %s: %w", r.SessionID, err)
		}
	}
	_, err = txn.NamedExecContext(ctx,
		`INSERT INTO sessions(session_id, finished_at, rounds, words) VALUES(:session_id, :finished_at, :rounds, :words);`,
		sessionRow{SessionID: r.SessionID, FinishedAt: r.FinishedAt.UnixMilli(), Rounds: r.Rounds, Words: r.Words})
	if err != nil {
		return fmt.Errorf("archive %s: %w", r.SessionID, err)
	}
	insertStanding := `INSERT INTO standings(session_id, position, team_id, team_name, points, winner) VALUES(?, ?, ?, ?, ?, ?);`
	for _, st := range r.Standings {
		if _, err := txn.ExecContext(ctx, insertStanding, r.SessionID, st.Position, st.TeamID, st.TeamName, st.Points, st.Winner); err != nil {
			return fmt.Errorf("archive %s standing %d: %w", r.SessionID, st.Position, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("archive %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, sessionID string) (Result, error) {
	var row sessionRow
	err := s.conn.GetContext(ctx, &row, `SELECT * FROM sessions WHERE session_id = ?;`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return s.withStandings(ctx, row)
}

// Recent lists the latest finished sessions, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Result, error) {
	rows := []sessionRow{}
	err := s.conn.SelectContext(ctx, &rows, `SELECT * FROM sessions ORDER BY finished_at DESC, session_id LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		r, err := s.withStandings(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLite) withStandings(ctx context.Context, row sessionRow) (Result, error) {
	r := Result{
		SessionID:  row.SessionID,
		FinishedAt: time.UnixMilli(row.FinishedAt).UTC(),
		Rounds:     row.Rounds,
		Words:      row.Words,
	}
	err := s.conn.SelectContext(ctx, &r.Standings,
		`SELECT position, team_id, team_name, points, winner FROM standings WHERE session_id = ? ORDER BY position;`,
		row.SessionID)
	if err != nil {
		return Result{}, err
	}
	return r, nil
}
