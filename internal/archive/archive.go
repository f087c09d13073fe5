// Package archive provides SQLite-based storage for finished games. Each
// settled game lands as one row plus its bet ledger and payouts; reputation
// snapshots persist across games so scores survive restarts.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/calderas/rumormill/internal/game"
	"github.com/calderas/rumormill/internal/reputation"
)

// DB wraps a SQLite connection for game history storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		session_id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		revealed_at TIMESTAMP NOT NULL,
		total_payout REAL NOT NULL,
		betrayers_json TEXT NOT NULL,
		attestation BLOB
	);

	CREATE TABLE IF NOT EXISTS bets (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		amount REAL NOT NULL,
		shares REAL NOT NULL,
		placed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payouts (
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		amount REAL NOT NULL,
		PRIMARY KEY (session_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS reputation_scores (
		agent_id TEXT PRIMARY KEY,
		overall REAL NOT NULL,
		honesty REAL NOT NULL,
		cooperation REAL NOT NULL,
		skill REAL NOT NULL,
		games_played INTEGER NOT NULL,
		wins INTEGER NOT NULL,
		feedback_count INTEGER NOT NULL,
		last_updated TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bets_session ON bets(session_id);
	CREATE INDEX IF NOT EXISTS idx_bets_agent ON bets(agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveResult archives a settled game. Satisfies game.ResultSink.
func (db *DB) SaveResult(res *game.Result) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	betrayersJSON, _ := json.Marshal(res.Betrayers)

	_, err = tx.Exec(`INSERT OR REPLACE INTO games
		(session_id, scenario_id, outcome, revealed_at, total_payout, betrayers_json, attestation)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.ScenarioID, res.Outcome, res.RevealedAt,
		res.TotalPayout, string(betrayersJSON), res.Attestation,
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", res.SessionID, err)
	}

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO bets
		(id, session_id, agent_id, outcome, amount, shares, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range res.Bets {
		if _, err := stmt.Exec(b.ID, res.SessionID, b.AgentID, b.Outcome, b.Amount, b.Shares, b.Timestamp); err != nil {
			return fmt.Errorf("insert bet %s: %w", b.ID, err)
		}
	}

	for agentID, amount := range res.Payouts {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO payouts (session_id, agent_id, amount) VALUES (?, ?, ?)",
			res.SessionID, agentID, amount,
		)
		if err != nil {
			return fmt.Errorf("insert payout %s: %w", agentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("game archived",
		"session", res.SessionID,
		"outcome", res.Outcome,
		"bets", len(res.Bets),
		"payouts", len(res.Payouts),
	)
	return nil
}

// SaveReputation snapshots every score, replacing prior rows.
func (db *DB) SaveReputation(scores []*reputation.Score) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO reputation_scores
		(agent_id, overall, honesty, cooperation, skill, games_played, wins, feedback_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range scores {
		_, err := stmt.Exec(
			s.AgentID, s.Overall, s.Honesty, s.Cooperation, s.Skill,
			s.GamesPlayed, s.Wins, s.FeedbackCount, s.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("insert score %s: %w", s.AgentID, err)
		}
	}

	return tx.Commit()
}

// GameRow is one archived game as stored.
type GameRow struct {
	SessionID   string    `db:"session_id"`
	ScenarioID  string    `db:"scenario_id"`
	Outcome     string    `db:"outcome"`
	RevealedAt  time.Time `db:"revealed_at"`
	TotalPayout float64   `db:"total_payout"`
}

// RecentGames returns the most recently revealed games.
func (db *DB) RecentGames(limit int) ([]GameRow, error) {
	var rows []GameRow
	err := db.conn.Select(&rows,
		`SELECT session_id, scenario_id, outcome, revealed_at, total_payout
		 FROM games ORDER BY revealed_at DESC LIMIT ?`,
		limit,
	)
	return rows, err
}

// BetRow is one archived ledger entry.
type BetRow struct {
	ID       string    `db:"id"`
	AgentID  string    `db:"agent_id"`
	Outcome  string    `db:"outcome"`
	Amount   float64   `db:"amount"`
	Shares   float64   `db:"shares"`
	PlacedAt time.Time `db:"placed_at"`
}

// BetsForGame returns the bet ledger of one archived game, oldest first.
func (db *DB) BetsForGame(sessionID string) ([]BetRow, error) {
	var rows []BetRow
	err := db.conn.Select(&rows,
		`SELECT id, agent_id, outcome, amount, shares, placed_at
		 FROM bets WHERE session_id = ? ORDER BY placed_at`,
		sessionID,
	)
	return rows, err
}

// LoadReputation reads every persisted reputation snapshot. Used at startup
// to seed initial scores for returning agents.
func (db *DB) LoadReputation() (map[string]float64, error) {
	type row struct {
		AgentID string  `db:"agent_id"`
		Overall float64 `db:"overall"`
	}
	var rows []row
	if err := db.conn.Select(&rows, "SELECT agent_id, overall FROM reputation_scores"); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.AgentID] = r.Overall
	}
	return out, nil
}
