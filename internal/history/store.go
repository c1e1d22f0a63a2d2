// Package history persists match results and player preferences in a local
// SQLite database. One record is written per finished match, solo or
// multiplayer; nothing else survives a restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Modes recorded with each match.
const (
	ModeSolo        = "solo"
	ModeMultiplayer = "multiplayer"
)

// MatchRecord is the record emitted by the lifecycle on every game-over.
type MatchRecord struct {
	When        time.Time
	Mode        string
	LocalScore  int
	RemoteScore int
	Opponent    string
}

// Prefs is the locally persisted player identity and best result.
type Prefs struct {
	Name      string
	Avatar    string
	HighScore int
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	played_at    INTEGER NOT NULL,
	mode         TEXT    NOT NULL,
	local_score  INTEGER NOT NULL,
	remote_score INTEGER NOT NULL,
	opponent     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS prefs (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	name       TEXT    NOT NULL,
	avatar     TEXT    NOT NULL,
	high_score INTEGER NOT NULL
);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path, creating missing
// parent directories first; the driver will not.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := "file:" + path +
		"?_pragma=busy_timeout(10000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
	return open(dsn)
}

// OpenMemory opens a private in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// One connection: SQLite tolerates no concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	// Seed the singleton prefs row so high-score updates always have a
	// target.
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO prefs (id, name, avatar, high_score) VALUES (1, 'player', '◆', 0)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed prefs: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends one match record and raises the stored high score when the
// local result beats it.
func (s *Store) Record(ctx context.Context, rec MatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (played_at, mode, local_score, remote_score, opponent)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.When.Unix(), rec.Mode, rec.LocalScore, rec.RemoteScore, rec.Opponent,
	)
	if err != nil {
		return fmt.Errorf("record match: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE prefs SET high_score = ? WHERE id = 1 AND high_score < ?`,
		rec.LocalScore, rec.LocalScore,
	)
	if err != nil {
		return fmt.Errorf("update high score: %w", err)
	}
	return nil
}

// Recent returns up to limit matches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT played_at, mode, local_score, remote_score, opponent
		 FROM matches ORDER BY played_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		var ts int64
		if err := rows.Scan(&ts, &rec.Mode, &rec.LocalScore, &rec.RemoteScore, &rec.Opponent); err != nil {
			return nil, err
		}
		rec.When = time.Unix(ts, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prefs reads the stored preferences, falling back to defaults when the
// player has never saved any.
func (s *Store) Prefs(ctx context.Context) (Prefs, error) {
	var p Prefs
	err := s.db.QueryRowContext(ctx,
		`SELECT name, avatar, high_score FROM prefs WHERE id = 1`,
	).Scan(&p.Name, &p.Avatar, &p.HighScore)
	if err == sql.ErrNoRows {
		return Prefs{Name: "player", Avatar: "◆"}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("read prefs: %w", err)
	}
	return p, nil
}

// SavePrefs stores the display identity, preserving the high score.
func (s *Store) SavePrefs(ctx context.Context, name, avatar string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (id, name, avatar, high_score) VALUES (1, ?, ?, 0)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar`,
		name, avatar,
	)
	if err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}
